package main

import (
	"fmt"

	"github.com/sarisari/tindahan/api"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed SCENARIO",
	Short: "Reset the database and load a demo scenario",
	Long: `Reset the database and load a demo scenario.

This deletes every customer, credit and payment. Only use it on a
development or demo database.`,
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var ids []string
		for _, s := range api.Scenarios() {
			ids = append(ids, s.ID)
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		if err := api.SeedScenario(ctx, a.svc, args[0]); err != nil {
			return err
		}

		k, err := a.svc.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %q: %s, %s outstanding.\n",
			args[0], plural(k.TotalCustomers, "customer", "customers"), peso(k.TotalOutstanding))
		return nil
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List demo scenarios",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range api.Scenarios() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", s.ID, s.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(seedCmd, scenariosCmd)
}
