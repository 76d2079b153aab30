package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sarisari/tindahan/ledger"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMANDS
// =============================================================================

var (
	flagFilter string
	flagSort   string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the dashboard KPIs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		k, err := a.svc.Summary(cmd.Context())
		if err != nil {
			return err
		}
		renderSummary(cmd.OutOrStdout(), k)
		return nil
	},
}

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "List customers with their balances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := ledger.ParseCustomerFilter(flagFilter)
		if err != nil {
			return err
		}
		order, err := ledger.ParseCustomerSort(flagSort)
		if err != nil {
			return err
		}

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.svc.ListCustomers(cmd.Context(), filter, order)
		if err != nil {
			return err
		}
		renderCustomers(cmd.OutOrStdout(), list, a.svc.Location())
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history CUSTOMER_ID",
	Short: "Show a customer's timeline with running balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		id := ledger.CustomerID(args[0])
		cs, err := a.svc.GetCustomer(cmd.Context(), id)
		if err != nil {
			return err
		}
		if cs == nil {
			return fmt.Errorf("customer %s not found", id)
		}
		entries, err := a.svc.CreditHistoryList(cmd.Context(), id)
		if err != nil {
			return err
		}
		renderHistory(cmd.OutOrStdout(), *cs, entries, a.svc.Location())
		return nil
	},
}

var agingCmd = &cobra.Command{
	Use:   "aging [CUSTOMER_ID]",
	Short: "Show aging buckets, store-wide or for one customer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		var report ledger.AgingReport
		if len(args) == 1 {
			report, err = a.svc.CustomerAging(cmd.Context(), ledger.CustomerID(args[0]))
		} else {
			report, err = a.svc.StoreAging(cmd.Context())
		}
		if err != nil {
			return err
		}
		renderAging(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd, customersCmd, historyCmd, agingCmd)
	customersCmd.Flags().StringVar(&flagFilter, "filter", "", "all, with_balance, paid or overdue")
	customersCmd.Flags().StringVar(&flagSort, "sort", "", "balance_desc, balance_asc, recent, name_asc or name_desc")
}

// =============================================================================
// RENDERING
// =============================================================================

func renderSummary(w io.Writer, k ledger.KPISummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total outstanding\t%s\n", peso(k.TotalOutstanding))
	fmt.Fprintf(tw, "Customers with balance\t%d of %d\n", k.TotalCustomersWithBalance, k.TotalCustomers)
	fmt.Fprintf(tw, "Overdue customers\t%d\n", k.OverdueCount)
	fmt.Fprintf(tw, "Credits today\t%s\n", peso(k.TotalCreditsToday))
	fmt.Fprintf(tw, "Collected today\t%s\n", peso(k.TotalCollectedToday))
	if k.MostOwedCustomer != nil {
		fmt.Fprintf(tw, "Most owed\t%s (%s)\n", k.MostOwedCustomer.Name, peso(k.MostOwedCustomer.OutstandingBalance))
	} else {
		fmt.Fprintf(tw, "Most owed\t-\n")
	}
	tw.Flush()
}

func renderCustomers(w io.Writer, list []ledger.CustomerSummary, loc *time.Location) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No customers.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBALANCE\tUNPAID\tTAG\tLAST ACTIVITY")
	for _, cs := range list {
		tag := string(cs.Tag)
		if cs.DaysOverdue != nil {
			tag = fmt.Sprintf("%s (%s)", tag, plural(*cs.DaysOverdue, "day", "days"))
		}
		if cs.OverLimit {
			tag += " over limit"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			cs.ID, cs.Name, peso(cs.OutstandingBalance), cs.UnpaidCount, tag,
			optionalDate(cs.LastTransactionDate, loc))
	}
	tw.Flush()
}

func renderHistory(w io.Writer, cs ledger.CustomerSummary, entries []ledger.HistoryEntry, loc *time.Location) {
	fmt.Fprintf(w, "%s owes %s\n\n", cs.Name, peso(cs.OutstandingBalance))
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, e := range entries {
		amount := peso(e.Amount)
		if e.Type == ledger.EventPayment {
			amount = "-" + amount
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			shortDate(e.Date, loc), e.Type, amount, peso(e.RunningBalance), e.Description)
	}
	tw.Flush()
}

func renderAging(w io.Writer, a ledger.AgingReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range ledger.AgingBuckets {
		fmt.Fprintf(tw, "%s\t%s\n", b, peso(a.Get(b)))
	}
	fmt.Fprintf(tw, "total\t%s\n", peso(a.Total()))
	tw.Flush()
}
