/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates customers, credits
	and payments through ledger.Service, so every rule (FIFO allocation,
	derived status, overpayment checks) applies exactly as in production.

AVAILABLE SCENARIOS:

	aling-nena:  One customer, two credits, one FIFO payment
	busy-store:  Several customers covering every tag and aging bucket
	empty-store: No data at all

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create customers
 3. Record credits with dates relative to today
 4. Record payments (targeted or FIFO)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "aling-nena"}

USAGE VIA CLI:

	tindahan seed aling-nena

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: seedXxx(ctx, svc)
 3. Add it to the 'loaders' map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
  - cmd/tindahan/seed.go: CLI entry point
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sarisari/tindahan/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "aling-nena",
		Name:        "Aling Nena",
		Description: "₱500 and ₱300 on credit, then ₱500 paid: the oldest credit is settled first",
	},
	{
		ID:          "busy-store",
		Name:        "Busy Store",
		Description: "Regulars, an overdue borrower, a frequent borrower and a good payer",
	},
	{
		ID:          "empty-store",
		Name:        "Empty Store",
		Description: "Fresh database with no customers",
	},
}

var loaders = map[string]func(context.Context, *ledger.Service) error{
	"aling-nena":  seedAlingNena,
	"busy-store":  seedBusyStore,
	"empty-store": func(context.Context, *ledger.Service) error { return nil },
}

// Scenarios lists the available demo scenarios.
func Scenarios() []ScenarioDTO {
	return append([]ScenarioDTO(nil), scenarios...)
}

// SeedScenario loads a scenario into the ledger. The caller resets the
// database first.
func SeedScenario(ctx context.Context, svc *ledger.Service, id string) error {
	load, ok := loaders[id]
	if !ok {
		return &ledger.ValidationError{Field: "scenario_id", Reason: fmt.Sprintf("unknown scenario %q", id)}
	}
	if err := load(ctx, svc); err != nil {
		return fmt.Errorf("seed %s: %w", id, err)
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and seeds a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if _, ok := loaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := SeedScenario(ctx, h.Service, req.ScenarioID); err != nil {
		h.writeLedgerError(w, r, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

// seeder wraps the service calls a loader needs and keeps the first error,
// so loaders read as a plain list of events.
type seeder struct {
	ctx   context.Context
	svc   *ledger.Service
	today time.Time
	err   error
}

func newSeeder(ctx context.Context, svc *ledger.Service) *seeder {
	return &seeder{ctx: ctx, svc: svc, today: ledger.StartOfDay(svc.Today(), svc.Location())}
}

// daysAgo returns mid-morning n days before today.
func (s *seeder) daysAgo(n int) time.Time {
	return s.today.AddDate(0, 0, -n).Add(9 * time.Hour)
}

func (s *seeder) customer(name, phone string, limit float64) ledger.CustomerID {
	if s.err != nil {
		return ""
	}
	in := ledger.CustomerInput{Name: name, Phone: phone}
	if limit > 0 {
		l := ledger.Pesos(limit)
		in.CreditLimit = &l
	}
	c, err := s.svc.AddCustomer(s.ctx, in)
	if err != nil {
		s.err = err
		return ""
	}
	return c.ID
}

// credit records a credit taken n days ago. dueIn is relative to the credit
// date; a negative value means no due date.
func (s *seeder) credit(id ledger.CustomerID, product string, qty int, amount float64, ago, dueIn int) ledger.CreditID {
	if s.err != nil {
		return ""
	}
	date := s.daysAgo(ago)
	in := ledger.CreditInput{
		CustomerID:  id,
		Amount:      ledger.Pesos(amount),
		ProductName: product,
		Quantity:    qty,
		Date:        date,
	}
	if dueIn >= 0 {
		due := date.AddDate(0, 0, dueIn)
		in.DueDate = &due
	}
	c, err := s.svc.CreateCredit(s.ctx, in)
	if err != nil {
		s.err = err
		return ""
	}
	return c.ID
}

func (s *seeder) pay(id ledger.CustomerID, target ledger.CreditID, amount float64, method ledger.PaymentMethod, ago int) {
	if s.err != nil {
		return
	}
	_, s.err = s.svc.RecordPayment(s.ctx, ledger.PaymentInput{
		CustomerID:          id,
		Amount:              ledger.Pesos(amount),
		CreditTransactionID: target,
		Method:              method,
		Date:                s.daysAgo(ago),
	})
}

// seedAlingNena: ₱500 ten days ago, ₱300 three days ago, ₱500 paid today.
// The payment settles the first credit and leaves ₱300 owing.
func seedAlingNena(ctx context.Context, svc *ledger.Service) error {
	s := newSeeder(ctx, svc)

	nena := s.customer("Aling Nena", "09171234567", 1000)
	s.credit(nena, "Bigas 5kg", 1, 500, 10, 7)
	s.credit(nena, "Mantika at sardinas", 3, 300, 3, 14)
	s.pay(nena, "", 500, ledger.MethodCash, 0)

	return s.err
}

func seedBusyStore(ctx context.Context, svc *ledger.Service) error {
	s := newSeeder(ctx, svc)

	// Overdue for over two months.
	tomas := s.customer("Mang Tomas", "09181112222", 500)
	s.credit(tomas, "Gin at pulutan", 1, 450, 75, 7)
	s.credit(tomas, "Yelo", 2, 40, 40, 7)
	s.pay(tomas, "", 100, ledger.MethodCash, 30)

	// Frequent borrower, nothing overdue.
	baby := s.customer("Ate Baby", "09223334444", 0)
	for i, item := range []string{"Kape", "Asukal", "Pandesal", "Noodles", "Sabon"} {
		s.credit(baby, item, 1, float64(25+10*i), 12-2*i, 30)
	}

	// Everything paid, one targeted and one untargeted.
	jun := s.customer("Kuya Jun", "", 0)
	load := s.credit(jun, "Load 100", 1, 100, 20, 7)
	s.credit(jun, "Softdrinks", 2, 60, 15, 7)
	s.pay(jun, load, 100, ledger.MethodBankTransfer, 18)
	s.pay(jun, "", 60, ledger.MethodCash, 10)

	// Partial payment on a credit taken today.
	lorna := s.customer("Aling Lorna", "09335556666", 300)
	s.credit(lorna, "Gatas", 2, 180.50, 0, 7)
	s.pay(lorna, "", 80.50, ledger.MethodCash, 0)

	// Registered but never borrowed.
	s.customer("Nonoy", "", 0)

	return s.err
}
