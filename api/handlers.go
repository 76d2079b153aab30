/*
handlers.go - HTTP API handlers for the credit ledger

PURPOSE:
  Exposes the ledger via a JSON API. Handles HTTP request/response, JSON
  serialization and error presentation; every rule lives in ledger.Service.

ENDPOINTS:
  Customers:
    GET    /api/customers                  List (?filter=&sort=)
    POST   /api/customers                  Create customer
    GET    /api/customers/search?q=        Search by name or phone
    GET    /api/customers/{id}             Customer with derived figures
    PUT    /api/customers/{id}             Replace editable fields
    DELETE /api/customers/{id}             Delete with all credits/payments
    GET    /api/customers/{id}/history     Timeline with running balance
    GET    /api/customers/{id}/credits     Credits, oldest first
    GET    /api/customers/{id}/payments    Payments, oldest first
    GET    /api/customers/{id}/aging       Aging buckets
    POST   /api/customers/{id}/mark-paid   Settle every open credit

  Credits:
    POST   /api/credits                    Record a credit
    PUT    /api/credits/{id}               Edit a credit
    DELETE /api/credits/{id}               Delete an unpaid credit

  Payments:
    POST   /api/payments                   Record (targeted or FIFO)
    DELETE /api/payments/{id}              Delete and reverse allocations

  Dashboard:
    GET    /api/kpis                       KPI summary
    GET    /api/aging                      Store-wide aging

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    POST   /api/scenarios/load             Load a demo scenario
    POST   /api/scenarios/reset            Clear all data

ERROR HANDLING:
  Ledger errors map to HTTP status by kind:
  - 400: ValidationError (including payments above the remaining balance)
  - 404: NotFoundError
  - 409: IntegrityError
  - 422: AllocationError
  - 500: anything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sarisari/tindahan/ledger"
	"github.com/sarisari/tindahan/observability"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter wipes the database. Implemented by *sqlite.Store.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Store   Resetter
	Metrics *observability.Metrics
	Log     logrus.FieldLogger

	validate *validator.Validate
	kpis     singleflight.Group

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. metrics may be nil.
func NewHandler(svc *ledger.Service, store Resetter, metrics *observability.Metrics, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &Handler{
		Service:  svc,
		Store:    store,
		Metrics:  metrics,
		Log:      log,
		validate: v,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns customers with derived figures.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	filter, err := ledger.ParseCustomerFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.writeLedgerError(w, r, "Invalid filter", err)
		return
	}
	order, err := ledger.ParseCustomerSort(r.URL.Query().Get("sort"))
	if err != nil {
		h.writeLedgerError(w, r, "Invalid sort", err)
		return
	}

	list, err := h.Service.ListCustomers(r.Context(), filter, order)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerSummaryDTOs(list, h.Service.Location()))
}

// SearchCustomers matches name or phone.
func (h *Handler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to search customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerSummaryDTOs(list, h.Service.Location()))
}

// CreateCustomer adds a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCustomer(w, r)
	if !ok {
		return
	}
	c, err := h.Service.AddCustomer(r.Context(), in)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*c, h.Service.Location()))
}

// GetCustomer returns a customer with derived figures.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	cs, err := h.Service.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get customer", err)
		return
	}
	if cs == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerSummaryDTO(*cs, h.Service.Location()))
}

// UpdateCustomer replaces the editable fields of a customer.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	in, ok := h.decodeCustomer(w, r)
	if !ok {
		return
	}
	c, err := h.Service.UpdateCustomer(r.Context(), id, in)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c, h.Service.Location()))
}

// DeleteCustomer removes a customer with all their credits and payments.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteCustomer(r.Context(), id); err != nil {
		h.writeLedgerError(w, r, "Failed to delete customer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "customer_id": string(id)})
}

// GetHistory returns the customer's timeline with running balance.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	seq, err := h.Service.CreditHistory(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to load history", err)
		return
	}
	loc := h.Service.Location()
	dtos := []HistoryEntryDTO{}
	for e := range seq {
		dtos = append(dtos, HistoryEntryDTO{
			Type:           string(e.Type),
			ID:             e.RefID,
			Amount:         money(e.Amount),
			Date:           stamp(e.Date, loc),
			Description:    e.Description,
			RunningBalance: money(e.RunningBalance),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomerCredits lists a customer's credits.
func (h *Handler) GetCustomerCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.Service.CustomerCredits(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list credits", err)
		return
	}
	loc := h.Service.Location()
	dtos := make([]CreditDTO, len(credits))
	for i, c := range credits {
		dtos[i] = toCreditDTO(c, loc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomerPayments lists a customer's payments.
func (h *Handler) GetCustomerPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Service.CustomerPayments(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list payments", err)
		return
	}
	loc := h.Service.Location()
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p, loc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomerAging buckets a customer's unpaid credits.
func (h *Handler) GetCustomerAging(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.CustomerAging(r.Context(), ledger.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute aging", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgingDTO(report))
}

// MarkAllPaid settles every open credit of a customer.
func (h *Handler) MarkAllPaid(w http.ResponseWriter, r *http.Request) {
	id := ledger.CustomerID(chi.URLParam(r, "id"))

	var req MarkPaidRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	receipt, err := h.Service.MarkAllAsPaid(r.Context(), id, ledger.PaymentMethod(req.PaymentMethod), req.Notes)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to mark credits as paid", err)
		return
	}
	if receipt == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "nothing_to_settle", "customer_id": string(id)})
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(*receipt, h.Service.Location()))
}

// =============================================================================
// CREDIT HANDLERS
// =============================================================================

// CreateCredit records a new credit.
func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	var req CreateCreditRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	loc := h.Service.Location()
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid amount", err)
		return
	}
	date, err := parseDate("date", req.Date, loc)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid date", err)
		return
	}
	due, err := parseOptionalDate("due_date", req.DueDate, loc)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid due_date", err)
		return
	}

	credit, err := h.Service.CreateCredit(r.Context(), ledger.CreditInput{
		CustomerID:  ledger.CustomerID(req.CustomerID),
		Amount:      amount,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Date:        date,
		DueDate:     due,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create credit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreditDTO(*credit, loc))
}

// UpdateCredit edits a credit.
func (h *Handler) UpdateCredit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CreditID(chi.URLParam(r, "id"))

	var req UpdateCreditRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	upd := ledger.CreditUpdate{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Notes:       req.Notes,
	}
	if req.Amount != nil {
		amount, err := parseAmount("amount", *req.Amount)
		if err != nil {
			h.writeLedgerError(w, r, "Invalid amount", err)
			return
		}
		upd.Amount = &amount
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			upd.ClearDueDate = true
		} else {
			due, err := parseDate("due_date", *req.DueDate, h.Service.Location())
			if err != nil {
				h.writeLedgerError(w, r, "Invalid due_date", err)
				return
			}
			upd.DueDate = &due
		}
	}

	credit, err := h.Service.UpdateCredit(r.Context(), id, upd)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to update credit", err)
		return
	}
	writeJSON(w, http.StatusOK, toCreditDTO(*credit, h.Service.Location()))
}

// DeleteCredit removes a credit that has no payments applied.
func (h *Handler) DeleteCredit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CreditID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteCredit(r.Context(), id); err != nil {
		h.writeLedgerError(w, r, "Failed to delete credit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "credit_transaction_id": string(id)})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records and allocates a payment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.writeLedgerError(w, r, "Invalid amount", err)
		return
	}
	date, err := parseDate("date", req.Date, h.Service.Location())
	if err != nil {
		h.writeLedgerError(w, r, "Invalid date", err)
		return
	}

	receipt, err := h.Service.RecordPayment(r.Context(), ledger.PaymentInput{
		CustomerID:          ledger.CustomerID(req.CustomerID),
		Amount:              amount,
		CreditTransactionID: ledger.CreditID(req.CreditTransactionID),
		Method:              ledger.PaymentMethod(req.PaymentMethod),
		Date:                date,
		Notes:               req.Notes,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptDTO(*receipt, h.Service.Location()))
}

// DeletePayment removes a payment and reverses its allocations.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	if err := h.Service.DeletePayment(r.Context(), id); err != nil {
		h.writeLedgerError(w, r, "Failed to delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "payment_id": string(id)})
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetKPIs returns the dashboard summary. Concurrent requests share one
// computation.
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	k, err := h.summary(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute KPIs", err)
		return
	}
	writeJSON(w, http.StatusOK, toKPIDTO(k, h.Service.Location()))
}

// GetStoreAging buckets every unpaid credit in the store.
func (h *Handler) GetStoreAging(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.StoreAging(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute aging", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgingDTO(report))
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) summary(ctx context.Context) (ledger.KPISummary, error) {
	if err := ctx.Err(); err != nil {
		return ledger.KPISummary{}, err
	}
	// The shared computation must not die with the first caller's request.
	ch := h.kpis.DoChan("kpis", func() (any, error) {
		return h.Service.Summary(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return ledger.KPISummary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ledger.KPISummary{}, res.Err
		}
		k := res.Val.(ledger.KPISummary)
		h.Metrics.ObserveSummary(k)
		return k, nil
	}
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps ledger error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAllocation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = map[string]string{verr.Field: verr.Reason}
	}
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error(message)
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into dst and runs the validator tags. An empty
// body is accepted when optional is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
		return false
	}
	return true
}

func (h *Handler) decodeCustomer(w http.ResponseWriter, r *http.Request) (ledger.CustomerInput, bool) {
	var req CustomerRequest
	if !h.decode(w, r, &req, false) {
		return ledger.CustomerInput{}, false
	}
	in := ledger.CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Notes:   req.Notes,
	}
	if req.CreditLimit != nil {
		limit, err := ledger.ParsePesos(req.CreditLimit.String())
		if err != nil {
			h.writeLedgerError(w, r, "Invalid credit_limit", &ledger.ValidationError{Field: "credit_limit", Reason: "not a decimal number"})
			return ledger.CustomerInput{}, false
		}
		in.CreditLimit = &limit
	}
	return in, true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// jsonFieldName makes validator report fields by their JSON names.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func parseAmount(field string, n json.Number) (decimal.Decimal, error) {
	d, err := ledger.ParsePesos(n.String())
	if err != nil {
		return decimal.Zero, &ledger.ValidationError{Field: field, Reason: "not a decimal number"}
	}
	return d, nil
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. Empty means "now", which the
// ledger fills in.
func parseDate(field, s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, &ledger.ValidationError{Field: field, Reason: "use YYYY-MM-DD or RFC 3339"}
}

func parseOptionalDate(field, s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(field, s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
