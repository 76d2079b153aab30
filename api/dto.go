/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts go out as strings with two decimals ("150.25"). Amounts come in as
  JSON numbers or numeric strings; both decode into json.Number and are
  parsed with ledger.ParsePesos so no float ever touches a balance.

DATES:
  Responses use RFC 3339 in the store's time zone. Requests accept RFC 3339
  or a plain YYYY-MM-DD, read as midnight in the store's time zone.

VALIDATION:
  Request types carry validator tags for shape checks (required fields,
  enums, lengths). Business rules stay in the ledger package, which
  re-validates everything.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/sarisari/tindahan/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CustomerRequest creates or replaces a customer.
type CustomerRequest struct {
	Name        string       `json:"name" validate:"required,max=120"`
	Phone       string       `json:"phone" validate:"omitempty,max=32"`
	Address     string       `json:"address" validate:"omitempty,max=255"`
	Notes       string       `json:"notes" validate:"omitempty,max=1000"`
	CreditLimit *json.Number `json:"credit_limit,omitempty"`
}

// CreateCreditRequest records a new credit ("utang").
type CreateCreditRequest struct {
	CustomerID  string      `json:"customer_id" validate:"required"`
	Amount      json.Number `json:"amount" validate:"required"`
	ProductID   string      `json:"product_id,omitempty"`
	ProductName string      `json:"product_name,omitempty" validate:"omitempty,max=120"`
	Quantity    int         `json:"quantity,omitempty" validate:"gte=0"`
	Date        string      `json:"date,omitempty"`
	DueDate     string      `json:"due_date,omitempty"`
	Notes       string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// UpdateCreditRequest edits a credit. Omitted fields are left unchanged;
// an empty due_date clears it.
type UpdateCreditRequest struct {
	ProductID   *string      `json:"product_id,omitempty"`
	ProductName *string      `json:"product_name,omitempty" validate:"omitempty,max=120"`
	Quantity    *int         `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Amount      *json.Number `json:"amount,omitempty"`
	DueDate     *string      `json:"due_date,omitempty"`
	Notes       *string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// RecordPaymentRequest records a payment. Without credit_transaction_id the
// payment is spread over the oldest unpaid credits first.
type RecordPaymentRequest struct {
	CustomerID          string      `json:"customer_id" validate:"required"`
	Amount              json.Number `json:"amount" validate:"required"`
	CreditTransactionID string      `json:"credit_transaction_id,omitempty"`
	PaymentMethod       string      `json:"payment_method,omitempty" validate:"omitempty,oneof=cash bank_transfer other"`
	Date                string      `json:"date,omitempty"`
	Notes               string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// MarkPaidRequest settles every open credit of a customer. The body is
// optional.
type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method,omitempty" validate:"omitempty,oneof=cash bank_transfer other"`
	Notes         string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone,omitempty"`
	Address     string  `json:"address,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CreditLimit *string `json:"credit_limit,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// CustomerSummaryDTO is a customer with every derived figure.
type CustomerSummaryDTO struct {
	CustomerDTO
	TotalCredits        string  `json:"total_credits"`
	TotalPayments       string  `json:"total_payments"`
	OutstandingBalance  string  `json:"outstanding_balance"`
	CreditCount         int     `json:"credit_count"`
	UnpaidCount         int     `json:"unpaid_count"`
	LastTransactionDate *string `json:"last_transaction_date"`
	Tag                 string  `json:"tag"`
	DaysOverdue         *int    `json:"days_overdue"`
	OverLimit           bool    `json:"over_limit"`
}

// CreditDTO represents a credit transaction.
type CreditDTO struct {
	ID          string  `json:"id"`
	CustomerID  string  `json:"customer_id"`
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	Amount      string  `json:"amount"`
	AmountPaid  string  `json:"amount_paid"`
	Remaining   string  `json:"remaining"`
	Status      string  `json:"status"`
	Date        string  `json:"date"`
	DueDate     *string `json:"due_date"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// PaymentDTO represents a payment.
type PaymentDTO struct {
	ID                  string  `json:"id"`
	CustomerID          string  `json:"customer_id"`
	CreditTransactionID *string `json:"credit_transaction_id"`
	Amount              string  `json:"amount"`
	PaymentMethod       string  `json:"payment_method"`
	Date                string  `json:"date"`
	Notes               string  `json:"notes,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

// AllocationDTO is the share of a payment applied to one credit.
type AllocationDTO struct {
	CreditTransactionID string `json:"credit_transaction_id"`
	Amount              string `json:"amount"`
	RemainingBefore     string `json:"remaining_before"`
	RemainingAfter      string `json:"remaining_after"`
}

// PaymentReceiptDTO is a recorded payment and where it landed.
type PaymentReceiptDTO struct {
	Payment     PaymentDTO      `json:"payment"`
	Allocations []AllocationDTO `json:"allocations"`
}

// HistoryEntryDTO is one line of a customer's timeline.
type HistoryEntryDTO struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	RunningBalance string `json:"running_balance"`
}

// AgingDTO sums unpaid remainders per bucket.
type AgingDTO struct {
	Current    string `json:"current"`
	Days1To30  string `json:"days_1_30"`
	Days31To60 string `json:"days_31_60"`
	Days61To90 string `json:"days_61_90"`
	Over90     string `json:"days_over_90"`
	Total      string `json:"total"`
	PastDue    string `json:"past_due"`
}

// KPIDTO is the dashboard summary.
type KPIDTO struct {
	TotalOutstanding          string              `json:"total_outstanding"`
	TotalCustomers            int                 `json:"total_customers"`
	TotalCustomersWithBalance int                 `json:"total_customers_with_balance"`
	MostOwedCustomer          *CustomerSummaryDTO `json:"most_owed_customer"`
	TotalCollectedToday       string              `json:"total_collected_today"`
	TotalCreditsToday         string              `json:"total_credits_today"`
	OverdueCount              int                 `json:"overdue_count"`
	Aging                     AgingDTO            `json:"aging"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(ledger.CentavoPlaces)
}

func stamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

func stampPtr(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := stamp(*t, loc)
	return &s
}

func toCustomerDTO(c ledger.Customer, loc *time.Location) CustomerDTO {
	dto := CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Address:   c.Address,
		Notes:     c.Notes,
		CreatedAt: stamp(c.CreatedAt, loc),
		UpdatedAt: stamp(c.UpdatedAt, loc),
	}
	if c.CreditLimit.Valid {
		limit := money(c.CreditLimit.Decimal)
		dto.CreditLimit = &limit
	}
	return dto
}

func toCustomerSummaryDTO(s ledger.CustomerSummary, loc *time.Location) CustomerSummaryDTO {
	return CustomerSummaryDTO{
		CustomerDTO:         toCustomerDTO(s.Customer, loc),
		TotalCredits:        money(s.TotalCredits),
		TotalPayments:       money(s.TotalPayments),
		OutstandingBalance:  money(s.OutstandingBalance),
		CreditCount:         s.CreditCount,
		UnpaidCount:         s.UnpaidCount,
		LastTransactionDate: stampPtr(s.LastTransactionDate, loc),
		Tag:                 string(s.Tag),
		DaysOverdue:         s.DaysOverdue,
		OverLimit:           s.OverLimit,
	}
}

func toCustomerSummaryDTOs(list []ledger.CustomerSummary, loc *time.Location) []CustomerSummaryDTO {
	dtos := make([]CustomerSummaryDTO, len(list))
	for i, s := range list {
		dtos[i] = toCustomerSummaryDTO(s, loc)
	}
	return dtos
}

func toCreditDTO(c ledger.CreditTransaction, loc *time.Location) CreditDTO {
	return CreditDTO{
		ID:          string(c.ID),
		CustomerID:  string(c.CustomerID),
		ProductID:   c.ProductID,
		ProductName: c.ProductName,
		Quantity:    c.Quantity,
		Amount:      money(c.Amount),
		AmountPaid:  money(c.AmountPaid),
		Remaining:   money(c.Remaining()),
		Status:      string(c.Status()),
		Date:        stamp(c.Date, loc),
		DueDate:     stampPtr(c.DueDate, loc),
		Notes:       c.Notes,
		CreatedAt:   stamp(c.CreatedAt, loc),
	}
}

func toPaymentDTO(p ledger.Payment, loc *time.Location) PaymentDTO {
	dto := PaymentDTO{
		ID:            string(p.ID),
		CustomerID:    string(p.CustomerID),
		Amount:        money(p.Amount),
		PaymentMethod: string(p.Method),
		Date:          stamp(p.Date, loc),
		Notes:         p.Notes,
		CreatedAt:     stamp(p.CreatedAt, loc),
	}
	if p.IsTargeted() {
		id := string(p.CreditTransactionID)
		dto.CreditTransactionID = &id
	}
	return dto
}

func toReceiptDTO(r ledger.PaymentReceipt, loc *time.Location) PaymentReceiptDTO {
	dto := PaymentReceiptDTO{
		Payment:     toPaymentDTO(r.Payment, loc),
		Allocations: make([]AllocationDTO, len(r.Allocations)),
	}
	for i, a := range r.Allocations {
		dto.Allocations[i] = AllocationDTO{
			CreditTransactionID: string(a.CreditID),
			Amount:              money(a.Amount),
			RemainingBefore:     money(a.RemainingBefore),
			RemainingAfter:      money(a.RemainingAfter),
		}
	}
	return dto
}

func toAgingDTO(a ledger.AgingReport) AgingDTO {
	return AgingDTO{
		Current:    money(a.Current),
		Days1To30:  money(a.Days1To30),
		Days31To60: money(a.Days31To60),
		Days61To90: money(a.Days61To90),
		Over90:     money(a.Over90),
		Total:      money(a.Total()),
		PastDue:    money(a.PastDue()),
	}
}

func toKPIDTO(k ledger.KPISummary, loc *time.Location) KPIDTO {
	dto := KPIDTO{
		TotalOutstanding:          money(k.TotalOutstanding),
		TotalCustomers:            k.TotalCustomers,
		TotalCustomersWithBalance: k.TotalCustomersWithBalance,
		TotalCollectedToday:       money(k.TotalCollectedToday),
		TotalCreditsToday:         money(k.TotalCreditsToday),
		OverdueCount:              k.OverdueCount,
		Aging:                     toAgingDTO(k.Aging),
	}
	if k.MostOwedCustomer != nil {
		most := toCustomerSummaryDTO(*k.MostOwedCustomer, loc)
		dto.MostOwedCustomer = &most
	}
	return dto
}
