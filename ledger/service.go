/*
service.go - Entry point for every ledger operation

PURPOSE:
  Service ties the pure calculations to the Store. Write operations
  (credit.go, payment.go, customer.go) validate, then run as one
  Store.WithTx unit. Read operations (history.go, kpi.go, query.go) load
  rows and derive everything on the fly.

CONFIGURATION:
  Options set the logger, the clock, the store's time zone, the tag rules
  and an optional mutation recorder (metrics).

CONCURRENCY:
  Service holds no mutable state; it is safe for concurrent use as long as
  the Store is. Ordering between callers is the caller's responsibility.
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recorder observes ledger mutations. Implemented by observability.Metrics.
type Recorder interface {
	RecordMutation(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, error) {}

// Service implements the credit ledger operations on top of a TxStore.
type Service struct {
	store    TxStore
	log      logrus.FieldLogger
	now      func() time.Time
	loc      *time.Location
	rules    TagRules
	recorder Recorder
	newID    func() string
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }
func WithTagRules(r TagRules) Option         { return func(s *Service) { s.rules = r } }
func WithRecorder(r Recorder) Option         { return func(s *Service) { s.recorder = r } }

// WithLocation sets the time zone that defines "today" and due dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(store TxStore, opts ...Option) *Service {
	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)

	s := &Service{
		store:    store,
		log:      quiet,
		now:      time.Now,
		loc:      DefaultLocation,
		rules:    DefaultTagRules(),
		recorder: nopRecorder{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current time in the store's location.
func (s *Service) Today() time.Time {
	return s.now().In(s.loc)
}

// Location returns the store's time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// mutate runs fn as one atomic unit and records the outcome.
func (s *Service) mutate(ctx context.Context, op string, fn func(Store) error) error {
	err := s.store.WithTx(ctx, fn)
	s.recorder.RecordMutation(op, err)
	if err != nil {
		entry := s.log.WithField("op", op).WithError(err)
		if IsClientError(err) || IsNotFound(err) {
			entry.Debug("ledger mutation rejected")
		} else {
			entry.Error("ledger mutation failed")
		}
	}
	return err
}

// =============================================================================
// BOOK - Every row of the ledger, grouped by customer
// =============================================================================

// book is a read snapshot used by cross-customer operations.
type book struct {
	customers []Customer
	credits   map[CustomerID][]CreditTransaction
	payments  map[CustomerID][]Payment
}

// loadBook reads all three tables in one transaction so totals never mix
// rows from before and after a concurrent write.
func (s *Service) loadBook(ctx context.Context) (*book, error) {
	var (
		customers []Customer
		credits   []CreditTransaction
		payments  []Payment
	)
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if customers, err = st.ListCustomers(ctx); err != nil {
			return err
		}
		if credits, err = st.ListAllCredits(ctx); err != nil {
			return err
		}
		payments, err = st.ListAllPayments(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	b := &book{
		customers: customers,
		credits:   make(map[CustomerID][]CreditTransaction),
		payments:  make(map[CustomerID][]Payment),
	}
	for _, c := range credits {
		b.credits[c.CustomerID] = append(b.credits[c.CustomerID], c)
	}
	for _, p := range payments {
		b.payments[p.CustomerID] = append(b.payments[p.CustomerID], p)
	}
	return b, nil
}

// customerRows is loadBook for a single customer: the customer, its credits
// and its payments come from one transaction. c is nil for an unknown id.
func (s *Service) customerRows(ctx context.Context, id CustomerID) (c *Customer, credits []CreditTransaction, payments []Payment, err error) {
	err = s.store.WithTx(ctx, func(st Store) error {
		var err error
		if c, err = st.GetCustomer(ctx, id); err != nil {
			return err
		}
		if credits, err = st.ListCredits(ctx, id); err != nil {
			return err
		}
		payments, err = st.ListPayments(ctx, id)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return c, credits, payments, nil
}

func (s *Service) summaries(b *book) []CustomerSummary {
	today := s.Today()
	out := make([]CustomerSummary, 0, len(b.customers))
	for _, c := range b.customers {
		out = append(out, Summarize(c, b.credits[c.ID], b.payments[c.ID], today, s.rules))
	}
	return out
}
