package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// CustomerFilter selects which customers a list shows.
type CustomerFilter string

const (
	FilterAll         CustomerFilter = "all"
	FilterWithBalance CustomerFilter = "with_balance"
	FilterPaid        CustomerFilter = "paid"
	FilterOverdue     CustomerFilter = "overdue"
)

// CustomerSort orders a customer list.
type CustomerSort string

const (
	SortBalanceDesc CustomerSort = "balance_desc"
	SortBalanceAsc  CustomerSort = "balance_asc"
	SortRecent      CustomerSort = "recent"
	SortNameAsc     CustomerSort = "name_asc"
	SortNameDesc    CustomerSort = "name_desc"
)

// ParseCustomerFilter accepts an empty string as FilterAll.
func ParseCustomerFilter(s string) (CustomerFilter, error) {
	switch f := CustomerFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterWithBalance, FilterPaid, FilterOverdue:
		return f, nil
	}
	return "", &ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown filter %q", s)}
}

// ParseCustomerSort accepts an empty string as SortBalanceDesc.
func ParseCustomerSort(s string) (CustomerSort, error) {
	switch o := CustomerSort(s); o {
	case "":
		return SortBalanceDesc, nil
	case SortBalanceDesc, SortBalanceAsc, SortRecent, SortNameAsc, SortNameDesc:
		return o, nil
	}
	return "", &ValidationError{Field: "sort", Reason: fmt.Sprintf("unknown sort %q", s)}
}

func (f CustomerFilter) match(cs CustomerSummary) bool {
	switch f {
	case FilterWithBalance:
		return cs.OutstandingBalance.IsPositive()
	case FilterPaid:
		return cs.OutstandingBalance.IsZero()
	case FilterOverdue:
		return cs.Tag == TagOverdue
	default:
		return true
	}
}

// ListCustomers returns filtered and sorted customer summaries.
func (s *Service) ListCustomers(ctx context.Context, filter CustomerFilter, order CustomerSort) ([]CustomerSummary, error) {
	b, err := s.loadBook(ctx)
	if err != nil {
		return nil, err
	}
	out := []CustomerSummary{}
	for _, cs := range s.summaries(b) {
		if filter.match(cs) {
			out = append(out, cs)
		}
	}
	sortSummaries(out, order)
	return out, nil
}

// SearchCustomers matches name or phone, case-insensitively.
func (s *Service) SearchCustomers(ctx context.Context, query string) ([]CustomerSummary, error) {
	b, err := s.loadBook(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []CustomerSummary{}
	for _, cs := range s.summaries(b) {
		if q == "" ||
			strings.Contains(strings.ToLower(cs.Name), q) ||
			strings.Contains(strings.ToLower(cs.Phone), q) {
			out = append(out, cs)
		}
	}
	sortSummaries(out, SortNameAsc)
	return out, nil
}

func sortSummaries(list []CustomerSummary, order CustomerSort) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch order {
		case SortBalanceAsc:
			return a.OutstandingBalance.LessThan(b.OutstandingBalance)
		case SortRecent:
			// Customers without any transaction go last.
			if a.LastTransactionDate == nil || b.LastTransactionDate == nil {
				return a.LastTransactionDate != nil && b.LastTransactionDate == nil
			}
			return a.LastTransactionDate.After(*b.LastTransactionDate)
		case SortNameAsc:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortNameDesc:
			return strings.ToLower(a.Name) > strings.ToLower(b.Name)
		default:
			return a.OutstandingBalance.GreaterThan(b.OutstandingBalance)
		}
	})
}
