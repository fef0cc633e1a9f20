package memory

import (
	"context"
	"sync"

	"flow/internal/core"
	ports "flow/internal/sheets"
)

// Store is an in-process exporter keeping the last export of each tab.
type Store struct {
	mu      sync.Mutex
	txs     []core.Transaction
	points  []core.CashflowPoint
	exports int
	err     error
}

var _ ports.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ExportTransactions replaces the stored transaction list.
func (s *Store) ExportTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.txs = append([]core.Transaction(nil), txs...)
	s.exports++
	return nil
}

// ExportCashflow replaces the stored cash-flow series.
func (s *Store) ExportCashflow(_ context.Context, points []core.CashflowPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.points = append([]core.CashflowPoint(nil), points...)
	s.exports++
	return nil
}

// Fail makes every following export return err. Nil clears it.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Transactions returns a copy of the last exported transactions.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...)
}

// Cashflow returns a copy of the last exported series.
func (s *Store) Cashflow() []core.CashflowPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CashflowPoint(nil), s.points...)
}

// Exports counts successful tab writes.
func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
