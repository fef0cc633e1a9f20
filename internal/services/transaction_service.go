package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"flow/internal/amqp"
	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/store"
)

// TransactionService orchestrates transaction changes across the repository,
// the change publisher and the forecast cache.
type TransactionService struct {
	repo        TransactionRepository
	publisher   ChangePublisher
	invalidator Invalidator
	newID       func() string
}

// NewTransactionService wires the service. publisher and invalidator may be
// nil.
func NewTransactionService(repo TransactionRepository, publisher ChangePublisher, invalidator Invalidator) *TransactionService {
	return &TransactionService{
		repo:        repo,
		publisher:   publisher,
		invalidator: invalidator,
		newID:       uuid.NewString,
	}
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// Create validates t, assigns a new ID and stores it.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t = normalize(t)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.ID = s.newID()

	if err := s.repo.Create(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.changed(ctx, amqp.OpCreate, t)
	return t, nil
}

// Update replaces the stored transaction id with t.
func (s *TransactionService) Update(ctx context.Context, id string, t core.Transaction) (core.Transaction, error) {
	t = normalize(t)
	t.ID = id
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	s.changed(ctx, amqp.OpUpdate, t)
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}

	s.changed(ctx, amqp.OpDelete, t)
	return nil
}

// Import stores txs, keeping their IDs when present. Transactions whose ID
// is already stored are skipped. It returns how many were inserted.
func (s *TransactionService) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	prepared := make([]core.Transaction, 0, len(txs))
	for i, t := range txs {
		t = normalize(t)
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d (%q): %w", i, t.Name, err)
		}
		if t.ID == "" {
			t.ID = s.newID()
		}
		prepared = append(prepared, t)
	}

	var (
		inserted []string
		err      error
	)
	if bulk, ok := s.repo.(BulkImporter); ok {
		inserted, err = bulk.Import(ctx, prepared)
	} else {
		inserted, err = s.importEach(ctx, prepared)
	}
	if len(inserted) > 0 {
		s.invalidate()
		for _, id := range inserted {
			s.publish(ctx, amqp.OpCreate, id)
		}
	}
	if err != nil {
		return len(inserted), fmt.Errorf("import transactions: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentTransaction).InfoContext(ctx, "Transactions imported",
		log.FieldOperation, log.OpImport,
		log.FieldCount, len(inserted),
		"skipped", len(prepared)-len(inserted))
	return len(inserted), nil
}

// importEach creates txs one by one and returns the IDs it stored.
func (s *TransactionService) importEach(ctx context.Context, txs []core.Transaction) ([]string, error) {
	var inserted []string
	for _, t := range txs {
		err := s.repo.Create(ctx, t)
		if errors.Is(err, store.ErrExists) {
			continue
		}
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, t.ID)
	}
	return inserted, nil
}

func (s *TransactionService) changed(ctx context.Context, op amqp.Op, t core.Transaction) {
	s.invalidate()

	logger := log.NewStructuredLogger(log.FromContext(ctx))
	logger.LogTransactionChanged(ctx, string(op), t.ID, t.Name,
		t.Amount.String(), t.BaseDate.String(), t.Recurrence.String())

	s.publish(ctx, op, t.ID)
}

// publish never fails the caller: the change is already stored.
func (s *TransactionService) publish(ctx context.Context, op amqp.Op, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionChange(ctx, id, op); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to publish transaction change", err,
			log.ComponentAMQP, string(op), log.LogFields{log.FieldTransactionID: id})
	}
}

func (s *TransactionService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

// normalize trims the name, drops any time of day from the base date and
// clears the fields a one-time recurrence does not carry.
func normalize(t core.Transaction) core.Transaction {
	t.Name = strings.TrimSpace(t.Name)
	if !t.BaseDate.IsZero() {
		t.BaseDate = core.DateOf(t.BaseDate.Time)
	}
	if t.Recurrence.IsOneTime() {
		t.Recurrence = core.Once()
	}
	return t
}
