// Package services orchestrates transaction persistence, change events and
// cash-flow forecasts.
package services

import (
	"context"

	"flow/internal/amqp"
	"flow/internal/core"
)

// Ports the services depend on. Implementations live in internal/store,
// internal/storage and internal/amqp.
//
//go:generate mockgen -destination=mocks/mock_ports.go -source=interface.go
type (
	TransactionReader interface {
		List(ctx context.Context) ([]core.Transaction, error)
		Get(ctx context.Context, id string) (core.Transaction, error)
	}

	TransactionRepository interface {
		TransactionReader
		Create(ctx context.Context, t core.Transaction) error
		Update(ctx context.Context, t core.Transaction) error
		Delete(ctx context.Context, id string) error
	}

	// BulkImporter is implemented by repositories that can insert many
	// transactions at once, skipping IDs already stored. It returns the IDs
	// it inserted.
	BulkImporter interface {
		Import(ctx context.Context, txs []core.Transaction) ([]string, error)
	}

	ChangePublisher interface {
		PublishTransactionChange(ctx context.Context, id string, op amqp.Op) error
	}

	// Invalidator drops derived data after the transaction set changes.
	Invalidator interface {
		Invalidate()
	}
)
