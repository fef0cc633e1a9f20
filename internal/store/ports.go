// Package store declares the persistence ports for transactions.
package store

import (
	"context"
	"errors"

	"flow/internal/core"
)

// Ports for transaction persistence. Get, Update and Delete return
// core.ErrNotFound for an unknown ID.
type (
	Reader interface {
		List(ctx context.Context) ([]core.Transaction, error)
		Get(ctx context.Context, id string) (core.Transaction, error)
	}

	Writer interface {
		Create(ctx context.Context, t core.Transaction) error
		Update(ctx context.Context, t core.Transaction) error
		Delete(ctx context.Context, id string) error
	}

	Repository interface {
		Reader
		Writer
	}
)

// ErrExists is returned by Create when the ID is already stored.
var ErrExists = errors.New("transaction already exists")
