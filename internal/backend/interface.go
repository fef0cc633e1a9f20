// Package backend builds the transaction repository selected by
// configuration, together with the optional change publisher.
package backend

import (
	"context"

	"flow/internal/amqp"
	"flow/internal/store"
)

// Backend is the repository every entry point works against.
type Backend = store.Repository

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// WatchFunc blocks until ctx is done, calling onChange after the backing
// data is modified outside the process.
type WatchFunc func(ctx context.Context, onChange func()) error

// BackendResult contains the backend instance and optional extras
type BackendResult struct {
	Backend Backend

	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client

	// Watch is nil for backends that cannot be edited externally.
	Watch WatchFunc

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// File specific
	TransactionsFile string

	// SQLite specific
	SQLiteDBPath string

	// Change events, optional for both backends
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
