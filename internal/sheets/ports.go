// Package sheets declares the spreadsheet export port.
package sheets

import (
	"context"

	"flow/internal/core"
)

// Ports for outbound adapters.
type (
	// Exporter replaces the contents of the exported tabs. Each call writes
	// the whole list, so a failed export can simply be retried.
	Exporter interface {
		ExportTransactions(ctx context.Context, txs []core.Transaction) error
		ExportCashflow(ctx context.Context, points []core.CashflowPoint) error
	}
)
