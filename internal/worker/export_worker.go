// Package worker runs the change-event consumer that keeps the spreadsheet
// export current.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flow/internal/amqp"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// ChangeConsumer delivers change events until ctx is done or the connection
// drops.
type ChangeConsumer interface {
	ConsumeTransactionChanges(ctx context.Context, handler func(context.Context, *amqp.TransactionChangeMessage) error) error
}

// Processor is the export side of the worker.
type Processor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleChange(ctx context.Context, msg *amqp.TransactionChangeMessage) error
}

// ExportWorker feeds change events to the processor, reconnecting to the
// broker with backoff when the consumer fails.
type ExportWorker struct {
	consumer  ChangeConsumer
	processor Processor

	reconnectDelay time.Duration
}

// NewExportWorker creates the worker. consumer may be nil, in which case only
// the processor's periodic export runs.
func NewExportWorker(consumer ChangeConsumer, processor Processor) *ExportWorker {
	return &ExportWorker{
		consumer:       consumer,
		processor:      processor,
		reconnectDelay: minReconnectDelay,
	}
}

// Run blocks until ctx is done. It returns nil on a clean shutdown.
func (w *ExportWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start export processor: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.processor.Stop(stopCtx); err != nil {
			slog.Warn("Failed to stop export processor", "error", err)
		}
	}()

	if w.consumer == nil {
		slog.InfoContext(ctx, "No change consumer configured, running periodic exports only")
		<-ctx.Done()
		return nil
	}

	delay := w.reconnectDelay
	for {
		err := w.consumer.ConsumeTransactionChanges(ctx, w.processor.HandleChange)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("consumer stopped")
		}

		slog.WarnContext(ctx, "Change consumer stopped, reconnecting",
			"error", err,
			"backoff", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}
