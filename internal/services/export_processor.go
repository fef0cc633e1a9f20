package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flow/internal/amqp"
	"flow/internal/log"
	"flow/internal/sheets"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often a full export runs without any change event (default: 15m)
	Interval time.Duration

	// Debounce coalesces bursts of change events into one export (default: 2s)
	Debounce time.Duration

	// MaxRetries is the number of attempts per export (default: 3)
	MaxRetries int

	// RetryDelay is the wait before the first retry, doubled on each attempt (default: 5s)
	RetryDelay time.Duration
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval:   15 * time.Minute,
		Debounce:   2 * time.Second,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
	}
}

// ExportProcessor keeps the spreadsheet in step with the stored
// transactions: change events and a periodic tick both trigger a full
// export of the transaction list and its projection.
type ExportProcessor struct {
	repo     TransactionReader
	forecast *ForecastService
	exporter sheets.Exporter
	config   ExportProcessorConfig

	trigger chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor. Zero config fields take
// their defaults.
func NewExportProcessor(repo TransactionReader, forecast *ForecastService, exporter sheets.Exporter, config ExportProcessorConfig) *ExportProcessor {
	def := DefaultExportProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Debounce <= 0 {
		config.Debounce = def.Debounce
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = def.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	return &ExportProcessor{
		repo:     repo,
		forecast: forecast,
		exporter: exporter,
		config:   config,
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"interval", p.config.Interval,
		"debounce", p.config.Debounce)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// HandleChange is the change-event handler. It drops cached projections and
// schedules an export; it never blocks on the export itself.
func (p *ExportProcessor) HandleChange(ctx context.Context, msg *amqp.TransactionChangeMessage) error {
	if p.forecast != nil {
		p.forecast.Invalidate()
	}
	select {
	case p.trigger <- struct{}{}:
	default:
		// An export is already pending.
	}
	slog.DebugContext(ctx, "Export scheduled", "id", msg.ID, "op", msg.Op)
	return nil
}

// Export writes the current transactions and their projection to the
// default horizon.
func (p *ExportProcessor) Export(ctx context.Context) error {
	txs, err := p.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	points, err := p.forecast.Cashflow(ctx, p.forecast.DefaultEnd())
	if err != nil {
		return fmt.Errorf("project cashflow: %w", err)
	}

	if err := p.exporter.ExportTransactions(ctx, txs); err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}
	if err := p.exporter.ExportCashflow(ctx, points); err != nil {
		return fmt.Errorf("export cashflow: %w", err)
	}

	slog.InfoContext(ctx, "Export completed",
		log.FieldOperation, log.OpExport,
		"transactions", len(txs),
		"days", len(points))
	return nil
}

// runLoop is the main processing loop
func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	debounce := time.NewTimer(p.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	// Export immediately on startup
	p.exportWithRetry(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-p.trigger:
			debounce.Reset(p.config.Debounce)
		case <-debounce.C:
			p.exportWithRetry(ctx)
		case <-ticker.C:
			p.exportWithRetry(ctx)
		}
	}
}

func (p *ExportProcessor) exportWithRetry(ctx context.Context) {
	delay := p.config.RetryDelay
	for attempt := 1; ; attempt++ {
		err := p.Export(ctx)
		if err == nil {
			return
		}
		if attempt >= p.config.MaxRetries {
			slog.ErrorContext(ctx, "Export failed permanently after max retries",
				"attempts", attempt,
				"error", err)
			return
		}

		slog.WarnContext(ctx, "Export failed, retrying",
			"attempt", attempt,
			"backoff", delay,
			"error", err)
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}
