package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow/internal/amqp"
	"flow/internal/cache"
	"flow/internal/core"
	"flow/internal/services"
	mock_services "flow/internal/services/mocks"
	"flow/internal/sheets/memory"
)

func newExportFixture(t *testing.T, config services.ExportProcessorConfig) (*services.ExportProcessor, *memory.Store) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mock_services.NewMockTransactionReader(ctrl)
	repo.EXPECT().List(gomock.Any()).Return(forecastFixture(), nil).AnyTimes()

	forecast := services.NewForecastService(repo, cache.NewLRUCache[[]core.CashflowPoint](2, time.Minute), 12)
	services.SetClock(forecast, func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) })

	exporter := memory.New()
	return services.NewExportProcessor(repo, forecast, exporter, config), exporter
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	config := services.DefaultExportProcessorConfig()

	assert.Equal(t, 15*time.Minute, config.Interval)
	assert.Equal(t, 2*time.Second, config.Debounce)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 5*time.Second, config.RetryDelay)
}

func TestExportProcessor_Export(t *testing.T) {
	p, exporter := newExportFixture(t, services.ExportProcessorConfig{})

	require.NoError(t, p.Export(context.Background()))

	assert.Len(t, exporter.Transactions(), 2)
	points := exporter.Cashflow()
	require.NotEmpty(t, points)
	assert.Equal(t, "2024-01-01", points[0].Date.String())
	assert.Equal(t, "2025-01-15", points[len(points)-1].Date.String())
}

func TestExportProcessor_ExportError(t *testing.T) {
	p, exporter := newExportFixture(t, services.ExportProcessorConfig{})
	exporter.Fail(errors.New("quota exceeded"))

	err := p.Export(context.Background())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestExportProcessor_ExportsOnStartAndOnChange(t *testing.T) {
	p, exporter := newExportFixture(t, services.ExportProcessorConfig{
		Interval: time.Hour,
		Debounce: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())

	// Startup export writes both tabs.
	require.Eventually(t, func() bool { return exporter.Exports() == 2 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.HandleChange(ctx, amqp.NewTransactionChangeMessage("r", amqp.OpUpdate)))
	}
	require.Eventually(t, func() bool { return exporter.Exports() >= 4 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.IsRunning())
}

func TestExportProcessor_StartTwice(t *testing.T) {
	p, _ := newExportFixture(t, services.ExportProcessorConfig{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop(context.Background())

	assert.Error(t, p.Start(ctx))
}

func TestExportProcessor_StopNotRunning(t *testing.T) {
	p, _ := newExportFixture(t, services.ExportProcessorConfig{})
	assert.NoError(t, p.Stop(context.Background()))
}

func TestExportProcessor_RetriesFailedExport(t *testing.T) {
	p, exporter := newExportFixture(t, services.ExportProcessorConfig{
		Interval:   time.Hour,
		MaxRetries: 5,
		RetryDelay: 20 * time.Millisecond,
	})
	exporter.Fail(errors.New("temporarily unavailable"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	defer p.Stop(context.Background())

	time.Sleep(5 * time.Millisecond)
	exporter.Fail(nil)

	require.Eventually(t, func() bool { return exporter.Exports() == 2 }, time.Second, 5*time.Millisecond)
}
