package services

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"flow/internal/cache"
	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/projection"
)

// ForecastService projects the stored transactions and caches the series by
// end date until the transaction set changes.
type ForecastService struct {
	repo          TransactionReader
	cache         cache.Cache[[]core.CashflowPoint]
	horizonMonths int
	now           func() time.Time

	generation atomic.Uint64
	group      singleflight.Group
}

// Forecast is the headline view of a projection.
type Forecast struct {
	Count        int
	Total        decimal.Decimal
	Today        core.Date
	TodayBalance decimal.Decimal
	Projection   projection.Summary
}

// NewForecastService creates the service. c may be nil to disable caching;
// horizonMonths below 1 falls back to one year.
func NewForecastService(repo TransactionReader, c cache.Cache[[]core.CashflowPoint], horizonMonths int) *ForecastService {
	if horizonMonths < 1 {
		horizonMonths = 12
	}
	return &ForecastService{
		repo:          repo,
		cache:         c,
		horizonMonths: horizonMonths,
		now:           time.Now,
	}
}

// Today is the current local calendar date.
func (s *ForecastService) Today() core.Date {
	return core.DateOf(s.now())
}

// DefaultEnd is the configured number of months after today.
func (s *ForecastService) DefaultEnd() core.Date {
	today := s.Today()
	if s.horizonMonths == 12 {
		return projection.DefaultHorizon(today)
	}
	return core.DateOf(today.Time.AddDate(0, s.horizonMonths, 0))
}

// Cashflow returns the daily series from the earliest base date through end.
// A zero end means DefaultEnd.
func (s *ForecastService) Cashflow(ctx context.Context, end core.Date) ([]core.CashflowPoint, error) {
	if end.IsZero() {
		end = s.DefaultEnd()
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentForecast)

	gen := s.generation.Load()
	key := end.String()
	if s.cache != nil {
		if points, ok := s.cache.Get(key); ok {
			logger.DebugContext(ctx, "Projection served from cache", log.FieldEnd, key, log.FieldCacheHit, true)
			return points, nil
		}
	}

	v, err, _ := s.group.Do(strconv.FormatUint(gen, 10)+"/"+key, func() (any, error) {
		txs, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}

		started := time.Now()
		points, err := projection.ProjectContext(ctx, txs, end)
		if err != nil {
			return nil, fmt.Errorf("project to %s: %w", key, err)
		}

		fields := log.NewFields().WithOperation(log.OpProject)
		if len(points) > 0 {
			fields = fields.WithRange(points[0].Date.String(), key, len(points))
		}
		logger.InfoContext(ctx, "Projection computed", append(fields.ToSlice(),
			log.FieldCount, len(txs),
			log.FieldDuration, time.Since(started).Milliseconds())...)

		// A change since gen means these points may already be stale.
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(key, points)
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.CashflowPoint), nil
}

// CashflowSince is Cashflow without the points before from.
func (s *ForecastService) CashflowSince(ctx context.Context, from, end core.Date) ([]core.CashflowPoint, error) {
	points, err := s.Cashflow(ctx, end)
	if err != nil {
		return nil, err
	}
	return projection.Since(points, from), nil
}

// Horizons projects to each end date concurrently, without caching.
func (s *ForecastService) Horizons(ctx context.Context, ends []core.Date) ([][]core.CashflowPoint, error) {
	txs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return projection.ProjectHorizons(ctx, txs, ends)
}

// Summary condenses the projection to end (DefaultEnd if zero).
func (s *ForecastService) Summary(ctx context.Context, end core.Date) (Forecast, error) {
	txs, err := s.repo.List(ctx)
	if err != nil {
		return Forecast{}, fmt.Errorf("list transactions: %w", err)
	}
	points, err := s.Cashflow(ctx, end)
	if err != nil {
		return Forecast{}, err
	}

	today := s.Today()
	return Forecast{
		Count:        len(txs),
		Total:        projection.Total(txs),
		Today:        today,
		TodayBalance: balanceOn(points, today),
		Projection:   projection.Summarize(points),
	}, nil
}

// Invalidate drops every cached projection.
func (s *ForecastService) Invalidate() {
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Purge()
	}
}

// balanceOn is the balance at the end of day: zero before the series starts
// and the final balance after it ends.
func balanceOn(points []core.CashflowPoint, day core.Date) decimal.Decimal {
	balance := decimal.Zero
	for _, p := range points {
		if p.Date.After(day) {
			break
		}
		balance = p.Amount
	}
	return balance
}
