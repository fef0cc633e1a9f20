// Package projection turns a set of transactions into a daily cumulative
// cash-flow series.
package projection

import (
	"context"

	"flow/internal/core"
	"flow/internal/recurrence"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// checkEvery is how many days are projected between context checks.
const checkEvery = 64

// Project walks every calendar day from the earliest base date through end
// (inclusive) and returns the running balance at the end of each day.
// Empty input, or an end before the earliest base date, yields an empty
// series.
func Project(txs []core.Transaction, end core.Date) []core.CashflowPoint {
	points, _ := ProjectContext(context.Background(), txs, end)
	return points
}

// ProjectContext is Project with cancellation. It returns ctx.Err() if the
// context is done before the walk finishes.
func ProjectContext(ctx context.Context, txs []core.Transaction, end core.Date) ([]core.CashflowPoint, error) {
	start, ok := StartDate(txs)
	if !ok || end.IsZero() {
		return []core.CashflowPoint{}, nil
	}
	end = core.DateOf(end.Time)
	if end.Before(start) {
		return []core.CashflowPoint{}, nil
	}

	points := make([]core.CashflowPoint, 0, start.DaysUntil(end)+1)
	balance := decimal.Zero
	for day, n := start, 0; !day.After(end); day, n = day.AddDays(1), n+1 {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, t := range txs {
			if recurrence.IsApplicable(t, day) {
				balance = balance.Add(t.Amount)
			}
		}
		points = append(points, core.CashflowPoint{Date: day, Amount: balance})
	}
	return points, nil
}

// StartDate returns the earliest base date among txs. Transactions without a
// base date are ignored; false means there is nothing to project.
func StartDate(txs []core.Transaction) (core.Date, bool) {
	var start core.Date
	found := false
	for _, t := range txs {
		if t.BaseDate.IsZero() {
			continue
		}
		base := core.DateOf(t.BaseDate.Time)
		if !found || base.Before(start) {
			start = base
			found = true
		}
	}
	return start, found
}

// ProjectHorizons projects the same transactions to several end dates in
// parallel. Results are returned in the order of ends.
func ProjectHorizons(ctx context.Context, txs []core.Transaction, ends []core.Date) ([][]core.CashflowPoint, error) {
	results := make([][]core.CashflowPoint, len(ends))
	g, ctx := errgroup.WithContext(ctx)
	for i, end := range ends {
		g.Go(func() error {
			points, err := ProjectContext(ctx, txs, end)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DefaultHorizon is the forecast end date used when none is given: one year
// after today.
func DefaultHorizon(today core.Date) core.Date {
	return core.DateOf(today.Time.AddDate(1, 0, 0))
}

// Since drops the points before from. Balances are unchanged, so the first
// remaining point still includes everything that happened earlier.
func Since(points []core.CashflowPoint, from core.Date) []core.CashflowPoint {
	if from.IsZero() {
		return points
	}
	for i, p := range points {
		if !p.Date.Before(from) {
			return points[i:]
		}
	}
	return []core.CashflowPoint{}
}
