package projection

import (
	"flow/internal/core"

	"github.com/shopspring/decimal"
)

// Summary condenses a cash-flow series.
type Summary struct {
	Start   core.Date       `json:"start"`
	End     core.Date       `json:"end"`
	Final   decimal.Decimal `json:"final"`
	Min     decimal.Decimal `json:"min"`
	MinDate core.Date       `json:"minDate"`
	Max     decimal.Decimal `json:"max"`
	MaxDate core.Date       `json:"maxDate"`
	Days    int             `json:"days"`
}

// Summarize returns the range, final balance and extremes of points. The
// first day reaching an extreme wins ties. An empty series gives a zero
// Summary.
func Summarize(points []core.CashflowPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	first := points[0]
	s := Summary{
		Start:   first.Date,
		End:     points[len(points)-1].Date,
		Final:   points[len(points)-1].Amount,
		Min:     first.Amount,
		MinDate: first.Date,
		Max:     first.Amount,
		MaxDate: first.Date,
		Days:    len(points),
	}
	for _, p := range points[1:] {
		if p.Amount.LessThan(s.Min) {
			s.Min, s.MinDate = p.Amount, p.Date
		}
		if p.Amount.GreaterThan(s.Max) {
			s.Max, s.MaxDate = p.Amount, p.Date
		}
	}
	return s
}

// Total sums the amounts of all transactions, each counted once.
func Total(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
