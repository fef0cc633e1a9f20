package projection

import (
	"context"
	"testing"

	"flow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(name string, amount int64, base string, rec core.Recurrence) core.Transaction {
	return core.Transaction{
		ID:         name,
		Name:       name,
		Amount:     decimal.NewFromInt(amount),
		BaseDate:   core.MustParseDate(base),
		Recurrence: rec,
	}
}

func balances(points []core.CashflowPoint) map[string]string {
	out := make(map[string]string, len(points))
	for _, p := range points {
		out[p.Date.String()] = p.Amount.String()
	}
	return out
}

func TestProject_MonthlyRent(t *testing.T) {
	rent := newTx("Rent", -1200, "2024-01-01", core.Every(1, core.UnitMonth))

	points := Project([]core.Transaction{rent}, core.MustParseDate("2024-03-01"))

	require.Len(t, points, 61)
	got := balances(points)
	assert.Equal(t, "-1200", got["2024-01-01"])
	assert.Equal(t, "-1200", got["2024-01-31"])
	assert.Equal(t, "-2400", got["2024-02-01"])
	assert.Equal(t, "-2400", got["2024-02-29"])
	assert.Equal(t, "-3600", got["2024-03-01"])
}

func TestProject_SameDaySum(t *testing.T) {
	txs := []core.Transaction{
		newTx("Bonus", 500, "2024-05-01", core.Once()),
		newTx("Dinner", -200, "2024-05-01", core.Once()),
	}

	points := Project(txs, core.MustParseDate("2024-05-10"))

	require.Len(t, points, 10)
	for _, p := range points {
		assert.True(t, p.Amount.Equal(decimal.NewFromInt(300)), "balance on %s = %s", p.Date, p.Amount)
	}
}

func TestProject_StartsAtEarliestBaseDate(t *testing.T) {
	txs := []core.Transaction{
		newTx("Later", 10, "2024-03-10", core.Once()),
		newTx("Earlier", 5, "2024-03-05", core.Every(2, core.UnitDay)),
	}

	points := Project(txs, core.MustParseDate("2024-03-10"))

	require.NotEmpty(t, points)
	assert.Equal(t, "2024-03-05", points[0].Date.String())
	assert.Equal(t, "2024-03-10", points[len(points)-1].Date.String())
	// 5 on 03-05, 03-07, 03-09 plus 10 on 03-10.
	assert.Equal(t, "25", points[len(points)-1].Amount.String())
}

func TestProject_ConsecutiveDays(t *testing.T) {
	txs := []core.Transaction{newTx("Daily", 1, "2023-12-25", core.Every(1, core.UnitDay))}

	points := Project(txs, core.MustParseDate("2025-01-05"))

	for i := 1; i < len(points); i++ {
		assert.Equal(t, int64(1), points[i-1].Date.DaysUntil(points[i].Date), "gap before %s", points[i].Date)
		assert.Equal(t, int64(i+1), points[i].Amount.IntPart())
	}
}

func TestProject_EmptyAndDegenerate(t *testing.T) {
	end := core.MustParseDate("2024-01-31")

	tests := []struct {
		name string
		txs  []core.Transaction
		end  core.Date
	}{
		{name: "nil input", txs: nil, end: end},
		{name: "empty input", txs: []core.Transaction{}, end: end},
		{name: "end before start", txs: []core.Transaction{newTx("x", 1, "2024-02-01", core.Once())}, end: end},
		{name: "zero end", txs: []core.Transaction{newTx("x", 1, "2024-01-01", core.Once())}, end: core.Date{}},
		{name: "only undated", txs: []core.Transaction{{Name: "x", Amount: decimal.NewFromInt(1), Recurrence: core.Once()}}, end: end},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := Project(tt.txs, tt.end)
			assert.NotNil(t, points)
			assert.Empty(t, points)
		})
	}
}

func TestProject_SingleDayRange(t *testing.T) {
	points := Project([]core.Transaction{newTx("x", 7, "2024-01-01", core.Once())}, core.MustParseDate("2024-01-01"))

	require.Len(t, points, 1)
	assert.Equal(t, "7", points[0].Amount.String())
}

func TestProject_MalformedContributesNothing(t *testing.T) {
	txs := []core.Transaction{
		newTx("ok", 10, "2024-01-01", core.Once()),
		newTx("bad unit", 99, "2024-01-01", core.Every(1, core.Unit("FORTNIGHT"))),
		newTx("bad interval", 99, "2024-01-01", core.Every(0, core.UnitDay)),
		newTx("bad type", 99, "2024-01-01", core.Recurrence{Type: "LUNAR"}),
		newTx("zero", 0, "2024-01-01", core.Every(1, core.UnitDay)),
	}

	points := Project(txs, core.MustParseDate("2024-01-05"))

	require.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, "10", p.Amount.String())
	}
}

func TestProject_Idempotent(t *testing.T) {
	txs := []core.Transaction{
		newTx("Rent", -1200, "2024-01-31", core.Every(1, core.UnitMonth)),
		newTx("Salary", 3000, "2024-01-25", core.Every(1, core.UnitMonth)),
		newTx("Gym", -30, "2024-01-02", core.Every(2, core.UnitWeek)),
		newTx("Insurance", -400, "2024-02-29", core.Every(1, core.UnitYear)),
	}
	end := core.MustParseDate("2028-03-01")

	first := Project(txs, end)
	second := Project(txs, end)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Date.Equal(second[i].Date))
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
}

func TestProject_DecimalPrecision(t *testing.T) {
	txs := []core.Transaction{{
		Name:       "Coffee",
		Amount:     decimal.RequireFromString("-0.10"),
		BaseDate:   core.MustParseDate("2024-01-01"),
		Recurrence: core.Every(1, core.UnitDay),
	}}

	points := Project(txs, core.MustParseDate("2024-01-30"))

	require.Len(t, points, 30)
	assert.True(t, points[29].Amount.Equal(decimal.RequireFromString("-3")))
}

func TestProjectContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	points, err := ProjectContext(ctx, []core.Transaction{newTx("x", 1, "2000-01-01", core.Every(1, core.UnitDay))}, core.MustParseDate("2100-01-01"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, points)
}

func TestProjectHorizons(t *testing.T) {
	txs := []core.Transaction{newTx("Rent", -1200, "2024-01-01", core.Every(1, core.UnitMonth))}
	ends := []core.Date{
		core.MustParseDate("2024-03-01"),
		core.MustParseDate("2023-01-01"),
		core.MustParseDate("2024-01-15"),
	}

	results, err := ProjectHorizons(context.Background(), txs, ends)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, results[0], 61)
	assert.Empty(t, results[1])
	assert.Len(t, results[2], 15)
	assert.Equal(t, "-3600", results[0][60].Amount.String())
}

func TestProjectHorizons_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProjectHorizons(ctx, []core.Transaction{newTx("x", 1, "2024-01-01", core.Once())}, []core.Date{core.MustParseDate("2024-02-01")})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultHorizon(t *testing.T) {
	assert.Equal(t, "2025-05-01", DefaultHorizon(core.MustParseDate("2024-05-01")).String())
	assert.Equal(t, "2025-03-01", DefaultHorizon(core.MustParseDate("2024-02-29")).String())
}

func TestSince(t *testing.T) {
	points := Project([]core.Transaction{newTx("Rent", -1200, "2024-01-01", core.Every(1, core.UnitMonth))}, core.MustParseDate("2024-03-01"))

	tail := Since(points, core.MustParseDate("2024-02-15"))
	require.NotEmpty(t, tail)
	assert.Equal(t, "2024-02-15", tail[0].Date.String())
	assert.Equal(t, "-2400", tail[0].Amount.String())

	assert.Len(t, Since(points, core.Date{}), len(points))
	assert.Len(t, Since(points, core.MustParseDate("2023-01-01")), len(points))
	assert.Empty(t, Since(points, core.MustParseDate("2025-01-01")))
}

func TestStartDate(t *testing.T) {
	_, ok := StartDate(nil)
	assert.False(t, ok)

	start, ok := StartDate([]core.Transaction{
		{Name: "undated"},
		newTx("b", 1, "2024-06-01", core.Once()),
		newTx("a", 1, "2024-02-01", core.Once()),
	})
	assert.True(t, ok)
	assert.Equal(t, "2024-02-01", start.String())
}
