package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flow/internal/core"
	"flow/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id, name string) core.Transaction {
	return core.Transaction{
		ID:         id,
		Name:       name,
		Amount:     decimal.NewFromInt(-1200),
		BaseDate:   core.NewDate(2024, 1, 1),
		Recurrence: core.Every(1, core.UnitMonth),
	}
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "transactions.json"))
	require.NoError(t, err)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transactions.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Create(ctx, sample("a", "Rent")))
	require.NoError(t, s.Create(ctx, sample("b", "Gym")))
	assert.ErrorIs(t, s.Create(ctx, sample("a", "Again")), store.ErrExists)

	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Gym", got.Name)

	updated := sample("b", "Gym monthly")
	updated.Amount = decimal.NewFromInt(-45)
	require.NoError(t, s.Update(ctx, updated))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "-45", got.Amount.String())

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), core.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, sample("zzz", "x")), core.ErrNotFound)

	// Reopen from disk.
	reopened, err := Open(path)
	require.NoError(t, err)
	items, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Gym monthly", items[0].Name)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "transactions.json"))
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Create(ctx, sample(id, id)))
	}

	items, err := s.List(ctx)
	require.NoError(t, err)
	ids := []string{items[0].ID, items[1].ID, items[2].ID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestOpenAssignsIDsToLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	legacy := `[{"name":"Salary","amount":3000,"baseDate":"2024-01-25T00:00:00.000Z","interval":"MONTHLY"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s, err := Open(path)
	require.NoError(t, err)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, core.Every(1, core.UnitMonth), items[0].Recurrence)

	// The rewritten file uses the canonical schema and keeps the ID.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"recurrence"`)
	assert.Contains(t, string(data), items[0].ID)
	assert.NotContains(t, string(data), `"interval": "MONTHLY"`)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestReloadDetectsExternalEdits(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transactions.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, sample("a", "Rent")))

	changed, err := s.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "own write is not a change")

	data, err := core.EncodeTransactions([]core.Transaction{sample("a", "Rent"), sample("b", "Car")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	changed, err = s.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	items, _ := s.List(ctx)
	assert.Len(t, items, 2)
}

func TestWatchCallsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	s, err := Open(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	data, err := core.EncodeTransactions([]core.Transaction{sample("x", "External")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("onChange was not called")
	}

	got, err := s.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "External", got.Name)

	cancel()
	assert.NoError(t, <-done)
}
