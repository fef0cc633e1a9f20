package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flow/internal/core"
	"flow/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const selectColumns = `id, name, amount, base_date, recurrence_type, recurrence_interval, recurrence_unit`

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// List returns all transactions ordered by base date, then creation order.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM transactions ORDER BY base_date, created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, name, amount, base_date, recurrence_type, recurrence_interval, recurrence_unit
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Amount.String(), t.BaseDate.String(),
		string(t.Recurrence.Type), t.Recurrence.Interval, string(t.Recurrence.Unit),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrExists, t.ID)
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"name", t.Name,
		"amount", t.Amount.String(),
		"base_date", t.BaseDate.String(),
		"recurrence", t.Recurrence.String())
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			name = ?, amount = ?, base_date = ?,
			recurrence_type = ?, recurrence_interval = ?, recurrence_unit = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.Name, t.Amount.String(), t.BaseDate.String(),
		string(t.Recurrence.Type), t.Recurrence.Interval, string(t.Recurrence.Unit),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// Import inserts txs in one database transaction, skipping IDs that are
// already stored. It returns the IDs of the inserted rows.
func (r *SQLiteRepository) Import(ctx context.Context, txs []core.Transaction) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, name, amount, base_date, recurrence_type, recurrence_interval, recurrence_unit
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare import: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted []string
	for _, t := range txs {
		res, err := stmt.ExecContext(ctx,
			t.ID, t.Name, t.Amount.String(), t.BaseDate.String(),
			string(t.Recurrence.Type), t.Recurrence.Interval, string(t.Recurrence.Unit),
		)
		if err != nil {
			return nil, fmt.Errorf("import transaction %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Transactions imported to SQLite", "inserted", len(inserted), "total", len(txs))
	return inserted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		amount, baseDate string
		recType, recUnit string
		recInterval      int
	)
	if err := s.Scan(&t.ID, &t.Name, &amount, &baseDate, &recType, &recInterval, &recUnit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %s: %w: %q", t.ID, core.ErrInvalidAmount, amount)
	}
	if t.BaseDate, err = core.ParseDate(baseDate); err != nil {
		return t, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Recurrence = core.Recurrence{
		Type:     core.RecurrenceType(recType),
		Interval: recInterval,
		Unit:     core.Unit(recUnit),
	}
	return t, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
