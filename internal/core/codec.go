package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// transactionJSON is the stored form of a transaction. Interval is the
// first-generation recurrence field and is only read, never written.
type transactionJSON struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Amount     json.Number `json:"amount"`
	BaseDate   string      `json:"baseDate"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
	Interval   string      `json:"interval,omitempty"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	rec := t.Recurrence
	if rec.IsOneTime() {
		rec = Once()
	}
	return json.Marshal(transactionJSON{
		ID:         t.ID,
		Name:       t.Name,
		Amount:     json.Number(t.Amount.String()),
		BaseDate:   t.BaseDate.ISOString(),
		Recurrence: &rec,
	})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}

	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, raw.Amount)
	}

	base, err := ParseDate(raw.BaseDate)
	if err != nil {
		return fmt.Errorf("decode baseDate: %w", err)
	}

	var rec Recurrence
	switch {
	case raw.Recurrence != nil:
		rec = *raw.Recurrence
	case raw.Interval != "":
		rec = FromLegacyInterval(raw.Interval)
	}

	*t = Transaction{
		ID:         raw.ID,
		Name:       raw.Name,
		Amount:     amount,
		BaseDate:   base,
		Recurrence: rec,
	}
	return nil
}

func (r *Recurrence) UnmarshalJSON(data []byte) error {
	type plain Recurrence
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode recurrence: %w", err)
	}
	p.Type = RecurrenceType(strings.ToUpper(strings.TrimSpace(string(p.Type))))
	p.Unit = Unit(strings.ToUpper(strings.TrimSpace(string(p.Unit))))
	*r = Recurrence(p)
	return nil
}

// DecodeTransactions reads a stored transaction list. Empty input is an empty
// list.
func DecodeTransactions(data []byte) ([]Transaction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var txs []Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txs, nil
}

// EncodeTransactions writes a transaction list in the canonical stored form.
func EncodeTransactions(txs []Transaction) ([]byte, error) {
	if txs == nil {
		txs = []Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return data, nil
}

func (p CashflowPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date   string      `json:"date"`
		Amount json.Number `json:"amount"`
	}{
		Date:   p.Date.String(),
		Amount: json.Number(p.Amount.String()),
	})
}
