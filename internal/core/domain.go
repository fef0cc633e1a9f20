package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	OneTime   RecurrenceType = "ONE_TIME"
	Recurring RecurrenceType = "RECURRING"
)

const (
	UnitDay   Unit = "DAY"
	UnitWeek  Unit = "WEEK"
	UnitMonth Unit = "MONTH"
	UnitYear  Unit = "YEAR"
)

// Interval values of the first-generation schema, where recurrence was a
// single enum field.
const (
	LegacyOnce    = "ONCE"
	LegacyDaily   = "DAILY"
	LegacyWeekly  = "WEEKLY"
	LegacyMonthly = "MONTHLY"
	LegacyYearly  = "YEARLY"
)

const maxNameLength = 200

type (
	RecurrenceType string

	Unit string

	// Recurrence is a tagged variant: ONE_TIME carries no fields, RECURRING
	// carries Interval and Unit.
	Recurrence struct {
		Type     RecurrenceType `json:"type"`
		Interval int            `json:"interval,omitempty"`
		Unit     Unit           `json:"unit,omitempty"`
	}

	Transaction struct {
		ID         string
		Name       string
		Amount     decimal.Decimal
		BaseDate   Date
		Recurrence Recurrence
	}

	// CashflowPoint is one day of a projection: the cumulative balance at the
	// end of Date.
	CashflowPoint struct {
		Date   Date            `json:"date"`
		Amount decimal.Decimal `json:"amount"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrZeroAmount        = errors.New("amount must not be zero")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = fmt.Errorf("name too long (max %d characters)", maxNameLength)
	ErrInvalidRecurrence = errors.New("invalid recurrence type")
	ErrInvalidInterval   = errors.New("interval must be at least 1")
	ErrInvalidUnit       = errors.New("invalid recurrence unit")
	ErrNotFound          = errors.New("transaction not found")
)

// Once returns the one-time recurrence.
func Once() Recurrence {
	return Recurrence{Type: OneTime}
}

// Every returns a recurrence repeating every interval units.
func Every(interval int, unit Unit) Recurrence {
	return Recurrence{Type: Recurring, Interval: interval, Unit: unit}
}

// ParseUnit accepts unit names case-insensitively, singular or plural.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "S"))
	if !u.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
	return u, nil
}

func (u Unit) IsValid() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	default:
		return false
	}
}

// FromLegacyInterval maps a first-generation interval value to the
// canonical recurrence. Unknown values are kept as an unknown recurrence
// type so evaluation treats them as never applicable.
func FromLegacyInterval(interval string) Recurrence {
	switch strings.ToUpper(strings.TrimSpace(interval)) {
	case LegacyOnce:
		return Once()
	case LegacyDaily:
		return Every(1, UnitDay)
	case LegacyWeekly:
		return Every(1, UnitWeek)
	case LegacyMonthly:
		return Every(1, UnitMonth)
	case LegacyYearly:
		return Every(1, UnitYear)
	default:
		return Recurrence{Type: RecurrenceType(interval)}
	}
}

func (r Recurrence) IsOneTime() bool {
	return r.Type == OneTime
}

func (r Recurrence) Validate() error {
	switch r.Type {
	case OneTime:
		return nil
	case Recurring:
		if r.Interval < 1 {
			return ErrInvalidInterval
		}
		if !r.Unit.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidUnit, r.Unit)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, r.Type)
	}
}

// String returns a short human label such as "monthly" or "every 2 weeks".
func (r Recurrence) String() string {
	switch r.Type {
	case OneTime:
		return "once"
	case Recurring:
		name := strings.ToLower(string(r.Unit))
		if r.Interval == 1 {
			switch r.Unit {
			case UnitDay:
				return "daily"
			case UnitWeek, UnitMonth, UnitYear:
				return name + "ly"
			}
		}
		return fmt.Sprintf("every %d %ss", r.Interval, name)
	default:
		return "unknown"
	}
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if len(t.Name) > maxNameLength {
		return ErrNameTooLong
	}
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if err := t.BaseDate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if err := t.Recurrence.Validate(); err != nil {
		return err
	}
	return nil
}
