// Package recurrence decides whether a transaction occurs on a calendar day.
//
// Each recurrence unit (day, week, month, year) has its own Rule that
// encapsulates the calendar arithmetic for that unit. Rules are looked up in a
// registry by unit; a unit without a rule never applies.
package recurrence

import (
	"flow/internal/core"
)

// Rule is the strategy interface for one recurrence unit.
type Rule interface {
	// Matches reports whether date falls on base plus a whole multiple of
	// interval units. interval is always at least 1.
	Matches(base, date core.Date, interval int) bool
}

// DayRule implements Rule for daily recurrences.
type DayRule struct{}

// Matches returns true if the day count is divisible by interval.
func (DayRule) Matches(base, date core.Date, interval int) bool {
	return base.DaysUntil(date)%int64(interval) == 0
}

// WeekRule implements Rule for weekly recurrences.
type WeekRule struct{}

// Matches returns true if the day count is divisible by interval weeks.
func (WeekRule) Matches(base, date core.Date, interval int) bool {
	return base.DaysUntil(date)%(int64(interval)*7) == 0
}

// MonthRule implements Rule for monthly recurrences.
type MonthRule struct{}

// Matches returns true on the anchor's day of month in every interval-th
// month. There is no end-of-month rollover: an anchor on the 31st is skipped
// in months that have no 31st.
func (MonthRule) Matches(base, date core.Date, interval int) bool {
	if date.Day() != base.Day() {
		return false
	}
	return base.MonthsUntil(date)%interval == 0
}

// YearRule implements Rule for yearly recurrences.
type YearRule struct{}

// Matches returns true on the anchor's month and day every interval years.
// A Feb 29 anchor only matches in leap years.
func (YearRule) Matches(base, date core.Date, interval int) bool {
	if date.Month() != base.Month() || date.Day() != base.Day() {
		return false
	}
	return (date.Year()-base.Year())%interval == 0
}

// rules maps recurrence units to their rule.
var rules = map[core.Unit]Rule{
	core.UnitDay:   DayRule{},
	core.UnitWeek:  WeekRule{},
	core.UnitMonth: MonthRule{},
	core.UnitYear:  YearRule{},
}

// RuleFor returns the rule for a unit, or false if the unit is unknown.
func RuleFor(unit core.Unit) (Rule, bool) {
	rule, ok := rules[unit]
	return rule, ok
}

// IsApplicable reports whether t occurs on date. It is pure and total:
// an unknown recurrence type or unit, a non-positive interval or a missing
// base date all yield false.
func IsApplicable(t core.Transaction, date core.Date) bool {
	base := t.BaseDate
	if base.IsZero() || date.IsZero() {
		return false
	}

	switch t.Recurrence.Type {
	case core.OneTime:
		return base.Equal(date)
	case core.Recurring:
		if t.Recurrence.Interval < 1 {
			return false
		}
		rule, ok := RuleFor(t.Recurrence.Unit)
		if !ok {
			return false
		}
		return rule.Matches(core.DateOf(base.Time), core.DateOf(date.Time), t.Recurrence.Interval)
	default:
		return false
	}
}
