package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"flow/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// maxHorizons bounds the number of end dates in one horizons request.
const maxHorizons = 12

// errBadBody marks a body that is not a JSON transaction.
var errBadBody = errors.New("invalid request body")

// ParseDateQuery reads an optional YYYY-MM-DD (or RFC3339) query parameter.
// A missing or blank value returns the zero Date.
func ParseDateQuery(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

// ParseEndQuery reads the optional end parameter. Dates after limit are
// rejected.
func ParseEndQuery(query url.Values, limit core.Date) (core.Date, error) {
	end, err := ParseDateQuery(query, "end")
	if err != nil {
		return core.Date{}, err
	}
	if err := checkEnd(end, limit); err != nil {
		return core.Date{}, err
	}
	return end, nil
}

func checkEnd(end, limit core.Date) error {
	if !end.IsZero() && end.After(limit) {
		return fmt.Errorf("end %s is after the latest allowed date %s", end, limit)
	}
	return nil
}

// ParseEndDates reads every end parameter, in order. Comma-separated values
// are accepted too. Dates after limit are rejected.
func ParseEndDates(query url.Values, limit core.Date) ([]core.Date, error) {
	var ends []core.Date
	for _, raw := range query["end"] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			d, err := core.ParseDate(v)
			if err != nil {
				return nil, fmt.Errorf("invalid end: %q", v)
			}
			if err := checkEnd(d, limit); err != nil {
				return nil, err
			}
			ends = append(ends, d)
		}
	}
	if len(ends) == 0 {
		return nil, errors.New("at least one end date is required")
	}
	if len(ends) > maxHorizons {
		return nil, fmt.Errorf("at most %d end dates are allowed", maxHorizons)
	}
	return ends, nil
}

// DecodeTransaction reads a single JSON transaction from the request body.
// Syntax problems wrap errBadBody; field problems such as an unparseable
// amount or date keep their core sentinel.
func DecodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return core.Transaction{}, fmt.Errorf("%w: empty body", errBadBody)
	}

	var t core.Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		if isFieldError(err) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("%w: %v", errBadBody, err)
	}
	return t, nil
}

func isFieldError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidRecurrence) ||
		errors.Is(err, core.ErrInvalidUnit)
}
