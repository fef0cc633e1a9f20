package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"flow/internal/core"
	"flow/internal/log"
	"flow/internal/services"
	"flow/internal/store"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := DecodeTransaction(w, r)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		Body(created).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := DecodeTransaction(w, r)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}

	updated, err := s.transactions.Update(r.Context(), r.PathValue("id"), t)
	if err != nil {
		s.writeError(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleCashflow serves the daily series through end (server default when
// absent), trimmed to start at from when given.
func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	end, err := ParseEndQuery(query, s.forecast.DefaultEnd())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	from, err := ParseDateQuery(query, "from")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var points []core.CashflowPoint
	if from.IsZero() {
		points, err = s.forecast.Cashflow(r.Context(), end)
	} else {
		points, err = s.forecast.CashflowSince(r.Context(), from, end)
	}
	if err != nil {
		s.writeError(w, r, err, log.OpProject)
		return
	}
	if points == nil {
		points = []core.CashflowPoint{}
	}
	NewJSONResponse().Body(points).Write(w)
}

type horizonResponse struct {
	End    core.Date            `json:"end"`
	Points []core.CashflowPoint `json:"points"`
}

func (s *Server) handleHorizons(w http.ResponseWriter, r *http.Request) {
	ends, err := ParseEndDates(r.URL.Query(), s.forecast.DefaultEnd())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	series, err := s.forecast.Horizons(r.Context(), ends)
	if err != nil {
		s.writeError(w, r, err, log.OpProject)
		return
	}

	out := make([]horizonResponse, len(ends))
	for i, end := range ends {
		points := series[i]
		if points == nil {
			points = []core.CashflowPoint{}
		}
		out[i] = horizonResponse{End: end, Points: points}
	}
	NewJSONResponse().Body(out).Write(w)
}

// summaryResponse is the wire form of services.Forecast. Amounts are JSON
// numbers written from their exact decimal form; dates of an empty
// projection are omitted.
type summaryResponse struct {
	Count        int         `json:"count"`
	Total        json.Number `json:"total"`
	Today        string      `json:"today"`
	TodayBalance json.Number `json:"todayBalance"`
	Start        string      `json:"start,omitempty"`
	End          string      `json:"end,omitempty"`
	Days         int         `json:"days"`
	Final        json.Number `json:"final"`
	Min          json.Number `json:"min"`
	MinDate      string      `json:"minDate,omitempty"`
	Max          json.Number `json:"max"`
	MaxDate      string      `json:"maxDate,omitempty"`
}

func newSummaryResponse(f services.Forecast) summaryResponse {
	p := f.Projection
	return summaryResponse{
		Count:        f.Count,
		Total:        json.Number(f.Total.String()),
		Today:        f.Today.String(),
		TodayBalance: json.Number(f.TodayBalance.String()),
		Start:        p.Start.String(),
		End:          p.End.String(),
		Days:         p.Days,
		Final:        json.Number(p.Final.String()),
		Min:          json.Number(p.Min.String()),
		MinDate:      p.MinDate.String(),
		Max:          json.Number(p.Max.String()),
		MaxDate:      p.MaxDate.String(),
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	end, err := ParseEndQuery(r.URL.Query(), s.forecast.DefaultEnd())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	f, err := s.forecast.Summary(r.Context(), end)
	if err != nil {
		s.writeError(w, r, err, log.OpProject)
		return
	}
	NewJSONResponse().Body(newSummaryResponse(f)).Write(w)
}

// writeError maps service errors to status codes. Only unexpected errors
// are logged; their text never reaches the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, errBadBody):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(core.ErrNotFound.Error()).Write(w)
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, store.ErrExists):
		ErrorResponse(http.StatusConflict, store.ErrExists.Error()).Write(w)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		w.WriteHeader(499)
	default:
		sl := log.NewStructuredLogger(log.FromContext(r.Context()))
		sl.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		InternalServerError("internal error").Write(w)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName,
		core.ErrNameTooLong,
		core.ErrZeroAmount,
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrInvalidDay,
		core.ErrInvalidMonth,
		core.ErrInvalidInterval,
		core.ErrInvalidUnit,
		core.ErrInvalidRecurrence,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
