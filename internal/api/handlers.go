package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/importer"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/strategy"
	"EtfSentinel/internal/tracker"
)

const (
	maxDocumentSize     = 1 << 20
	defaultHistoryLimit = 30
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"portfolioLoaded": s.tracker.Portfolio() != nil,
		"version":         s.tracker.Version(),
	})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "yaml" {
		data, err := s.tracker.Export()
		if err != nil {
			s.writeTrackerError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	p := s.tracker.Portfolio()
	if p == nil {
		s.writeError(w, http.StatusNotFound, tracker.ErrNoPortfolio.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handleImportPortfolio replaces the portfolio with a YAML document.
func (s *Server) handleImportPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := importer.Parse(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.tracker.SetPortfolio(p); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Str("portfolio", p.Name).Int("etfs", len(p.ETFs)).Msg("portfolio imported")
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.RemovePortfolio(); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	on, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	report, err := s.tracker.Report(on)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type driftResponse[K ~string] struct {
	Dimension string               `json:"dimension"`
	Strategy  strategy.Strategy    `json:"strategy"`
	Date      model.Date           `json:"date"`
	Feasible  bool                 `json:"feasible"`
	Blockers  []K                  `json:"blockers"`
	Plan      model.DriftPlan[K]   `json:"plan"`
	Actions   []strategy.Action[K] `json:"actions"`
}

func newDriftResponse[K ~string](dimension string, on model.Date, plan model.DriftPlan[K], s strategy.Strategy) driftResponse[K] {
	blockers := strategy.Blockers(plan, s)
	if blockers == nil {
		blockers = []K{}
	}
	return driftResponse[K]{
		Dimension: dimension,
		Strategy:  s,
		Date:      on,
		Feasible:  strategy.Feasible(plan, s),
		Blockers:  blockers,
		Plan:      plan,
		Actions:   strategy.Recommend(plan, s),
	}
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	dimension := chi.URLParam(r, "dimension")
	if dimension != "asset-class" && dimension != "country" {
		s.writeError(w, http.StatusNotFound, "unknown dimension "+strconv.Quote(dimension))
		return
	}
	strat, err := strategy.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	on, ok := s.dateParam(w, r)
	if !ok {
		return
	}
	report, err := s.tracker.Report(on)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}

	if dimension == "country" {
		s.writeJSON(w, http.StatusOK, newDriftResponse(dimension, on, report.CountryDrift, strat))
		return
	}
	s.writeJSON(w, http.StatusOK, newDriftResponse(dimension, on, report.AssetClassDrift, strat))
}

// handleDriftHistory lists the recorded drift checks, newest first.
func (s *Server) handleDriftHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit "+strconv.Quote(v))
			return
		}
		limit = n
	}
	history, err := s.tracker.DriftHistory(limit)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	if history == nil {
		history = []cache.DriftSnapshot{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"limit":     limit,
		"snapshots": history,
	})
}

func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid force flag "+strconv.Quote(v))
			return
		}
		force = parsed
	}

	if err := s.tracker.RefreshPrices(r.Context(), force); err != nil {
		if errors.Is(err, tracker.ErrNoPortfolio) {
			s.writeTrackerError(w, err)
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	prices := s.tracker.Prices()
	asOf := make(map[string]model.Date, len(prices))
	for isin, h := range prices {
		if d, ok := h.LastDate(); ok {
			asOf[isin] = d
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"refreshed": len(prices),
		"asOf":      asOf,
	})
}

type adjustRequest struct {
	Quantity *float64   `json:"quantity"`
	Date     model.Date `json:"date"`
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentSize)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Quantity == nil || *req.Quantity == 0 {
		s.writeError(w, http.StatusBadRequest, "quantity must be a non-zero number")
		return
	}
	on := req.Date
	if on.IsZero() {
		on = model.DateOf(s.now())
	}

	tx, err := s.tracker.AdjustQuantity(chi.URLParam(r, "isin"), *req.Quantity, on)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

// dateParam reads the optional date query parameter, today by default.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request) (model.Date, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return model.DateOf(s.now()), true
	}
	d, err := model.ParseDate(v)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return model.Date{}, false
	}
	return d, true
}

func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNoPortfolio), errors.Is(err, model.ErrUnknownETF):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
