package http

import (
	"net/http"
	"time"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Second)

	if v := q.Get("from"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			badRequest(w, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			badRequest(w, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	cacheKey := "stats:" + from.Format("2006-01-02") + ":" + to.Format("2006-01-02")
	if cached, ok := s.statsCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := s.ledger.Stats(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := toStatsDTO(stats)
	s.statsCache.Set(cacheKey, dto)
	writeJSON(w, http.StatusOK, dto)
}

type totalBalanceDTO struct {
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

func (s *Server) handleTotalBalance(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "total"
	if cached, ok := s.totalCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	total, err := s.ledger.TotalBalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	dto := totalBalanceDTO{TotalCents: total.Cents, Total: total.String()}
	s.totalCache.Set(cacheKey, dto)
	writeJSON(w, http.StatusOK, dto)
}

type healthDTO struct {
	Status             string `json:"status"`
	TotalRequests      int64  `json:"total_requests"`
	SuspiciousRequests int64  `json:"suspicious_requests"`
	RateLimitedClients int    `json:"rate_limited_clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthDTO{
		Status:             "ok",
		TotalRequests:      s.trace.TotalRequests(),
		SuspiciousRequests: s.detector.SuspiciousRequests(),
		RateLimitedClients: s.limiter.ActiveClients(),
	})
}
