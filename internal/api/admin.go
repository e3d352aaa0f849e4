// ABOUTME: Super-admin endpoints: visit statistics by hour and weekday, and on-demand retention.
// ABOUTME: Routes use chi middleware (RequireSuperAdmin) and plain JSON responses.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scarson/board-ops/internal/store"
)

// visitStatsResponse is the response body for the visit statistics endpoints.
type visitStatsResponse struct {
	From    string              `json:"from,omitempty"`
	To      string              `json:"to,omitempty"`
	Buckets []store.BucketCount `json:"buckets"`
}

// parseDateRange reads the optional from/to query parameters (YYYY-MM-DD).
func parseDateRange(r *http.Request) (store.DateRange, error) {
	var dr store.DateRange
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return dr, fmt.Errorf("invalid from: %w", err)
		}
		dr.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return dr, fmt.Errorf("invalid to: %w", err)
		}
		dr.To = t
	}
	if !dr.From.IsZero() && !dr.To.IsZero() && dr.To.Before(dr.From) {
		return dr, fmt.Errorf("to is before from")
	}
	return dr, nil
}

// visitHoursHandler handles GET /api/v1/admin/visits/hours.
func (srv *Server) visitHoursHandler(w http.ResponseWriter, r *http.Request) {
	srv.visitStats(w, r, "visit hours", srv.store.VisitHourCounts)
}

// visitWeekdaysHandler handles GET /api/v1/admin/visits/weekdays.
// Buckets are 0 (Sunday) through 6 (Saturday) on every database.
func (srv *Server) visitWeekdaysHandler(w http.ResponseWriter, r *http.Request) {
	srv.visitStats(w, r, "visit weekdays", srv.store.VisitWeekdayCounts)
}

func (srv *Server) visitStats(w http.ResponseWriter, r *http.Request, op string,
	query func(context.Context, store.DateRange) ([]store.BucketCount, error)) {
	dr, err := parseDateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buckets, err := query(r.Context(), dr)
	if err != nil {
		slog.ErrorContext(r.Context(), op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if buckets == nil {
		buckets = []store.BucketCount{}
	}
	resp := visitStatsResponse{Buckets: buckets}
	if !dr.From.IsZero() {
		resp.From = dr.From.Format(time.DateOnly)
	}
	if !dr.To.IsZero() {
		resp.To = dr.To.Format(time.DateOnly)
	}
	writeJSON(w, http.StatusOK, resp)
}

// retentionHandler handles POST /api/v1/admin/retention: runs one cleanup
// pass immediately and reports what was deleted.
func (srv *Server) retentionHandler(w http.ResponseWriter, r *http.Request) {
	if srv.retention == nil {
		http.Error(w, "retention cleanup is not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := srv.retention.Run(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "admin retention run", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if res.Members == nil {
		res.Members = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}
