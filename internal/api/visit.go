// ABOUTME: recordVisit middleware: stores one visit row per client IP per day.
// ABOUTME: A cookie holding the IP short-circuits repeat requests before they reach the database.
package api

import (
	"log/slog"
	"net/http"

	"github.com/scarson/board-ops/internal/store"
)

// visitCookie remembers that this browser's visit was already recorded today.
const visitCookie = "ck_visit_ip"

// recordVisit records the request as a visit unless the visit cookie already
// names the client's IP. Storage errors are logged and never fail the request.
func (srv *Server) recordVisit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if c, err := r.Cookie(visitCookie); err == nil && c.Value == ip {
			next.ServeHTTP(w, r)
			return
		}

		_, err := srv.store.RecordVisit(r.Context(), store.Visit{
			IP:      ip,
			At:      srv.now(),
			Referer: r.Referer(),
			Agent:   r.UserAgent(),
		})
		if err != nil {
			slog.WarnContext(r.Context(), "record visit", "error", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     visitCookie,
				Value:    ip,
				Path:     "/",
				HttpOnly: true,
				Secure:   srv.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   86400,
			})
		}
		next.ServeHTTP(w, r)
	})
}
