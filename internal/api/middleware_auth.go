// ABOUTME: memberScope middleware: loads site config and the session member for every request.
// ABOUTME: Attaches a fresh member.Scope so per-request lookups are memoized and never shared.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/member"
)

// memberScope reads the site configuration and the session cookie, then
// injects a new member.Scope and (when the session is valid) the login member
// into the request context. Invalid or expired sessions are treated as guests.
func (srv *Server) memberScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		siteCfg, err := srv.store.GetSiteConfig(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "member scope: load site config", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		m, err := srv.sessionMember(r)
		if err != nil {
			slog.ErrorContext(ctx, "member scope: load session member", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var sessionID string
		if m != nil {
			sessionID = m.ID
			ctx = context.WithValue(ctx, ctxLoginMember, m)
		}
		ctx = member.WithScope(ctx, member.NewScope(siteCfg, sessionID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMember returns the member named by the session cookie, or nil when
// there is no usable session. Members who have left are not logged in.
func (srv *Server) sessionMember(r *http.Request) (*member.Member, error) {
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	claims, err := auth.ParseSessionToken(cookie.Value, []byte(srv.cfg.JWTSecret))
	if err != nil {
		return nil, nil
	}
	m, err := srv.store.GetMember(r.Context(), claims.MemberID())
	if err != nil {
		return nil, err
	}
	if m == nil || m.LeaveDate != "" {
		return nil, nil
	}
	return m, nil
}
