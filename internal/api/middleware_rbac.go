// ABOUTME: RequireSuperAdmin and RequireBoardAdmin middleware built on member admin resolution.
// ABOUTME: Board admin checks accept group and super admins, since those outrank a board admin.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scarson/board-ops/internal/member"
)

// RequireSuperAdmin returns a middleware that lets only the site's super admin
// through. Guests get 401, other members 403. Must run after memberScope.
func (srv *Server) RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := loginMember(r.Context())
			if m == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !requestScope(r.Context()).IsSuperAdmin(m.ID) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBoardAdmin returns a middleware that loads the board named by
// {bo_table} and requires the login member to administer it (board, group or
// super admin). On success it injects ctxBoard into the request context.
func (srv *Server) RequireBoardAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			m := loginMember(ctx)
			if m == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			board, err := srv.store.GetBoard(ctx, chi.URLParam(r, "bo_table"))
			if err != nil {
				slog.ErrorContext(ctx, "require board admin: get board", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if board == nil {
				http.Error(w, "board not found", http.StatusNotFound)
				return
			}

			d := requestScope(ctx).Details(m, board, nil)
			if !d.AdminType.AtLeast(member.AdminBoard) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxBoard, board)))
		})
	}
}
