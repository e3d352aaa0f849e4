// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject the login member and board, and by handlers to read them.
package api

import (
	"context"

	"github.com/scarson/board-ops/internal/member"
)

type contextKey int

const (
	ctxLoginMember contextKey = iota // *member.Member: the logged-in member, absent for guests
	ctxBoard                         // *member.Board: board from the {bo_table} URL param
)

// loginMember returns the logged-in member, or nil for a guest.
func loginMember(ctx context.Context) *member.Member {
	m, _ := ctx.Value(ctxLoginMember).(*member.Member)
	return m
}

// requestScope returns the per-request member scope. Handlers mounted outside
// memberScope get a fresh empty scope so lookups never panic.
func requestScope(ctx context.Context) *member.Scope {
	if s, ok := member.ScopeFrom(ctx); ok {
		return s
	}
	return member.NewScope(nil, "")
}
