// ABOUTME: Request-scoped memoization of member Details keyed by (member, board, group).
// ABOUTME: A Scope lives for one request; it is carried on the request context.
package member

import (
	"context"
	"sync"
)

// Details is the lightweight view of a member used by permission checks.
// It is derived per request and never persisted.
type Details struct {
	Member    *Member
	Config    *SiteConfig
	Level     int
	AdminType AdminType
}

// ID returns the member's login ID, or "" for an anonymous visitor.
func (d *Details) ID() string {
	if d.Member == nil {
		return ""
	}
	return d.Member.ID
}

// Nick returns the member's nickname, or "" for an anonymous visitor.
func (d *Details) Nick() string {
	if d.Member == nil {
		return ""
	}
	return d.Member.Nick
}

// Email returns the member's email, or "" for an anonymous visitor.
func (d *Details) Email() string {
	if d.Member == nil {
		return ""
	}
	return d.Member.Email
}

// ResolveAdminType classifies this member against group and board using the
// scope's site config.
func (d *Details) ResolveAdminType(group *Group, board *Board) AdminType {
	return ResolveAdminType(d.Config, d.ID(), group, board)
}

// IsSuperAdmin reports whether this member is the configured super admin.
// Unlike ResolveAdminType, the comparison ignores case and whitespace.
func (d *Details) IsSuperAdmin() bool {
	if d.Config == nil || d.ID() == "" {
		return false
	}
	return IsSuperAdmin(d.Config.Admin, d.ID(), "")
}

// detailsKey identifies a member by presence, surrogate key and login ID so
// an anonymous visitor never shares an entry with an unsaved member.
type detailsKey struct {
	hasMember bool
	memberNo  int64
	memberID  string
	board     string
	group     string
}

// Scope is the per-request state that permission lookups read from: the site
// config as loaded for this request, the session identity, and the memo of
// Details already computed during the request.
//
// A Scope must not be shared between requests.
type Scope struct {
	Config *SiteConfig
	// SessionMemberID is the member ID carried by the request's session.
	SessionMemberID string

	mu      sync.Mutex
	details map[detailsKey]*Details
}

// NewScope returns a Scope for one request.
func NewScope(cfg *SiteConfig, sessionMemberID string) *Scope {
	if cfg == nil {
		cfg = &SiteConfig{}
	}
	return &Scope{Config: cfg, SessionMemberID: sessionMemberID}
}

// Details returns the Details of m in the context of board and group. Either
// may be nil; a nil group is taken from board.Group. Repeated calls with the
// same (member, board, group) triple return the memoized level and admin
// type, paired with the scope's current Config.
func (s *Scope) Details(m *Member, board *Board, group *Group) *Details {
	key := detailsKey{}
	if m != nil {
		key.hasMember = true
		key.memberNo = m.No
		key.memberID = m.ID
	}
	if board != nil {
		key.board = board.Table
	}
	if group != nil {
		key.group = group.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.details == nil {
		s.details = make(map[detailsKey]*Details)
	}
	if cached, ok := s.details[key]; ok {
		return &Details{
			Member:    cached.Member,
			Config:    s.Config,
			Level:     cached.Level,
			AdminType: cached.AdminType,
		}
	}

	d := &Details{
		Member: m,
		Config: s.Config,
		Level:  Level(m),
	}
	d.AdminType = d.ResolveAdminType(group, board)
	s.details[key] = d
	return d
}

// IsSuperAdmin reports whether candidate, or the session member when
// candidate is empty, is the configured super admin.
func (s *Scope) IsSuperAdmin(candidate string) bool {
	if s.Config == nil {
		return false
	}
	return IsSuperAdmin(s.Config.Admin, candidate, s.SessionMemberID)
}

// Len returns the number of memoized Details.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.details)
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the Scope carried by ctx, if any.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}
