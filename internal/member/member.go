// Package member resolves what a board member is allowed to do: privilege
// level, admin classification (super, group, board), and the small display
// helpers shown next to a member's profile.
//
// A [Scope] is created once per HTTP request and memoizes [Details] per
// (member, board, group) triple for the lifetime of that request.
package member

import "time"

// DefaultLevel is the privilege level of an anonymous visitor.
const DefaultLevel = 1

// AdminType classifies a member's administrative authority in a board context.
// The zero value means the member administers nothing.
type AdminType string

// AdminType values, checked in this priority order.
const (
	AdminNone  AdminType = ""
	AdminSuper AdminType = "super"
	AdminGroup AdminType = "group"
	AdminBoard AdminType = "board"
)

// Member is a registered account.
type Member struct {
	No           int64
	ID           string
	Name         string
	Nick         string
	Email        string
	Level        int
	Zip          string
	PasswordHash string
	// OpenDate is when the member last changed profile visibility.
	OpenDate *time.Time
	// LeaveDate is YYYYMMDD once the member has left, empty otherwise.
	LeaveDate string
}

// Group is a board group. Admin holds the group admin's member ID.
type Group struct {
	ID      string
	Subject string
	Admin   string
}

// Board is a single board. Group is nil when the board row was loaded
// without its group.
type Board struct {
	Table   string
	Subject string
	Admin   string
	Group   *Group
}

// SiteConfig is the site-wide configuration row.
type SiteConfig struct {
	// Admin is the super admin's member ID (cf_admin).
	Admin string
	// OpenModify is the number of days a member must wait between profile
	// visibility changes. 0 disables the restriction.
	OpenModify int
	// LeaveDay is how many days a departed member's row is kept.
	LeaveDay int
	// VisitDel is how many days visit rows are kept.
	VisitDel int
}

// Level returns m's privilege level, or DefaultLevel for an anonymous visitor.
func Level(m *Member) int {
	if m == nil {
		return DefaultLevel
	}
	return m.Level
}
