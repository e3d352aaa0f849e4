// ABOUTME: Admin classification (super > group > board) and the super admin check.
// ABOUTME: Classification is case-sensitive; IsSuperAdmin normalizes case and whitespace.
package member

import "strings"

// ResolveAdminType classifies memberID against the site, group and board admins.
// When group is nil the board's own group is used. The first match wins:
// a member who is both super and group admin is AdminSuper, and one who is both
// group and board admin is AdminGroup.
func ResolveAdminType(cfg *SiteConfig, memberID string, group *Group, board *Board) AdminType {
	if memberID == "" {
		return AdminNone
	}

	if group == nil && board != nil {
		group = board.Group
	}

	switch {
	case cfg != nil && cfg.Admin == memberID:
		return AdminSuper
	case group != nil && group.Admin == memberID:
		return AdminGroup
	case board != nil && board.Admin == memberID:
		return AdminBoard
	default:
		return AdminNone
	}
}

// IsSuperAdmin reports whether candidate is the configured super admin.
// An empty candidate falls back to sessionID. Both sides are lowercased and
// trimmed before comparison; an empty cf_admin never matches.
func IsSuperAdmin(cfAdmin, candidate, sessionID string) bool {
	admin := normalizeID(cfAdmin)
	if admin == "" {
		return false
	}

	if candidate == "" {
		candidate = sessionID
	}
	return candidate != "" && normalizeID(candidate) == admin
}

func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// rank orders admin types for "at least" comparisons.
func (t AdminType) rank() int {
	switch t {
	case AdminSuper:
		return 3
	case AdminGroup:
		return 2
	case AdminBoard:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether t carries at least the authority of min.
func (t AdminType) AtLeast(min AdminType) bool {
	return t.rank() >= min.rank()
}

// ParseAdminType converts a query-string value such as "group" to an
// AdminType. Unknown values map to AdminNone.
func ParseAdminType(s string) AdminType {
	switch AdminType(s) {
	case AdminSuper, AdminGroup, AdminBoard:
		return AdminType(s)
	default:
		return AdminNone
	}
}
