// ABOUTME: Store methods for the single-row site configuration table.
// ABOUTME: Read on every request; a missing row yields the zero config.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/scarson/board-ops/internal/member"
)

const siteConfigID = 1

// GetSiteConfig returns the site configuration. A missing row is not an
// error: the zero config (no super admin, features disabled) is returned.
func (s *Store) GetSiteConfig(ctx context.Context) (*member.SiteConfig, error) {
	query, args, err := s.sb.
		Select("admin_id", "open_modify_days", "leave_days", "visit_keep_days").
		From("site_config").
		Where(sq.Eq{"id": siteConfigID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build site config query: %w", err)
	}

	var cfg member.SiteConfig
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&cfg.Admin, &cfg.OpenModify, &cfg.LeaveDay, &cfg.VisitDel)
	if errors.Is(err, sql.ErrNoRows) {
		return &member.SiteConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site config: %w", err)
	}
	return &cfg, nil
}

// UpdateSiteConfig overwrites the site configuration row.
func (s *Store) UpdateSiteConfig(ctx context.Context, cfg member.SiteConfig) error {
	query, args, err := s.sb.
		Update("site_config").
		SetMap(map[string]any{
			"admin_id":         cfg.Admin,
			"open_modify_days": cfg.OpenModify,
			"leave_days":       cfg.LeaveDay,
			"visit_keep_days":  cfg.VisitDel,
		}).
		Where(sq.Eq{"id": siteConfigID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update site config: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update site config: %w", err)
	}
	return nil
}
