// ABOUTME: Store methods for boards and board groups.
// ABOUTME: GetBoard loads the board's group in the same query so admin checks need one round trip.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/scarson/board-ops/internal/member"
)

// CreateGroup inserts a board group.
func (s *Store) CreateGroup(ctx context.Context, g member.Group) error {
	query, args, err := s.sb.
		Insert("board_groups").
		Columns("id", "subject", "admin_id").
		Values(g.ID, g.Subject, g.Admin).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create group: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GetGroup returns the group with the given id, or (nil, nil) if not found.
func (s *Store) GetGroup(ctx context.Context, id string) (*member.Group, error) {
	query, args, err := s.sb.
		Select("id", "subject", "admin_id").
		From("board_groups").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get group: %w", err)
	}
	var g member.Group
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&g.ID, &g.Subject, &g.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// CreateBoard inserts a board belonging to groupID.
func (s *Store) CreateBoard(ctx context.Context, groupID string, b member.Board) error {
	query, args, err := s.sb.
		Insert("boards").
		Columns("slug", "group_id", "subject", "admin_id").
		Values(b.Table, groupID, b.Subject, b.Admin).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create board: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

// GetBoard returns the board with the given slug and its group, or (nil, nil)
// if not found.
func (s *Store) GetBoard(ctx context.Context, slug string) (*member.Board, error) {
	query, args, err := s.sb.
		Select("b.slug", "b.subject", "b.admin_id", "g.id", "g.subject", "g.admin_id").
		From("boards b").
		Join("board_groups g ON g.id = b.group_id").
		Where(sq.Eq{"b.slug": slug}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get board: %w", err)
	}
	var (
		b member.Board
		g member.Group
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&b.Table, &b.Subject, &b.Admin, &g.ID, &g.Subject, &g.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	b.Group = &g
	return &b, nil
}
