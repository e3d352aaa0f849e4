// ABOUTME: Store methods for member accounts: creation, lookup, profile dates, leave marks.
// ABOUTME: Dates are written as text (YYYY-MM-DD, YYYYMMDD) so both drivers agree.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/scarson/board-ops/internal/member"
)

// LeaveDateLayout is the YYYYMMDD layout of members.leave_date.
const LeaveDateLayout = "20060102"

var memberColumns = []string{
	"member_no", "login_id", "password_hash", "name", "nick", "email",
	"level", "zip", "open_date", "leave_date",
}

// CreateMemberParams holds the fields for a new member row.
type CreateMemberParams struct {
	ID           string
	PasswordHash string
	Name         string
	Nick         string
	Email        string
	Level        int
	Zip          string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*member.Member, error) {
	var (
		m        member.Member
		openDate sql.NullTime
	)
	if err := row.Scan(&m.No, &m.ID, &m.PasswordHash, &m.Name, &m.Nick, &m.Email,
		&m.Level, &m.Zip, &openDate, &m.LeaveDate); err != nil {
		return nil, err
	}
	if openDate.Valid {
		t := openDate.Time
		m.OpenDate = &t
	}
	return &m, nil
}

// CreateMember inserts a new member. Level defaults to member.DefaultLevel.
func (s *Store) CreateMember(ctx context.Context, p CreateMemberParams) (*member.Member, error) {
	if p.Level == 0 {
		p.Level = member.DefaultLevel
	}
	query, args, err := s.sb.
		Insert("members").
		Columns("login_id", "password_hash", "name", "nick", "email", "level", "zip").
		Values(p.ID, p.PasswordHash, p.Name, p.Nick, p.Email, p.Level, p.Zip).
		Suffix("RETURNING member_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create member: %w", err)
	}

	var no int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&no); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	return &member.Member{
		No:           no,
		ID:           p.ID,
		PasswordHash: p.PasswordHash,
		Name:         p.Name,
		Nick:         p.Nick,
		Email:        p.Email,
		Level:        p.Level,
		Zip:          p.Zip,
	}, nil
}

// GetMember returns the member with the given login ID, or (nil, nil) if not found.
func (s *Store) GetMember(ctx context.Context, id string) (*member.Member, error) {
	return s.getMember(ctx, sq.Eq{"login_id": id})
}

// GetMemberByNo returns the member with the given surrogate key, or (nil, nil) if not found.
func (s *Store) GetMemberByNo(ctx context.Context, no int64) (*member.Member, error) {
	return s.getMember(ctx, sq.Eq{"member_no": no})
}

func (s *Store) getMember(ctx context.Context, where sq.Eq) (*member.Member, error) {
	query, args, err := s.sb.Select(memberColumns...).From("members").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get member: %w", err)
	}
	m, err := scanMember(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// UpdateMemberOpenDate records the day the member last changed profile visibility.
func (s *Store) UpdateMemberOpenDate(ctx context.Context, id string, day time.Time) error {
	return s.updateMember(ctx, id, "open_date", day.Format(member.DateLayout))
}

// MarkMemberLeft records that the member left on the given day.
func (s *Store) MarkMemberLeft(ctx context.Context, id string, day time.Time) error {
	return s.updateMember(ctx, id, "leave_date", day.Format(LeaveDateLayout))
}

func (s *Store) updateMember(ctx context.Context, id, column string, value any) error {
	query, args, err := s.sb.
		Update("members").
		Set(column, value).
		Where(sq.Eq{"login_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update member %s: %w", column, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update member %s: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update member %s: %w", column, ErrNotFound)
	}
	return nil
}

// DeleteLeftMembers deletes every member whose leave date is before cutoff
// and returns their login IDs. Members who never left are kept.
func (s *Store) DeleteLeftMembers(ctx context.Context, cutoff time.Time) ([]string, error) {
	selectQuery, selectArgs, err := s.sb.
		Select("login_id").
		From("members").
		Where(sq.NotEq{"leave_date": ""}).
		Where(sq.Lt{"leave_date": cutoff.Format(LeaveDateLayout)}).
		OrderBy("login_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select left members: %w", err)
	}

	var ids []string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
		if err != nil {
			return fmt.Errorf("select left members: %w", err)
		}
		defer rows.Close() //nolint:errcheck
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan left member: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate left members: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		deleteQuery, deleteArgs, err := s.sb.Delete("members").Where(sq.Eq{"login_id": ids}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete left members: %w", err)
		}
		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("delete left members: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
