// ABOUTME: Visit recording and hour-of-day / day-of-week visit statistics.
// ABOUTME: Bucket expressions differ per dialect; every dialect yields integer buckets.
package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const visitTimeLayout = "15:04:05"

// Visit is one recorded site visit.
type Visit struct {
	IP      string
	At      time.Time
	Referer string
	Agent   string
}

// DateRange bounds visit statistics by visit date, inclusive. A zero bound
// is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// BucketCount is the number of visits in one hour or weekday bucket.
type BucketCount struct {
	Bucket int   `json:"bucket"`
	Count  int64 `json:"count"`
}

// RecordVisit stores a visit unless the same IP was already recorded on that
// day. Reports whether a row was inserted.
func (s *Store) RecordVisit(ctx context.Context, v Visit) (bool, error) {
	query, args, err := s.sb.
		Insert("visits").
		Columns("ip", "visit_date", "visit_time", "referer", "agent").
		Values(v.IP, v.At.Format("2006-01-02"), v.At.Format(visitTimeLayout), v.Referer, v.Agent).
		Suffix("ON CONFLICT (ip, visit_date) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build record visit: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("record visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record visit rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteVisitsBefore deletes visits dated before cutoff and returns how many
// rows were removed.
func (s *Store) DeleteVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.
		Delete("visits").
		Where(sq.Lt{"visit_date": cutoff.Format("2006-01-02")}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete visits: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete visits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete visits rows affected: %w", err)
	}
	return n, nil
}

// hourExpr returns the dialect's hour-of-day expression over visit_time.
func hourExpr(d Dialect) string {
	switch d {
	case DialectMySQL:
		return "HOUR(visit_time)"
	case DialectPostgres:
		return "CAST(EXTRACT(HOUR FROM visit_time) AS INTEGER)"
	default:
		return "CAST(strftime('%H', visit_time) AS INTEGER)"
	}
}

// weekdayExpr returns the dialect's day-of-week expression over visit_date,
// numbered 0 (Sunday) to 6. MySQL's DAYOFWEEK counts from 1.
func weekdayExpr(d Dialect) string {
	switch d {
	case DialectMySQL:
		return "DAYOFWEEK(visit_date) - 1"
	case DialectPostgres:
		return "CAST(EXTRACT(DOW FROM visit_date) AS INTEGER)"
	default:
		return "CAST(strftime('%w', visit_date) AS INTEGER)"
	}
}

// HourCountsQuery builds the visits-per-hour-of-day query for d.
func HourCountsQuery(d Dialect, r DateRange) sq.SelectBuilder {
	return bucketQuery(d, hourExpr(d), "hour", r)
}

// WeekdayCountsQuery builds the visits-per-day-of-week query for d.
func WeekdayCountsQuery(d Dialect, r DateRange) sq.SelectBuilder {
	return bucketQuery(d, weekdayExpr(d), "dow", r)
}

func bucketQuery(d Dialect, expr, label string, r DateRange) sq.SelectBuilder {
	sb := d.Builder().
		Select(expr+" AS "+label, "COUNT(*) AS "+label+"_count").
		From("visits").
		GroupBy(label).
		OrderBy(label)
	if !r.From.IsZero() {
		sb = sb.Where(sq.GtOrEq{"visit_date": r.From.Format("2006-01-02")})
	}
	if !r.To.IsZero() {
		sb = sb.Where(sq.LtOrEq{"visit_date": r.To.Format("2006-01-02")})
	}
	return sb
}

// VisitHourCounts returns visit counts per hour of day. Hours without visits
// are omitted.
func (s *Store) VisitHourCounts(ctx context.Context, r DateRange) ([]BucketCount, error) {
	return s.bucketCounts(ctx, HourCountsQuery(s.dialect, r))
}

// VisitWeekdayCounts returns visit counts per day of week (0 = Sunday). Days
// without visits are omitted.
func (s *Store) VisitWeekdayCounts(ctx context.Context, r DateRange) ([]BucketCount, error) {
	return s.bucketCounts(ctx, WeekdayCountsQuery(s.dialect, r))
}

func (s *Store) bucketCounts(ctx context.Context, sb sq.SelectBuilder) ([]BucketCount, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build visit counts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("visit counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []BucketCount
	for rows.Next() {
		var bc BucketCount
		if err := rows.Scan(&bc.Bucket, &bc.Count); err != nil {
			return nil, fmt.Errorf("scan visit count: %w", err)
		}
		out = append(out, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visit counts: %w", err)
	}
	return out, nil
}
