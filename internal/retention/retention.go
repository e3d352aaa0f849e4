// ABOUTME: Periodic cleanup of departed members and old visit rows.
// ABOUTME: Day counts come from the site config table; zero disables a table.
// Package retention deletes data the site configuration says to stop keeping:
// members who left more than cf_leave_day days ago and visit rows older than
// cf_visit_del days. A zero day count disables that cleanup.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scarson/board-ops/internal/member"
	"github.com/scarson/board-ops/internal/worker"
)

// TaskName is the worker pool name of the cleanup task.
const TaskName = "retention_cleanup"

var deletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "board_ops_retention_deleted_total",
	Help: "Rows deleted by retention cleanup.",
}, []string{"table"})

// Store is the subset of store.Store the cleaner needs.
type Store interface {
	GetSiteConfig(ctx context.Context) (*member.SiteConfig, error)
	DeleteLeftMembers(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result reports what one cleanup run deleted.
type Result struct {
	Members []string `json:"members"`
	Visits  int64    `json:"visits"`
}

// Cleaner runs retention cleanup against a Store.
type Cleaner struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the logger used for per-row deletion logs.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cleaner) { c.logger = l }
}

// WithClock sets the clock used to compute cutoffs.
func WithClock(now func() time.Time) Option {
	return func(c *Cleaner) { c.now = now }
}

// New returns a Cleaner for s.
func New(s Store, opts ...Option) *Cleaner {
	c := &Cleaner{store: s, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run performs one cleanup pass using the site configuration as currently
// stored.
func (c *Cleaner) Run(ctx context.Context) (Result, error) {
	var res Result

	cfg, err := c.store.GetSiteConfig(ctx)
	if err != nil {
		return res, fmt.Errorf("retention: %w", err)
	}
	now := c.now()

	if cfg.LeaveDay > 0 {
		ids, err := c.store.DeleteLeftMembers(ctx, now.AddDate(0, 0, -cfg.LeaveDay))
		if err != nil {
			return res, fmt.Errorf("retention: %w", err)
		}
		for _, id := range ids {
			c.logger.InfoContext(ctx, "deleted departed member", "member_id", id, "leave_days", cfg.LeaveDay)
		}
		deletedTotal.WithLabelValues("members").Add(float64(len(ids)))
		res.Members = ids
	}

	if cfg.VisitDel > 0 {
		n, err := c.store.DeleteVisitsBefore(ctx, now.AddDate(0, 0, -cfg.VisitDel))
		if err != nil {
			return res, fmt.Errorf("retention: %w", err)
		}
		if n > 0 {
			c.logger.InfoContext(ctx, "deleted old visits", "count", n, "keep_days", cfg.VisitDel)
		}
		deletedTotal.WithLabelValues("visits").Add(float64(n))
		res.Visits = n
	}

	return res, nil
}

// Task adapts the cleaner to the worker pool.
func (c *Cleaner) Task(ctx context.Context) error {
	_, err := c.Run(ctx)
	return err
}

// PoolRunner runs on-demand passes under the worker pool's lock for
// TaskName, so they never overlap a scheduled pass.
type PoolRunner struct {
	pool    *worker.Pool
	cleaner *Cleaner
}

// NewPoolRunner returns a PoolRunner. pool must have c registered as TaskName.
func NewPoolRunner(pool *worker.Pool, c *Cleaner) *PoolRunner {
	return &PoolRunner{pool: pool, cleaner: c}
}

// Run performs one cleanup pass once no other pass is in flight.
func (r *PoolRunner) Run(ctx context.Context) (Result, error) {
	var res Result
	err := r.pool.Exclusive(ctx, TaskName, func(ctx context.Context) error {
		var err error
		res, err = r.cleaner.Run(ctx)
		return err
	})
	return res, err
}
