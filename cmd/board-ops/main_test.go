package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/config"
	"github.com/scarson/board-ops/internal/retention"
	"github.com/scarson/board-ops/internal/testutil"
)

func TestNewLogger_Level(t *testing.T) {
	t.Parallel()
	l := newLogger(&config.Config{LogLevel: "warn", LogFormat: "json", AppEnv: "production"})
	ctx := context.Background()
	assert.False(t, l.Enabled(ctx, slog.LevelInfo))
	assert.True(t, l.Enabled(ctx, slog.LevelWarn))
}

func TestCreateAdmin(t *testing.T) {
	t.Parallel()
	st := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	require.NoError(t, createAdmin(ctx, st, "root", "", "s3cret-pass"))

	m, err := st.GetMember(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "root", m.Nick)
	assert.Equal(t, adminLevel, m.Level)
	ok, err := auth.VerifyPassword("s3cret-pass", m.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	cfg, err := st.GetSiteConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.Admin)
	assert.Equal(t, 30, cfg.LeaveDay, "other site settings are kept")

	assert.Error(t, createAdmin(ctx, st, "root", "", "again"), "duplicate login id")
}

func TestNewWorkerPool_RunsRetention(t *testing.T) {
	t.Parallel()
	st := testutil.NewSQLiteDB(t)
	pool := newWorkerPool(&config.Config{RetentionInterval: time.Hour}, retention.New(st))
	require.NoError(t, pool.RunNow(context.Background(), retention.TaskName))
}
