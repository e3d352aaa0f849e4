// Command board-ops is the Board Ops server binary.
//
// Subcommands:
//
//	serve         HTTP server + embedded retention worker (default for production)
//	worker        standalone retention worker only
//	migrate       run pending database migrations and exit
//	cleanup       run one retention pass and exit
//	create-admin  create a member and make it the site's super admin
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	// Embeds the IANA timezone database in the binary so that
	// time.LoadLocation works inside distroless containers that have no
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	// Sets GOMEMLIMIT from the cgroup memory limit so the GC triggers before
	// the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/scarson/board-ops/internal/api"
	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/config"
	"github.com/scarson/board-ops/internal/retention"
	"github.com/scarson/board-ops/internal/store"
	"github.com/scarson/board-ops/internal/worker"
)

func main() {
	root := &cobra.Command{
		Use:   "board-ops",
		Short: "Board Ops: member permissions and housekeeping for a bulletin board",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
		cleanupCmd(),
		createAdminCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and embedded retention worker",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	st, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cleaner := retention.New(st)
	var runner api.RetentionRunner = cleaner
	if cfg.RetentionCleanupEnabled {
		// Drains on ctx cancellation, which happens alongside HTTP shutdown.
		pool := newWorkerPool(cfg, cleaner)
		runner = retention.NewPoolRunner(pool, cleaner)
		go pool.Start(ctx) //nolint:contextcheck // ctx is the process-lifetime context
	}

	apiSrv, err := api.NewServer(st, cfg, runner)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	defer apiSrv.Close()

	srv := &http.Server{ //nolint:exhaustruct // WriteTimeout left to handlers
		Addr:              cfg.ListenAddr,
		Handler:           apiSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.ListenAddr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		stop()
	}

	slog.Info("shutting down", "timeout_seconds", cfg.ShutdownTimeoutSeconds)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// ── worker ────────────────────────────────────────────────────────────────────

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the standalone retention worker (no HTTP server)",
		RunE:  runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	st, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool := newWorkerPool(cfg, retention.New(st))
	slog.Info("worker started", "worker_id", pool.WorkerID())
	pool.Start(ctx) // blocks until ctx cancelled, then drains in-flight runs
	return nil
}

// newWorkerPool registers the periodic maintenance tasks.
func newWorkerPool(cfg *config.Config, cleaner *retention.Cleaner) *worker.Pool {
	pool := worker.New()
	pool.Register(retention.TaskName, cfg.RetentionInterval, cleaner.Task)
	return pool
}

// ── migrate ───────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	var (
		db      *sql.DB
		dialect store.Dialect
	)
	if cfg.IsSQLite() {
		db, err = store.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		dialect = store.DialectSQLite
	} else {
		// No pooling needed for a one-shot run. Simple protocol lets postgres
		// execute multi-statement migration files.
		connCfg, err := pgx.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("parse db url: %w", err)
		}
		connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		db = stdlib.OpenDB(*connCfg)
		dialect = store.DialectPostgres
	}
	defer db.Close() //nolint:errcheck

	slog.Info("running migrations", "driver", cfg.DBDriver)
	version, err := store.Migrate(db, dialect)
	if err != nil {
		return err
	}
	slog.Info("migrations complete", "version", version)
	return nil
}

// ── cleanup ───────────────────────────────────────────────────────────────────

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete departed members and old visits once, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			slog.SetDefault(newLogger(cfg))

			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer closeStore()

			pool := newWorkerPool(cfg, retention.New(st))
			return pool.RunNow(cmd.Context(), retention.TaskName)
		},
	}
}

// ── create-admin ──────────────────────────────────────────────────────────────

func createAdminCmd() *cobra.Command {
	var id, nick string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a member and make it the site's super admin",
		Long: "Creates a member with the given login ID and sets it as the site config admin.\n" +
			"The password is read from BOARD_ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("BOARD_ADMIN_PASSWORD")
			if id == "" || password == "" {
				return errors.New("create-admin: --id and BOARD_ADMIN_PASSWORD are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			slog.SetDefault(newLogger(cfg))

			ctx := cmd.Context()
			st, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer closeStore()

			return createAdmin(ctx, st, id, nick, password)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "login ID of the new super admin")
	cmd.Flags().StringVar(&nick, "nick", "", "nickname (defaults to the login ID)")
	return cmd
}

// adminLevel is the member level given to the super admin account.
const adminLevel = 10

func createAdmin(ctx context.Context, st *store.Store, id, nick, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	if nick == "" {
		nick = id
	}
	if _, err := st.CreateMember(ctx, store.CreateMemberParams{
		ID:           id,
		PasswordHash: hash,
		Nick:         nick,
		Level:        adminLevel,
	}); err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}

	siteCfg, err := st.GetSiteConfig(ctx)
	if err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	siteCfg.Admin = id
	if err := st.UpdateSiteConfig(ctx, *siteCfg); err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	slog.Info("super admin created", "member_id", id)
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// openStore opens the configured database and returns a Store plus a close
// function. SQLite databases must already be migrated.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	if cfg.IsSQLite() {
		db, err := store.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLite(db), func() { _ = db.Close() }, nil
	}
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool), pool.Close, nil
}

// newPool creates and validates a pgxpool with the statement timeout and pool
// sizing from config.
//
// Retries up to 10 times with linear backoff to handle the Docker Compose
// startup race where Postgres is not immediately ready.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(cfg.DBStatementTimeoutMS)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	var (
		db      *pgxpool.Pool
		connErr error
	)
	for attempt := 1; attempt <= 10; attempt++ {
		db, connErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if connErr == nil {
			if connErr = db.Ping(ctx); connErr == nil {
				break
			}
			db.Close()
		}
		slog.Warn("database not ready, retrying",
			"attempt", attempt,
			"error", connErr,
		)
		// time.NewTimer (not time.After) so the timer is released if ctx is
		// cancelled first.
		timer := time.NewTimer(time.Duration(attempt) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if connErr != nil {
		return nil, fmt.Errorf("database unavailable after retries: %w", connErr)
	}

	// Advisory: warn when the applied schema is older than this binary.
	var schemaVersion int
	err = db.QueryRow(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&schemaVersion)
	if err == nil && schemaVersion != expectedSchemaVersion {
		slog.Warn("schema version mismatch, run `board-ops migrate`",
			"applied_version", schemaVersion,
			"expected_version", expectedSchemaVersion,
		)
	}

	return db, nil
}

// expectedSchemaVersion is the database migration version this binary requires.
// Update this constant when new migrations are added.
const expectedSchemaVersion = 1

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
