package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/greyoak/score/internal/cache"
	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
	httpapi "github.com/greyoak/score/internal/interfaces/http"
	applog "github.com/greyoak/score/internal/log"
	"github.com/greyoak/score/internal/metrics"
	"github.com/greyoak/score/internal/persistence"
	"github.com/greyoak/score/internal/persistence/postgres"
	"github.com/greyoak/score/internal/scheduler"
	"github.com/greyoak/score/internal/score/composite"
	"github.com/greyoak/score/internal/universe"
)

const (
	appName = "greyoak"
	version = "v1.0.0"
)

var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string

	logger zerolog.Logger
)

func main() {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic equity scoring engine",
		Version: version,
		Long: `GreyOak scores equities 0-100 from six pillars (fundamentals, technicals,
relative strength, ownership, quality, sector momentum), applies a risk
penalty and guardrails, and maps the result to a recommendation band.

Scores are deterministic: the same inputs and config always produce the
same output, tagged with the config hash that produced it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = applog.Setup(flagLogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().AddFlagSet(globalFlags())

	scoreCmd := &cobra.Command{
		Use:   "score <ticker>",
		Short: "Score one ticker against the loaded universe",
		Long:  "Loads the universe from the data directory, scores the given ticker, and prints the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}
	scoreCmd.Flags().String("mode", "trader", "Scoring mode (trader|investor)")
	scoreCmd.Flags().Bool("explain", false, "Include a plain-language explanation")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Score the whole universe",
		Long:  "Scores every ticker in the data directory and prints results as JSON, optionally persisting them",
		RunE:  runBatch,
	}
	batchCmd.Flags().String("mode", "trader", "Scoring mode (trader|investor)")
	batchCmd.Flags().Bool("persist", false, "Write results to the database")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scoring API server",
		Long:  "Starts the HTTP API backed by Postgres, with optional Redis caching and Prometheus metrics",
		RunE:  runServe,
	}
	serveCmd.Flags().String("host", "127.0.0.1", "Listen host")
	serveCmd.Flags().Int("port", 8080, "Listen port")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily rescore daemon",
		Long:  "Runs the cron daemon that rescores the universe after market close and persists results",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().String("cron", "", "Override the rescore schedule (five-field cron)")
	scheduleCmd.Flags().Bool("immediate", false, "Run one rescore immediately on startup")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func globalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.StringVar(&flagConfig, "config", "", "Path to config YAML (default: built-in defaults)")
	fs.StringVar(&flagDataDir, "data", "data", "Directory holding the input CSVs")
	fs.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	return fs
}

func loadConfig() (*config.Config, error) {
	if flagConfig == "" {
		return config.Default(), nil
	}
	return config.Load(flagConfig)
}

// openDB connects via DATABASE_URL and ensures the schema exists.
func openDB(ctx context.Context) (*sqlx.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return db, nil
}

// buildStore layers the optional Redis cache over the Postgres repo.
func buildStore(ctx context.Context, reg *metrics.Registry) (persistence.ScoresRepo, func(), error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewScoresRepo(db, 5*time.Second)
	cleanup := func() { db.Close() }

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return repo, cleanup, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, serving without cache")
		rdb.Close()
		return repo, cleanup, nil
	}

	sc := cache.New(repo, rdb, cache.DefaultTTL, logger)
	if reg != nil {
		sc.Hit = reg.RecordCacheHit
		sc.Miss = reg.RecordCacheMiss
	}
	return sc, func() { rdb.Close(); db.Close() }, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func runScore(cmd *cobra.Command, args []string) error {
	ticker := args[0]
	modeStr, _ := cmd.Flags().GetString("mode")
	explain, _ := cmd.Flags().GetBool("explain")

	mode, err := domain.ParseMode(modeStr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snaps, err := universe.NewLoader(cfg, logger).LoadDir(flagDataDir)
	if err != nil {
		return err
	}

	var target *domain.Snapshot
	for i := range snaps {
		if snaps[i].Ticker == ticker {
			target = &snaps[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("ticker %s not found in universe (%d tickers loaded)", ticker, len(snaps))
	}

	engine := composite.NewEngine(cfg, logger)
	out, err := engine.Score(*target, composite.BuildContext(snaps), mode, time.Now().UTC())
	if err != nil {
		return err
	}

	payload := any(out)
	if explain {
		payload = httpapi.ScoreResponse{Score: out, Explain: composite.Explain(out)}
	}
	return printJSON(payload)
}

func runBatch(cmd *cobra.Command, args []string) error {
	modeStr, _ := cmd.Flags().GetString("mode")
	persist, _ := cmd.Flags().GetBool("persist")

	mode, err := domain.ParseMode(modeStr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snaps, err := universe.NewLoader(cfg, logger).LoadDir(flagDataDir)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := composite.NewEngine(cfg, logger)
	result, err := engine.ScoreUniverse(ctx, snaps, mode, time.Now().UTC(), nil)
	if err != nil {
		return err
	}
	for _, f := range result.Failures {
		logger.Warn().Str("ticker", f.Ticker).Err(f.Err).Msg("ticker failed")
	}

	if persist {
		store, cleanup, err := buildStore(ctx, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := store.UpsertBatch(ctx, result.Outputs); err != nil {
			return fmt.Errorf("persisting scores: %w", err)
		}
		logger.Info().Int("scored", len(result.Outputs)).Msg("scores persisted")
	}

	return printJSON(result.Outputs)
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.New()
	store, cleanup, err := buildStore(ctx, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := composite.NewEngine(cfg, logger)
	hub := httpapi.NewProgressHub(logger)
	handlers := httpapi.NewHandlers(engine, httpapi.NewBreakerStore(store), reg, hub, logger)

	srvCfg := httpapi.DefaultServerConfig()
	srvCfg.Host = host
	srvCfg.Port = port

	srv, err := httpapi.NewServer(srvCfg, handlers, reg, logger)
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cronExpr, _ := cmd.Flags().GetString("cron")
	immediate, _ := cmd.Flags().GetBool("immediate")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := buildStore(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	loader := universe.NewLoader(cfg, logger)
	engine := composite.NewEngine(cfg, logger)
	job := scheduler.NewRescoreJob(loader, engine, store, flagDataDir, cronExpr, logger)

	sched := scheduler.New(logger)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	if immediate {
		if err := sched.RunNow(job.Name()); err != nil {
			return err
		}
	}

	sched.Start()
	defer sched.Stop()

	logger.Info().Str("schedule", job.Schedule()).Msg("rescore daemon running")
	<-ctx.Done()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
