package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"PerpShare/internal/amm"
	"PerpShare/internal/core"
	"PerpShare/internal/event"
	"PerpShare/internal/funds"
	"PerpShare/internal/observability"
	"PerpShare/internal/perpetual"
	"PerpShare/internal/persistence"
	"PerpShare/internal/publish"
	"PerpShare/internal/query"
	"PerpShare/internal/server"
)

// Config is loaded from PERPSHARE_* environment variables. Postgres and NATS
// are both optional: without a DSN the daemon keeps state in memory only,
// without a NATS URL events stay local.
type Config struct {
	PostgresDSN string
	NATSURL     string

	GRPCAddr string
	HTTPAddr string

	MigrationsDir string

	// Identities of the built-in actors.
	Owner            string
	PoolAddress      string
	TokenizerAddress string
	DevAddress       string

	EventChanSize       int
	PersistBatchSize    int
	PersistFlushTimeout time.Duration
	SnapshotInterval    time.Duration
	SnapshotKeep        int
	FundingPoll         time.Duration
}

func DefaultConfig() Config {
	return Config{
		PostgresDSN:         os.Getenv("PERPSHARE_POSTGRES_DSN"),
		NATSURL:             os.Getenv("PERPSHARE_NATS_URL"),
		GRPCAddr:            envOrDefault("PERPSHARE_GRPC_ADDR", ":9090"),
		HTTPAddr:            envOrDefault("PERPSHARE_HTTP_ADDR", ":8080"),
		MigrationsDir:       envOrDefault("PERPSHARE_MIGRATIONS_DIR", "migrations"),
		Owner:               envOrDefault("PERPSHARE_OWNER", "admin"),
		PoolAddress:         envOrDefault("PERPSHARE_POOL_ADDRESS", "pool"),
		TokenizerAddress:    envOrDefault("PERPSHARE_TOKENIZER_ADDRESS", "tokenizer"),
		DevAddress:          envOrDefault("PERPSHARE_DEV_ADDRESS", "dev"),
		EventChanSize:       envIntOrDefault("PERPSHARE_EVENT_CHAN_SIZE", 4096),
		PersistBatchSize:    envIntOrDefault("PERPSHARE_PERSIST_BATCH_SIZE", 50),
		PersistFlushTimeout: envDurationOrDefault("PERPSHARE_PERSIST_FLUSH_TIMEOUT", 10*time.Millisecond),
		SnapshotInterval:    envDurationOrDefault("PERPSHARE_SNAPSHOT_INTERVAL", time.Minute),
		SnapshotKeep:        envIntOrDefault("PERPSHARE_SNAPSHOT_KEEP", 10),
		FundingPoll:         envDurationOrDefault("PERPSHARE_FUNDING_POLL", 10*time.Second),
	}
}

func main() {
	log := observability.NewLogger("main")
	log.Info().Msg("PerpShare starting")

	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := observability.NewHealthChecker()

	// --- Postgres (optional) ---
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}
		log.Info().Msg("Postgres connected")

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrate"))
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
		log.Info().Msg("migrations applied")
	} else {
		log.Warn().Msg("no PERPSHARE_POSTGRES_DSN, running without persistence")
	}

	// --- Event channels ---
	// The recorder feeds one channel; a tee goroutine fans envelopes out to
	// the event log and the outbound publisher.
	recorderChan := make(chan *event.Envelope, cfg.EventChanSize)
	recorder := publish.NewRecorder(recorderChan, observability.NewLogger("recorder"), metrics)

	// --- Core ---
	c, err := core.New(core.Config{
		Owner:            cfg.Owner,
		PoolAddress:      cfg.PoolAddress,
		TokenizerAddress: cfg.TokenizerAddress,
		DevAddress:       cfg.DevAddress,
		LedgerParams:     perpetual.DefaultGovParams(),
		PoolParams:       amm.DefaultParams(),
	}, funds.NewNativeVault(), recorder, observability.NewLogger("core"), metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("build core")
	}

	// --- Snapshot restore ---
	var snapMgr *persistence.SnapshotManager
	if db != nil {
		snapMgr = persistence.NewSnapshotManager(db)
		snap, err := snapMgr.LoadLatestSnapshot(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("load snapshot")
		}
		if snap != nil {
			if err := c.Restore(snap); err != nil {
				log.Fatal().Err(err).Msg("restore snapshot")
			}
			log.Info().Int64("sequence", snap.Sequence).Msg("restored from snapshot")
		} else {
			log.Info().Msg("no snapshot found, cold start")
		}
	}

	// --- NATS (optional) ---
	var publishChan chan *event.Envelope
	errChan := make(chan error, 8)
	if cfg.NATSURL != "" {
		nc, js, err := publish.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()
		log.Info().Msg("NATS connected")

		if err := publish.EnsureStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure stream")
		}

		publishChan = make(chan *event.Envelope, cfg.EventChanSize)
		publisher := publish.New(js, publishChan, observability.NewLogger("publish"), metrics)
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	} else {
		log.Warn().Msg("no PERPSHARE_NATS_URL, events stay local")
	}

	// --- Event log + snapshot workers ---
	var persistChan chan *event.Envelope
	if db != nil {
		persistChan = make(chan *event.Envelope, cfg.EventChanSize)
		logWorker := persistence.NewEventLogWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, observability.NewLogger("eventlog"))
		go func() {
			errChan <- logWorker.Run(ctx)
		}()

		snapWorker := persistence.NewSnapshotWorker(db, c.Dump, cfg.SnapshotInterval, cfg.SnapshotKeep, observability.NewLogger("snapshot"), metrics)
		go func() {
			errChan <- snapWorker.Run(ctx)
		}()
	}

	// --- Envelope tee ---
	// Event log delivery blocks (backpressure); publishing drops when full.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-recorderChan:
				if !ok {
					return
				}
				if persistChan != nil {
					select {
					case persistChan <- env:
					case <-ctx.Done():
						return
					}
				}
				if publishChan != nil {
					select {
					case publishChan <- env:
					default:
					}
				}
			}
		}
	}()

	// --- Funding ticker ---
	go func() {
		ticker := time.NewTicker(cfg.FundingPoll)
		defer ticker.Stop()
		flog := observability.NewLogger("funding")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.AccrueFunding(); err != nil {
					// Expected before the pool is seeded with liquidity
					// or an index price.
					flog.Debug().Err(err).Msg("funding accrual skipped")
				}
			}
		}
	}()

	// --- gRPC + HTTP gateway ---
	queryService := query.NewQueryService(c, db)
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, &server.ServerDeps{
		Core:          c,
		QueryService:  queryService,
		StartTime:     time.Now(),
		HealthChecker: healthChecker,
		Logger:        observability.NewLogger("server"),
	})
	go func() {
		errChan <- grpcServer.StartGRPC(ctx)
	}()
	go func() {
		errChan <- grpcServer.StartHTTPGateway(ctx)
	}()

	healthChecker.SetReady(true)
	log.Info().
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Bool("postgres", db != nil).
		Bool("nats", publishChan != nil).
		Msg("PerpShare ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("goroutine failed, shutting down")
		}
	}

	cancel()

	// Give workers time to flush and take the final snapshot.
	time.Sleep(2 * time.Second)
	log.Info().Msg("PerpShare shutdown complete")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
