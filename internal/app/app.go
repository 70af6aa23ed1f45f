package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	dataagg "github.com/kestrelpay/banking-backend/internal/data/aggregates"
	"github.com/kestrelpay/banking-backend/internal/data/db"
	"github.com/kestrelpay/banking-backend/internal/data/repos"
	domainagg "github.com/kestrelpay/banking-backend/internal/domain/aggregates"
	"github.com/kestrelpay/banking-backend/internal/observability"
	"github.com/kestrelpay/banking-backend/internal/outbox"
	"github.com/kestrelpay/banking-backend/internal/platform/envutil"
	"github.com/kestrelpay/banking-backend/internal/platform/logger"

	redisclient "github.com/kestrelpay/banking-backend/internal/clients/redis"
)

type Repos struct {
	Accounts     repos.AccountRepo
	Transactions repos.TransactionRepo
	Outbox       repos.OutboxRepo
}

type App struct {
	Log    *logger.Logger
	Cfg    Config
	DB     *gorm.DB
	Router *gin.Engine

	Repos      Repos
	Ledger     domainagg.LedgerAggregate
	Dispatcher *outbox.Dispatcher

	publisherClose  func() error
	metricsShutdown func(context.Context) error
}

func New() (*App, error) {
	log, err := logger.New(envOrDefaultMode())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()
	log.Info("starting", "env", cfg.Env, "http_port", cfg.HTTPPort)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	a := &App{
		Log: log,
		Cfg: cfg,
		DB:  pg.DB(),
	}

	var metrics *observability.Metrics
	if observability.Enabled() {
		shutdown, err := observability.Setup(context.Background(), cfg.MetricsInterval)
		if err != nil {
			return nil, fmt.Errorf("metrics setup: %w", err)
		}
		a.metricsShutdown = shutdown
		metrics, err = observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("metrics instruments: %w", err)
		}
	}

	a.wireRepos()
	a.wireLedger(metrics)
	if err := a.wireDispatcher(metrics); err != nil {
		return nil, err
	}
	a.wireRouter()
	return a, nil
}

func (a *App) wireRepos() {
	a.Repos = Repos{
		Accounts:     repos.NewAccountRepo(a.DB, a.Log),
		Transactions: repos.NewTransactionRepo(a.DB, a.Log),
		Outbox:       repos.NewOutboxRepo(a.DB, a.Log),
	}
}

func (a *App) wireLedger(metrics *observability.Metrics) {
	a.Ledger = dataagg.NewLedgerAggregate(dataagg.LedgerAggregateDeps{
		Base: dataagg.BaseDeps{
			DB:    a.DB,
			Log:   a.Log,
			Hooks: dataagg.NewObservabilityHooks(metrics),
		},
		Accounts:     a.Repos.Accounts,
		Transactions: a.Repos.Transactions,
		Outbox:       a.Repos.Outbox,
	})
}

// wireDispatcher prefers the redis publisher; without REDIS_ADDR events go
// to the log so local runs still drain the outbox.
func (a *App) wireDispatcher(metrics *observability.Metrics) error {
	var publisher outbox.Publisher
	rp, err := redisclient.NewEventPublisher(a.Log)
	if err != nil {
		a.Log.Warn("redis publisher unavailable, falling back to log publisher", "error", err)
		publisher = outbox.NewLogPublisher(a.Log)
	} else {
		publisher = rp
		a.publisherClose = rp.Close
	}

	dispatcher, err := outbox.NewDispatcher(
		a.Repos.Outbox,
		outbox.NewRegistry(),
		publisher,
		a.Log,
		metrics,
		a.Cfg.Dispatcher,
	)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}
	a.Dispatcher = dispatcher
	return nil
}

// Run serves HTTP and polls the outbox until ctx is cancelled, then drains
// both before returning.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.Cfg.HTTPPort,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := a.Dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() {
	if a.publisherClose != nil {
		if err := a.publisherClose(); err != nil {
			a.Log.Warn("publisher close failed", "error", err)
		}
	}
	if a.metricsShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.metricsShutdown(ctx); err != nil {
			a.Log.Warn("metrics shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}

func envOrDefaultMode() string {
	switch envutil.String("APP_ENV", "development") {
	case "production", "prod":
		return "prod"
	default:
		return "dev"
	}
}
