// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "regcore/internal/jwt_token"
	"regcore/internal/platform/config"
	"regcore/internal/platform/httpserver"
	"regcore/internal/platform/kafka"
	"regcore/internal/platform/logger"
	platformmetrics "regcore/internal/platform/metrics"
	platformredis "regcore/internal/platform/redis"
	"regcore/internal/registry/batch"
	"regcore/internal/registry/billing"
	"regcore/internal/registry/dns"
	"regcore/internal/registry/handler"
	"regcore/internal/registry/lifecycle"
	regmetrics "regcore/internal/registry/metrics"
	"regcore/internal/registry/service"
	"regcore/internal/registry/store"
	billingstore "regcore/internal/registry/store/billing"
	"regcore/internal/registry/store/checkcache"
	"regcore/internal/registry/store/dnsoutbox"
	domainstore "regcore/internal/registry/store/domains"
	historystore "regcore/internal/registry/store/history"
	pollstore "regcore/internal/registry/store/poll"
	"regcore/pkg/platform/httputil"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}

	domains := domainstore.NewPostgres(db)
	ledger := billingstore.NewPostgres(db)
	history := historystore.NewPostgres(db)
	polls := pollstore.NewPostgres(db)
	outbox := dnsoutbox.NewPostgres(db)
	txRunner := store.NewPostgresTx(db)

	reg := prometheus.NewRegistry()
	commandMetrics := regmetrics.New(reg)
	httpMetrics := platformmetrics.New(reg)

	gen := billing.NewGenerator(ledger, billing.DefaultPricing(), lifecycle.DefaultConfig())
	notifier := dns.NewNotifier(outbox)

	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(commandMetrics),
	}

	// Availability checks may read a lagging replica; commands never do.
	if cfg.Database.ReplicaDSN != "" {
		replica, err := sql.Open("postgres", cfg.Database.ReplicaDSN)
		if err != nil {
			return err
		}
		defer replica.Close()
		serviceOpts = append(serviceOpts, service.WithReadStore(domainstore.NewPostgres(replica)))
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		serviceOpts = append(serviceOpts,
			service.WithCheckCache(checkcache.NewRedis(redisClient.Client, cfg.Redis.CheckTTL)))
	}

	svc := service.NewService(txRunner, domains, gen, notifier, history, polls, serviceOpts...)
	sweeper := batch.NewSweeper(txRunner, domains, gen, notifier, history, polls, ledger,
		batch.WithLogger(log),
		batch.WithMetrics(commandMetrics))

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.New(svc, sweeper, log, httpMetrics, jwttoken.NewJWTServiceAdapter(jwtService)).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting regcore", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		relay := dns.NewRelay(outbox, producer, cfg.Kafka.DNSTopic,
			dns.WithInterval(cfg.Kafka.RelayInterval),
			dns.WithBatchSize(cfg.Kafka.RelayBatch),
			dns.WithLogger(log))
		g.Go(func() error {
			return relay.Run(ctx)
		})
	} else {
		log.Warn("kafka brokers not configured; dns refresh requests stay queued in the outbox")
	}

	if cfg.Sweep.CronSpec != "" {
		scheduler, err := batch.NewScheduler(cfg.Sweep.CronSpec, sweeper, batch.Params{
			TLDs:        cfg.Sweep.TLDs,
			BatchSize:   cfg.Sweep.BatchSize,
			MaxDuration: cfg.Sweep.MaxDuration,
		}, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
