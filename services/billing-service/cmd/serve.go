package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/config"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/metrics"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/ratelimit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/transport/httpapi"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/Tanmoy095/rent-counter-billing/shared/kafka"
	"github.com/Tanmoy095/rent-counter-billing/shared/logger"
	"github.com/Tanmoy095/rent-counter-billing/shared/rabbitmq"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

func runServer(ctx context.Context) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "billing-service")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	loc, err := cfg.Billing.Location()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	var closers []func() error
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("failed to close resource", zap.Error(err))
			}
		}
	}()

	opts := []invoice.Option{invoice.WithAuditor(audit.NewRecorder(b.audit, log))}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, closeLimiter)
	opts = append(opts, invoice.WithLimiter(limiter))

	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	if publisher != nil {
		closers = append(closers, closePublisher)
		opts = append(opts, invoice.WithPublisher(publisher))
	}

	svc := httpapi.Services{Location: loc}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, invoice.WithMetrics(metrics.New(reg)))
		svc.Metrics = metrics.Handler(reg)
		svc.MetricsPath = cfg.Metrics.Path
	}

	calc := billing.NewCalculator(b.readings, b.tariffs)
	svc.Generator = invoice.NewInvoiceGenerator(b.premises, calc, b.invoices, b.tx, cfg.Billing.Currency, log, opts...)
	svc.Finalizer = invoice.NewInvoiceFinalizer(b.invoices, b.tx, log, opts...)
	svc.Editor = invoice.NewInvoiceEditor(b.invoices, b.tx, log, opts...)
	svc.Reader = invoice.NewInvoiceReader(b.invoices)
	svc.Tariffs = tariff.NewManager(b.tariffs, log)
	svc.Readings = usage.NewRecorder(b.premises, b.readings, log)

	server := httpapi.NewHTTPServer(cfg.Server.Addr, httpapi.NewRouter(svc, log),
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout, log)
	if err := server.Start(); err != nil {
		return err
	}
	log.Info("billing service started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("rate_limit", cfg.RateLimit.Driver),
		zap.String("events", cfg.Events.Driver))

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}

func newLimiter(ctx context.Context, cfg *config.BillingConfig, log *zap.Logger) (invoice.Limiter, func() error, error) {
	policy := ratelimit.Policy{Limit: cfg.Billing.FinalizeRateLimit, Window: cfg.Billing.FinalizeRateWindow}
	if cfg.RateLimit.Driver != config.DriverRedis {
		return ratelimit.NewMemoryLimiter(policy), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// the limiter fails open, so an unreachable redis is not fatal
		log.Warn("redis is unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return ratelimit.NewRedisLimiter(client, policy, log), client.Close, nil
}

// newPublisher returns a nil publisher when events are disabled.
func newPublisher(cfg *config.BillingConfig, log *zap.Logger) (invoice.EventPublisher, func() error, error) {
	switch cfg.Events.Driver {
	case config.DriverKafka:
		p := kafka.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		return p, p.Close, nil
	case config.DriverRabbitMQ:
		c, err := rabbitmq.NewClient(cfg.GetRabbitMQURL(), cfg.RabbitMQ.Queue, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return c, c.Close, nil
	}
	return nil, nil, nil
}
