// Command tilld runs the till HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	audithook "github.com/xraph/till/audit_hook"
	"github.com/xraph/till/booking"
	"github.com/xraph/till/cart"
	"github.com/xraph/till/loyalty"
	"github.com/xraph/till/notify"
	"github.com/xraph/till/observability"
	"github.com/xraph/till/publisher"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
	tillredis "github.com/xraph/till/store/redis"
	"github.com/xraph/till/store/sqlite"
	"github.com/xraph/till/types"
	"github.com/xraph/till/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tilld:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	addr := pflag.String("addr", "", "HTTP listen address (overrides config)")
	pflag.Parse()

	cfg, err := loadConfig(*configPath, os.Getenv)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.level()}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, snapshots, err := openStore(cfg)
	if err != nil {
		return err
	}

	var dedupe webhook.Deduper
	if cfg.Redis.URL != "" {
		rs, err := tillredis.Open(ctx, cfg.Redis.URL,
			tillredis.WithPrefix(cfg.Redis.Prefix),
			tillredis.WithCartTTL(cfg.Redis.CartTTL),
		)
		if err != nil {
			return err
		}
		defer rs.Close()
		snapshots = rs
		dedupe = rs
	}

	opts := []till.Option{
		till.WithLogger(log),
		till.WithSnapshotStore(snapshots),
		till.WithPlugin(notify.NewLogNotifier(log, slog.LevelInfo)),
		till.WithPlugin(audithook.New(audithook.LogRecorder(log))),
	}

	var metrics *observability.PrometheusFactory
	if !cfg.Metrics.Disabled {
		metrics = observability.NewPrometheusFactory()
		opts = append(opts, till.WithPlugin(observability.NewMetricsExtension(metrics)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		w := publisher.NewWriter(cfg.Kafka.Brokers...)
		defer w.Close()
		opts = append(opts, till.WithPlugin(publisher.New(w, cfg.Kafka.Topic, publisher.WithLogger(log))))
	}

	if cfg.Loyalty.EarnPoints > 0 {
		opts = append(opts, till.WithEarnPolicy(loyalty.Rate{
			Points: cfg.Loyalty.EarnPoints,
			Per:    types.Money(cfg.Loyalty.EarnPer),
		}))
	}
	if cfg.Loyalty.MembershipRatio > 0 {
		opts = append(opts, till.WithMembershipPolicy(loyalty.Proportional{
			Ratio: decimal.NewFromFloat(cfg.Loyalty.MembershipRatio),
		}))
	}

	tl := till.New(st, opts...)
	if err := tl.Start(context.Background()); err != nil {
		return fmt.Errorf("start till: %w", err)
	}
	defer func() {
		if err := tl.Stop(); err != nil {
			log.Error("till stop failed", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Mount("/", api.NewHandler(tl, log).Routes())

	hookOpts := []webhook.Option{
		webhook.WithLogger(log),
		webhook.WithCredentials(cfg.Webhook.Username, cfg.Webhook.Password),
	}
	if dedupe != nil {
		hookOpts = append(hookOpts, webhook.WithDeduper(dedupe))
	}
	r.Post("/webhooks/payment", webhook.NewHandler(tl.Plugins(), hookOpts...).ServeHTTP)

	if cfg.Booking.APIKey != "" {
		senderOpts := []booking.SenderOption{
			booking.WithNotifier(tl.Plugins()),
			booking.WithSenderLogger(log),
		}
		if cfg.Booking.Endpoint != "" {
			senderOpts = append(senderOpts, booking.WithEndpoint(cfg.Booking.Endpoint))
		}
		sender := booking.NewSender(cfg.Booking.APIKey, cfg.Booking.From, senderOpts...)
		r.Post("/bookings/confirmation", booking.NewHandler(sender, log).SendConfirmation)
	}

	if metrics != nil {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	log.Info("tilld shutdown complete")
	return nil
}

// openStore returns the configured store and the cart snapshot store that
// goes with it.
func openStore(cfg Config) (store.Store, cart.SnapshotStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s := memory.New()
		return s, s, nil
	}
}
