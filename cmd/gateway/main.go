// Command gateway runs the IngressGateway: authenticated notification
// submission, out-of-band user registration, external status ingestion,
// and liveness. Wiring follows the teacher's cmd/notifier/main.go —
// signal-notified context, component construction order, graceful shutdown.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/bus"
	"github.com/aliskhannn/notifyhub/internal/config"
	"github.com/aliskhannn/notifyhub/internal/httpserver"
	"github.com/aliskhannn/notifyhub/internal/ingress"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	b, err := bus.New(ch, cfg.RabbitMQ.Exchange)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to set up message bus")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	store := statusstore.New(statusstore.NewRedisCache(rdb), cfg.Retry)

	handler := ingress.NewHandler(ingress.Config{
		Store:     store,
		Bus:       b,
		Validator: val,
		APIKey:    cfg.APIKey,
		IdempTTL:  time.Duration(cfg.Idempotency.TTLSeconds) * time.Second,
		StatusTTL: time.Duration(cfg.StatusTTLSeconds) * time.Second,
		Strategy:  cfg.Retry,
	})

	router := ingress.NewRouter(handler)
	srv := httpserver.New(cfg.Server.Port, router)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start gateway server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown gateway server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq channel")
	}
	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq connection")
	}
}
