// Command worker runs one channel's WorkerPipeline (email or push, chosen
// by cfg.Channel / NOTIFIER_CHANNEL) plus its StatusAPI. Wiring follows the
// teacher's cmd/notifier/main.go.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/notifyhub/internal/audit"
	"github.com/aliskhannn/notifyhub/internal/breaker"
	"github.com/aliskhannn/notifyhub/internal/bus"
	"github.com/aliskhannn/notifyhub/internal/config"
	"github.com/aliskhannn/notifyhub/internal/httpserver"
	"github.com/aliskhannn/notifyhub/internal/model"
	emailadapter "github.com/aliskhannn/notifyhub/internal/pipeline/email"
	pushadapter "github.com/aliskhannn/notifyhub/internal/pipeline/push"
	"github.com/aliskhannn/notifyhub/internal/pipeline"
	"github.com/aliskhannn/notifyhub/internal/render"
	"github.com/aliskhannn/notifyhub/internal/statusapi"
	"github.com/aliskhannn/notifyhub/internal/statusstore"
	"github.com/aliskhannn/notifyhub/pkg/email"
	"github.com/aliskhannn/notifyhub/pkg/push"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()

	channel := model.Channel(cfg.Channel)
	if channel != model.ChannelEmail && channel != model.ChannelPush {
		zlog.Logger.Fatal().Str("channel", cfg.Channel).Msg("unknown worker channel, set NOTIFIER_CHANNEL to email or push")
	}

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

	db, err := dbpg.New(cfg.Database.DSN(), nil, &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to audit database")
	}
	auditRepo := audit.NewRepository(db)

	breakerSettings := breaker.Settings{
		Name:              string(channel),
		Timeout:           cfg.Breaker.Timeout,
		ErrorThreshold:    cfg.Breaker.ErrorThreshold,
		Cooldown:          cfg.Breaker.Cooldown,
		MinRequestsToTrip: cfg.Breaker.MinRequestsToTrip,
	}
	cb := breaker.New(breakerSettings)

	var (
		adapter   pipeline.Adapter
		queueName string
	)

	switch channel {
	case model.ChannelEmail:
		emailClient := email.NewClient(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
		adapter = emailadapter.New(emailClient, cb)
		queueName = bus.QueueEmail
	case model.ChannelPush:
		pushClient := push.NewClient(cfg.Push.Endpoint, cfg.Push.PrivateKey)
		adapter = pushadapter.New(pushClient, cb)
		queueName = bus.QueuePush
	}

	p := pipeline.New(pipeline.Config{
		Channel:     channel,
		Store:       store,
		Bus:         b,
		Adapter:     adapter,
		Renderer:    render.New(),
		Audit:       auditRepo,
		MaxAttempts: cfg.MaxAttempts,
		StatusTTL:   time.Duration(cfg.StatusTTLSeconds) * time.Second,
		Strategy:    cfg.Retry,
	})

	runner := pipeline.NewRunner(b, p, queueName, cfg.Workers.Count)
	go runner.Run(ctx, cfg.Retry)

	statusHandler := statusapi.NewHandler(store, channel)
	router := statusapi.NewRouter(statusHandler)
	srv := httpserver.New(cfg.Server.Port, router)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start status server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown status server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close audit database")
	}
	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq channel")
	}
	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close rabbitmq connection")
	}
}
