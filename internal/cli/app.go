package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"comment_notifier/internal/config"
	"comment_notifier/internal/crawl"
	"comment_notifier/internal/notify"
	"comment_notifier/internal/publisher"
	"comment_notifier/internal/service"
	"comment_notifier/internal/source/lbrynet"
	"comment_notifier/internal/storage"
)

// app holds what every command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		closers: []func() error{db.Close},
	}, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
}

func (a *app) newSender() (service.Sender, error) {
	n := a.cfg.Notify
	switch n.Transport {
	case config.TransportSMTP:
		return notify.NewSMTPSender(notify.SMTPConfig{
			Address:  n.SMTP.Address,
			User:     n.SMTP.User,
			Password: n.SMTP.Password,
		}), nil
	case config.TransportRabbitMQ:
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        n.RabbitMQ.URL,
			Exchange:   n.RabbitMQ.Exchange,
			RoutingKey: n.RabbitMQ.RoutingKey,
			QueueName:  n.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		return rabbitMQ, nil
	case config.TransportLog:
		return notify.NewLogSender(a.logger), nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", n.Transport)
	}
}

func (a *app) newSyncService() (*service.SyncService, error) {
	sender, err := a.newSender()
	if err != nil {
		return nil, err
	}

	api := a.cfg.API
	client := lbrynet.New(lbrynet.Config{
		BaseURL:        api.BaseURL,
		Timeout:        api.Timeout,
		MaxAttempts:    api.Retry.MaxAttempts,
		InitialBackoff: api.Retry.InitialBackoff,
		MaxBackoff:     api.Retry.MaxBackoff,
	}, a.logger)

	walker := crawl.New(client, crawl.Config{
		PageSize:    api.PageSize,
		Concurrency: api.Concurrency,
	}, a.logger)

	a.logger.Info("source configured",
		"source", client.Name(),
		"base_url", api.BaseURL,
		"page_size", api.PageSize,
		"transport", a.cfg.Notify.Transport,
	)

	return service.NewSyncService(
		client.ID(),
		walker,
		storage.NewCommentStore(a.db),
		storage.NewTransactionManager(a.db),
		storage.NewSyncStateStore(a.db),
		sender,
		a.logger,
		a.cfg.Sync,
		a.cfg.Notify,
	), nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
