package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/acewatch/internal/alerting"
	pkgconfig "github.com/Vodeneev/acewatch/internal/pkg/config"
	"github.com/Vodeneev/acewatch/internal/pkg/models"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
	"github.com/Vodeneev/acewatch/internal/pkg/storage"
	"github.com/Vodeneev/acewatch/internal/state"
	"github.com/Vodeneev/acewatch/internal/tracker"
)

func openSink(ctx context.Context, c *pkgconfig.Config) (storage.Sink, error) {
	switch c.Sink.Driver {
	case "sheets":
		s, err := storage.NewSheetsSink(ctx, c.Sink.SpreadsheetID, storage.SheetsCredentials{
			JSON:        c.Sink.CredentialsJSON,
			ClientEmail: c.Sink.ClientEmail,
			PrivateKey:  c.Sink.PrivateKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "sqlite":
		dialect := storage.Postgres
		if c.Sink.Driver == "sqlite" {
			dialect = storage.SQLite
		}
		s, err := storage.NewSQLSink(ctx, dialect, c.Sink.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		slog.Warn("Using in-memory sink, results are lost on exit")
		return storage.NewMemorySink(), nil
	}
	return nil, fmt.Errorf("unknown sink driver %q", c.Sink.Driver)
}

func openStore(ctx context.Context, c *pkgconfig.Config) (state.Store, error) {
	switch c.State.Driver {
	case "file":
		st, err := state.NewFileStore(c.State.Dir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "redis":
		st, err := state.NewRedisStore(ctx, &redis.Options{
			Addr:     c.State.Redis.Addr,
			Password: c.State.Redis.Password,
			DB:       c.State.Redis.DB,
		}, c.State.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown state driver %q", c.State.Driver)
}

// buildNotifier fans out to every configured sink and falls back to the
// log when none is.
func buildNotifier(c *pkgconfig.Config) (alerting.Notifier, error) {
	var sinks []alerting.Notifier
	if c.Alerts.Webhook.URL != "" {
		sinks = append(sinks, alerting.NewWebhookNotifier(
			c.Alerts.Webhook.URL, c.Alerts.Webhook.Bearer, c.Alerts.Webhook.Format, c.Alerts.Webhook.Timeout))
	}
	if c.Alerts.Telegram.Token != "" {
		tg, err := alerting.NewTelegramNotifier(c.Alerts.Telegram.Token, c.Alerts.Telegram.ChatID, c.Alerts.Telegram.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to init telegram notifier: %w", err)
		}
		sinks = append(sinks, tg)
	}

	switch len(sinks) {
	case 0:
		slog.Warn("No notification sink configured, alerts go to the log only")
		return alerting.LogNotifier{}, nil
	case 1:
		return sinks[0], nil
	}
	return alerting.NewMultiNotifier(sinks...), nil
}

// buildEngine assembles the ingestion engine with its alert rules. store
// may be nil for one-shot commands that never ingest.
func buildEngine(ctx context.Context, c *pkgconfig.Config, names *models.Normalizer, sink storage.Sink,
	store state.Store, notifier alerting.Notifier, perf *performance.Tracker) (*tracker.Engine, error) {
	alerts := alerting.NewEngine(alerting.Config{
		Rules:       c.Alerts.Rules,
		Names:       names,
		Notifier:    notifier,
		Sink:        sink,
		Store:       store,
		Cooldown:    c.Alerts.Cooldown,
		CallTimeout: c.Tracker.CallTimeout,
	})

	return tracker.NewEngine(ctx, tracker.EngineConfig{
		Names:       names,
		Sink:        sink,
		Store:       store,
		Alerts:      alerts,
		SourceURL:   c.Source.URL,
		LastN:       c.Tracker.LastN,
		CallTimeout: c.Tracker.CallTimeout,
		Perf:        perf,
	})
}
