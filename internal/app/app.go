package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/adapters/events"
	"github.com/atvirokodosprendimai/chorerules/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/chorerules/internal/adapters/presetfile"
	sqliteadapter "github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/internal/core/ports"
	"github.com/atvirokodosprendimai/chorerules/internal/core/usecase"
	"github.com/atvirokodosprendimai/chorerules/migrations"
)

type Config struct {
	Addr                   string
	DBPath                 string
	DefaultStrictness      string
	HistoryLimit           int
	PresetsFile            string
	WatchPresets           bool
	WebhookURL             string
	WebhookSecret          string
	WebhookTimeout         time.Duration
	AnalyticsFlushInterval time.Duration
	AnalyticsBuffer        int
	DispatchInterval       time.Duration
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	level, err := domain.ParseStrictness(cfg.DefaultStrictness)
	if err != nil {
		return nil, nil, fmt.Errorf("default strictness: %w", err)
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	validator, err := usecase.NewPatchValidator()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	configStore := sqliteadapter.NewConfigStore(db)
	presetRepo := sqliteadapter.NewPresetRepository(db)
	analyticsRepo := sqliteadapter.NewAnalyticsRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	configService := usecase.NewConfigService(configStore, presetRepo, analyticsRepo, validator, usecase.ConfigServiceOptions{
		DefaultStrictness: level,
		HistoryLimit:      cfg.HistoryLimit,
	})
	presetService := usecase.NewPresetService(presetRepo, validator)
	analyticsService := usecase.NewAnalyticsService(analyticsRepo, cfg.AnalyticsFlushInterval, cfg.AnalyticsBuffer)
	formService := usecase.NewFormService(configService, analyticsService)

	var watcher io.Closer
	if cfg.PresetsFile != "" {
		docs, err := presetfile.Load(cfg.PresetsFile, validator)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if _, err := presetService.Seed(ctx, docs); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("seed presets: %w", err)
		}
		if cfg.WatchPresets {
			w, err := presetfile.Watch(cfg.PresetsFile, validator, 0, func(docs []usecase.PresetDocument) {
				seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if _, err := presetService.Seed(seedCtx, docs); err != nil {
					log.Printf("reseed presets file=%s: %v", cfg.PresetsFile, err)
				}
			})
			if err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			watcher = w
		}
	}

	var publisher ports.EventPublisher = events.NewLogPublisher()
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout)
		log.Printf("change feed webhook enabled url=%s signed=%t", cfg.WebhookURL, cfg.WebhookSecret != "")
	}
	dispatcher := usecase.NewChangeFeedDispatcher(outboxRepo, publisher, usecase.DispatcherOptions{
		Interval:  cfg.DispatchInterval,
		BatchSize: 100,
	})
	dispatcher.Start(context.Background())
	analyticsService.Start(context.Background())

	handler := httpapi.NewHandler(configService, presetService, formService, analyticsService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Analytics flush on close, so they must stop before the database does.
	return server, resourceCloser{closers: []io.Closer{watcher, dispatcher, analyticsService, db}}, nil
}
