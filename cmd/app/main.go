package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/app"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "chorerules",
		Usage: "Per-family validation rules service for the chore app",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("CHORERULES_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./chorerules.sqlite",
				Sources: cli.EnvVars("CHORERULES_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "default-strictness",
				Value:   "normal",
				Sources: cli.EnvVars("CHORERULES_DEFAULT_STRICTNESS"),
				Usage:   "Template for configurations created on first access (relaxed, normal, strict)",
			},
			&cli.IntFlag{
				Name:    "history-limit",
				Value:   50,
				Sources: cli.EnvVars("CHORERULES_HISTORY_LIMIT"),
				Usage:   "History entries kept per family configuration",
			},
			&cli.StringFlag{
				Name:    "presets-file",
				Sources: cli.EnvVars("CHORERULES_PRESETS_FILE"),
				Usage:   "YAML catalog of public presets seeded at startup",
			},
			&cli.BoolFlag{
				Name:    "watch-presets",
				Sources: cli.EnvVars("CHORERULES_WATCH_PRESETS"),
				Usage:   "Seed new catalog entries when the presets file changes",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("CHORERULES_WEBHOOK_URL"),
				Usage:   "Change feed webhook target URL; events are only logged when empty",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("CHORERULES_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.DurationFlag{
				Name:    "webhook-timeout",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("CHORERULES_WEBHOOK_TIMEOUT"),
				Usage:   "Timeout for one webhook request",
			},
			&cli.DurationFlag{
				Name:    "analytics-flush-interval",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("CHORERULES_ANALYTICS_FLUSH_INTERVAL"),
				Usage:   "How often buffered validation counters are written",
			},
			&cli.DurationFlag{
				Name:    "dispatch-interval",
				Value:   2 * time.Second,
				Sources: cli.EnvVars("CHORERULES_DISPATCH_INTERVAL"),
				Usage:   "Outbox polling interval",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:                   c.String("addr"),
				DBPath:                 c.String("db-path"),
				DefaultStrictness:      c.String("default-strictness"),
				HistoryLimit:           int(c.Int("history-limit")),
				PresetsFile:            c.String("presets-file"),
				WatchPresets:           c.Bool("watch-presets"),
				WebhookURL:             c.String("webhook-url"),
				WebhookSecret:          c.String("webhook-secret"),
				WebhookTimeout:         c.Duration("webhook-timeout"),
				AnalyticsFlushInterval: c.Duration("analytics-flush-interval"),
				DispatchInterval:       c.Duration("dispatch-interval"),
			}

			server, closer, err := app.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Printf("close resources: %v", closeErr)
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("listening on %s", cfg.Addr)
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Printf("received signal %s", sig)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
