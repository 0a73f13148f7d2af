package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/autobuy/checkout"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/driver"
	"github.com/hazyhaar/autobuy/internal/browser"
	"github.com/hazyhaar/autobuy/internal/config"
	"github.com/hazyhaar/autobuy/internal/sink"
	"github.com/hazyhaar/autobuy/statestore"
)

const version = "0.4.0"

type globalOpts struct {
	configPath string
	logLevel   string
	remote     string
}

func newRootCmd() *cobra.Command {
	var g globalOpts

	root := &cobra.Command{
		Use:   "autobuy",
		Short: "Dropshipping order automation on supplier sites",
		Long: `autobuy places storefront orders on supplier sites (AliExpress, Amazon,
eBay, Temu, DHgate, ...) by driving a Chrome window. It fills the checkout as
far as each platform allows, hands off to the operator where it must, and keeps
a bounded history of every outcome.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to autobuy.yaml (defaults apply when empty)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config file)")
	root.PersistentFlags().StringVar(&g.remote, "remote", "", "DevTools WebSocket URL of a running Chrome (overrides browser.remote)")

	root.AddCommand(
		newServeCmd(&g),
		newOrderCmd(&g),
		newResumeCmd(&g),
		newHistoryCmd(&g),
		newRetryCmd(&g),
		newStatusCmd(&g),
		newDetectCmd(),
	)
	return root
}

// app is the wiring shared by every command touching the state store.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   statestore.Store
	events  *sink.Router
	browser *browser.Manager
	engine  *checkout.Engine
}

// setup loads configuration and opens the store. withBrowser also starts
// Chrome so orders can run.
func setup(ctx context.Context, g *globalOpts, withBrowser bool) (*app, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(g.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.remote != "" {
		cfg.Browser.Remote = g.remote
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: store, events: newEvents(cfg.Events, logger)}

	if withBrowser {
		a.browser = browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			Headless:         cfg.Browser.Headless,
			Bin:              cfg.Browser.Bin,
			UserDataDir:      cfg.Browser.UserDataDir,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			NavigateTimeout:  cfg.Browser.NavigateTimeout,
			Logger:           logger,
		})
		if _, err := a.browser.Start(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	opts := []checkout.Option{checkout.WithLogger(logger), checkout.WithSink(a.events)}
	if a.browser != nil {
		opts = append(opts, checkout.WithPageOpener(a.openStatusPage))
	}
	a.engine = checkout.New(store, driver.Defaults(cfg.Selectors, cfg.Agents), checkout.Config{
		AutoConfirm:    cfg.Checkout.AutoConfirmOrders,
		InFlightMaxAge: cfg.Checkout.InFlightMaxAge,
		StepDelay:      cfg.Delays.Step,
		PageLoad:       cfg.Delays.PageLoad,
		Poll:           cfg.Delays.Poll,
	}, opts...)
	return a, nil
}

// workingPage returns the tab orders run in.
func (a *app) workingPage(ctx context.Context) (*dom.Rod, error) {
	p, err := a.browser.ActivePage(ctx)
	if err != nil {
		return nil, err
	}
	return dom.NewRod(p), nil
}

// openStatusPage opens a background tab so status checks never move the
// working page.
func (a *app) openStatusPage(ctx context.Context) (dom.Page, func(), error) {
	p, err := a.browser.OpenPage(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	return dom.NewRod(p), func() { p.Close() }, nil
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("autobuy: close browser", "error", err)
		}
	}
	if err := a.events.Close(); err != nil {
		a.logger.Warn("autobuy: close sinks", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("autobuy: close store", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(ctx context.Context, cfg config.StoreConfig) (statestore.Store, error) {
	switch cfg.Backend {
	case "redis":
		s, err := statestore.OpenRedis(ctx, statestore.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Prefix:       cfg.Redis.Prefix,
			HistoryLimit: cfg.HistoryLimit,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := statestore.OpenSQLite(cfg.Path,
			statestore.WithMkdirAll(),
			statestore.WithHistoryLimit(cfg.HistoryLimit))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newEvents(cfg config.EventsConfig, logger *slog.Logger) *sink.Router {
	r := sink.NewRouter(logger)
	if cfg.Stdout {
		r.Add(sink.NewStdout(os.Stdout))
	}
	for _, w := range cfg.Webhooks {
		r.Add(sink.NewWebhook(w.URL,
			sink.WithWebhookRetries(w.Retries),
			sink.WithWebhookBackoff(w.Backoff),
			sink.WithWebhookLogger(logger)))
	}
	return r
}
