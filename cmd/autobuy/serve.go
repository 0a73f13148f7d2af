package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/autobuy/bridge"
	"github.com/hazyhaar/autobuy/checkout"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/internal/browser"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var addr string
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP surface and resume orders on page loads",
		Long: `Serve attaches to Chrome, pins the working tab and resumes the in-flight
order every time that tab finishes loading a page. Orders arrive over HTTP
(/api/...), MCP (/mcp, or stdio with --stdio) or bridge messages
(/api/messages/{type}).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, g, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			return serve(ctx, a, stdio)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "also serve MCP on stdin/stdout")
	return cmd
}

func serve(ctx context.Context, a *app, stdio bool) error {
	log := a.logger

	work, err := a.workingPage(ctx)
	if err != nil {
		return err
	}
	pinned := func(context.Context) (dom.Page, error) { return work, nil }

	router := newRouter(a, pinned)

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "autobuy", Version: version}, nil)
	checkout.RegisterMCP(mcpSrv, router)

	// The page may already sit on the supplier site after a restart.
	resume(ctx, a, work)
	go func() {
		if err := browser.WatchLoads(ctx, work.Page(), func(ctx context.Context) { resume(ctx, a, work) }); err != nil && ctx.Err() == nil {
			log.Error("autobuy: page watcher stopped", "error", err)
		}
	}()

	if stdio {
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				log.Error("autobuy: mcp stdio", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: bridge.NewHTTPHandler(router, bridge.HTTPConfig{
			Username:     a.cfg.HTTP.Username,
			PasswordHash: a.cfg.HTTP.PasswordHash,
			MCP: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
				return mcpSrv
			}, nil),
			Logger: a.logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("autobuy: listening", "addr", srv.Addr, "messages", router.Types())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("autobuy: shutting down")
	return srv.Shutdown(shutdownCtx)
}

// newRouter registers the checkout messages over page.
func newRouter(a *app, page checkout.PageSource) *bridge.Router {
	router := bridge.New(bridge.WithLogger(a.logger))
	checkout.NewAdapter(a.engine, page,
		checkout.WithRetryOnFailure(a.cfg.Checkout.RetryOnFailure),
		checkout.WithAdapterLogger(a.logger),
	).RegisterBridge(router)
	return router
}

// resume re-enters the engine after a page load.
func resume(ctx context.Context, a *app, page dom.Page) {
	out, err := a.engine.Resume(ctx, page)
	if err != nil {
		a.logger.Error("autobuy: resume", "error", err)
		return
	}
	if out != nil {
		a.logger.Info("autobuy: order resumed", "status", out.Status, "success", out.Success, "error", out.Error)
	}
}
