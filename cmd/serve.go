package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/tracer/cpu"
	"github.com/achilleasa/pathpool/web"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// Serve the progressive render over HTTP.
func Serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if ctx.IsSet("listen") {
		cfg.Server.Listen = ctx.String("listen")
	}

	srv := web.NewServer(cfg.Server.FrameInterval)
	c, err := renderer.New(cfg.Options(), cpu.NewRenderer, srv)
	if err != nil {
		return err
	}
	srv.Attach(c)

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return c.Run(gctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Listen)
	})

	return g.Wait()
}
