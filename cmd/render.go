package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/achilleasa/pathpool/display"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/tracer/cpu"
	"github.com/urfave/cli"
)

// Render a still frame until the frame budget is exhausted and write it to a
// PNG file.
func RenderFrame(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if ctx.IsSet("out") {
		cfg.Output.PNG = ctx.String("out")
	}
	if cfg.Render.FrameBudget == 0 {
		return errNoBudget
	}

	latch := display.NewLatch()
	sink := display.Multi{display.NewPNGSink(cfg.Output.PNG), latch}
	c, err := renderer.New(cfg.Options(), cpu.NewRenderer, sink)
	if err != nil {
		return err
	}

	stats, err := runUntilConverged(c, latch)
	if err != nil {
		return err
	}

	displayFrameStats(stats)
	return nil
}

// Run the coordinator until it converges or the process is interrupted.
func runUntilConverged(c *renderer.Coordinator, latch *display.Latch) (renderer.FrameStats, error) {
	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(runCtx) }()

	select {
	case <-latch.Done():
		stats, err := c.Stats()
		if err != nil {
			stats = latch.Stats()
		}
		cancel()
		return stats, <-errCh
	case <-runCtx.Done():
		logger.Notice("interrupted")
		return renderer.FrameStats{}, <-errCh
	case err := <-errCh:
		return renderer.FrameStats{}, err
	}
}
