package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/achilleasa/pathpool/display/window"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/tracer/cpu"
	"github.com/urfave/cli"
)

// Display the progressive render in a window. Arrow keys move the camera.
func RenderInteractive(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	opts := cfg.Options()
	win := window.New(int(opts.FrameW), int(opts.FrameH), opts.Camera)
	c, err := renderer.New(opts, cpu.NewRenderer, win)
	if err != nil {
		return err
	}
	win.Attach(c)

	runCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(runCtx) }()

	// ebiten must own the main thread
	winErr := win.Run(fmt.Sprintf("pathpool - %d workers", opts.Workers()))
	cancel()
	runErr := <-errCh

	return errors.Join(winErr, runErr)
}
