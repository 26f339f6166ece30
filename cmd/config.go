package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/achilleasa/pathpool/config"
	"github.com/urfave/cli"
)

// Flags shared by all commands that drive a coordinator.
var RenderFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "width",
		Usage: "frame width",
	},
	cli.IntFlag{
		Name:  "height",
		Usage: "frame height",
	},
	cli.IntFlag{
		Name:  "workers, w",
		Usage: "number of workers; 0 selects one per CPU",
	},
	cli.IntFlag{
		Name:  "spp",
		Usage: "samples per pixel for each steady-state increment",
	},
	cli.IntFlag{
		Name:  "num-bounces",
		Usage: "max number of indirect bounces",
	},
	cli.IntFlag{
		Name:  "budget",
		Usage: "number of merged frames after which rendering stops; 0 renders forever",
	},
	cli.DurationFlag{
		Name:  "debounce",
		Usage: "quiet period before a camera edit is applied",
	},
	cli.DurationFlag{
		Name:  "worker-timeout",
		Usage: "replace workers that take longer than this to render an increment",
	},
	cli.StringFlag{
		Name:  "origin",
		Usage: "camera origin as x,y,z",
	},
	cli.StringFlag{
		Name:  "target",
		Usage: "camera target as x,y,z",
	},
}

// Load the config file (if any) and apply command line overrides.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.GlobalString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if ctx.IsSet("width") {
		cfg.Render.FrameW = uint32(ctx.Int("width"))
	}
	if ctx.IsSet("height") {
		cfg.Render.FrameH = uint32(ctx.Int("height"))
	}
	if ctx.IsSet("workers") {
		cfg.Render.PoolSize = ctx.Int("workers")
	}
	if ctx.IsSet("spp") {
		cfg.Render.SamplesPerPixel = uint32(ctx.Int("spp"))
	}
	if ctx.IsSet("num-bounces") {
		cfg.Render.NumBounces = uint32(ctx.Int("num-bounces"))
	}
	if ctx.IsSet("budget") {
		cfg.Render.FrameBudget = ctx.Int("budget")
	}
	if ctx.IsSet("debounce") {
		cfg.Render.Debounce = ctx.Duration("debounce")
	}
	if ctx.IsSet("worker-timeout") {
		cfg.Render.WorkerTimeout = ctx.Duration("worker-timeout")
	}
	if ctx.IsSet("origin") {
		v, err := parseVec3(ctx.String("origin"))
		if err != nil {
			return nil, fmt.Errorf("invalid origin: %w", err)
		}
		cfg.Camera.Origin = v
	}
	if ctx.IsSet("target") {
		v, err := parseVec3(ctx.String("target"))
		if err != nil {
			return nil, fmt.Errorf("invalid target: %w", err)
		}
		cfg.Camera.Target = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse a comma separated x,y,z triplet.
func parseVec3(s string) ([3]float32, error) {
	var out [3]float32
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected 3 comma separated values; got %q", s)
	}

	for idx, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return out, err
		}
		out[idx] = float32(v)
	}
	return out, nil
}
