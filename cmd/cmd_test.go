package cmd

import (
	"flag"
	"testing"
	"time"

	"github.com/achilleasa/pathpool/renderer"
	"github.com/urfave/cli"
)

func TestParseVec3(t *testing.T) {
	type spec struct {
		in     string
		exp    [3]float32
		expErr bool
	}
	specs := []spec{
		{"1,2,3", [3]float32{1, 2, 3}, false},
		{" -1.5, 0 ,2e1", [3]float32{-1.5, 0, 20}, false},
		{"1,2", [3]float32{}, true},
		{"1,2,x", [3]float32{}, true},
	}

	for index, s := range specs {
		got, err := parseVec3(s.in)
		if (err != nil) != s.expErr {
			t.Fatalf("[spec %d] expected error to be %t; got %v", index, s.expErr, err)
		}
		if err == nil && got != s.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, got)
		}
	}
}

func TestMeanLuminance(t *testing.T) {
	type spec struct {
		pix []uint8
		exp float64
	}
	specs := []spec{
		{nil, 0},
		{[]uint8{0, 0, 0, 255}, 0},
		{[]uint8{255, 255, 255, 255, 255, 255, 255, 0}, 255},
	}

	for index, s := range specs {
		if got := meanLuminance(s.pix); got < s.exp-1e-9 || got > s.exp+1e-9 {
			t.Fatalf("[spec %d] expected %f; got %f", index, s.exp, got)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range RenderFlags {
		f.Apply(set)
	}
	if err := set.Parse([]string{"--width", "64", "--workers", "3", "--budget", "10", "--debounce", "1s", "--origin", "5,5,5"}); err != nil {
		t.Fatal(err)
	}

	globals := flag.NewFlagSet("global", flag.ContinueOnError)
	globals.String("config", "", "")
	ctx := cli.NewContext(cli.NewApp(), set, cli.NewContext(cli.NewApp(), globals, nil))

	cfg, err := loadConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Render.FrameW != 64 || cfg.Render.PoolSize != 3 || cfg.Render.FrameBudget != 10 || cfg.Render.Debounce != time.Second {
		t.Fatalf("expected command line overrides to be applied; got %+v", cfg.Render)
	}
	if cfg.Render.FrameH != renderer.DefaultOptions().FrameH {
		t.Fatal("expected unset flags to keep their defaults")
	}
	if cfg.Camera.Origin != [3]float32{5, 5, 5} {
		t.Fatalf("expected origin override; got %v", cfg.Camera.Origin)
	}
}

func TestDisplayFrameStats(t *testing.T) {
	displayFrameStats(renderer.FrameStats{
		Workers: []renderer.WorkerStat{
			{Id: 0, State: renderer.Idle, Frames: 3},
			{Id: 1, Failed: true},
		},
		Frames: 3,
	})
}
