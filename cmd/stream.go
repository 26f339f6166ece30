package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/achilleasa/pathpool/display"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/tracer/cpu"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Write every merged frame to a file (or stdout) as a msgpack stream.
func StreamFrames(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if cfg.Render.FrameBudget == 0 {
		return errNoBudget
	}

	var out io.Writer = os.Stdout
	if path := ctx.String("out"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	bw := bufio.NewWriter(out)
	stream := display.NewStreamSink(bw)
	latch := display.NewLatch()
	c, err := renderer.New(cfg.Options(), cpu.NewRenderer, display.Multi{stream, latch})
	if err != nil {
		return err
	}

	stats, err := runUntilConverged(c, latch)
	if err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}

	logger.Noticef("wrote %d frames", stream.Frames())
	displayFrameStats(stats)
	return nil
}

// Summarize the frames of a msgpack stream.
func InspectStream(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if ctx.NArg() != 1 {
		return errMissingStreamFile
	}

	f, err := os.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Frame", "Width", "Height", "Mean luminance"})

	var count int
	err = display.ReadFrames(bufio.NewReader(f), func(frame *display.Frame) error {
		count++
		table.Append([]string{
			fmt.Sprintf("%d", frame.Seq),
			fmt.Sprintf("%d", frame.Width),
			fmt.Sprintf("%d", frame.Height),
			fmt.Sprintf("%3.2f", meanLuminance(frame.Pix)),
		})
		return nil
	})
	if err != nil {
		return err
	}
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%d", count)})

	table.Render()
	logger.Noticef("stream contents\n%s", buf.String())
	return nil
}

// Rec. 709 luma of an RGBA buffer.
func meanLuminance(pix []uint8) float64 {
	if len(pix) < 4 {
		return 0
	}

	var sum float64
	for i := 0; i+3 < len(pix); i += 4 {
		sum += 0.2126*float64(pix[i]) + 0.7152*float64(pix[i+1]) + 0.0722*float64(pix[i+2])
	}
	return sum / float64(len(pix)/4)
}
