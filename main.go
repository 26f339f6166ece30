package main

import (
	"os"

	"github.com/achilleasa/pathpool/cmd"
	"github.com/achilleasa/pathpool/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "pathpool"
	app.Usage = "progressive path tracing on a pool of workers"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load settings from a YAML file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a still frame",
			Description: `
Render the scene on a pool of workers until the frame budget is exhausted and
write the averaged frame to a PNG file.`,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			}, cmd.RenderFlags...),
			Action: cmd.RenderFrame,
		},
		{
			Name:  "serve",
			Usage: "serve an interactive view of the render over HTTP",
			Description: `
Start the worker pool and serve a web page that displays the progressively
refined frame and lets the camera be edited.`,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "listen, l",
					Usage: "address to listen on",
				},
			}, cmd.RenderFlags...),
			Action: cmd.Serve,
		},
		{
			Name:   "interactive",
			Usage:  "render an interactive view of the scene in a window",
			Flags:  cmd.RenderFlags,
			Action: cmd.RenderInteractive,
		},
		{
			Name:  "stream",
			Usage: "write every merged frame as a msgpack stream",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Value: "-",
					Usage: "output file; - writes to stdout",
				},
			}, cmd.RenderFlags...),
			Action: cmd.StreamFrames,
		},
		{
			Name:      "inspect",
			Usage:     "summarize the frames of a msgpack stream",
			ArgsUsage: "stream_file",
			Action:    cmd.InspectStream,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("pathpool").Error(err)
		os.Exit(1)
	}
}
