package cmd

import (
	"github.com/achilleasa/pathpool/config"
	"github.com/achilleasa/pathpool/log"
	"github.com/urfave/cli"
)

var logger = log.New("pathpool")

func setupLogging(ctx *cli.Context, cfg *config.Config) {
	level := cfg.SetupLogging()

	switch {
	case ctx.GlobalBool("vv"):
		level = log.Debug
	case ctx.GlobalBool("v"):
		level = log.Info
	}

	log.SetLevel(level)
	logger.Debugf("log level set to %s", level)
}
