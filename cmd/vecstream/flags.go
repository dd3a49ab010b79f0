package main

import "github.com/urfave/cli/v3"

var (
	backendName string
	logLevel    string
	logFormat   string
	debug       bool
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (auto, host, cuda)",
			Value:       "auto",
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging and per-segment tracing (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
