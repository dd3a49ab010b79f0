package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vecstream/internal/dataset"
	"github.com/samcharles93/vecstream/internal/logger"
)

func generateCmd() *cli.Command {
	var (
		dir    string
		length int64
		seed   int64
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Write a random dataset (input0.raw, input1.raw, output.raw)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "output directory",
				Value:       ".",
				Destination: &dir,
			},
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "number of elements per vector",
				Value:       1024,
				Destination: &length,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed",
				Value:       1,
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths, err := dataset.Generate(dir, int(length), seed)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
			}
			logger.FromContext(ctx).Info("dataset written",
				"dir", dir,
				"elements", length,
				"size", humanize.IBytes(uint64(length)*4))
			fmt.Println(paths.Input0)
			fmt.Println(paths.Input1)
			fmt.Println(paths.Output)
			return nil
		},
	}
}
