package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vecstream/internal/dataset"
	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/logger"
	"github.com/samcharles93/vecstream/internal/pipeline"
)

func runCmd() *cli.Command {
	var (
		inputs    []string
		expected  string
		output    string
		jsonOut   bool
		tolerance float64
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Add two input vectors through the streamed pipeline",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "input files (a,b) or a dataset directory",
				Destination: &inputs,
			},
			&cli.StringFlag{
				Name:        "expected",
				Aliases:     []string{"e"},
				Usage:       "expected output file to check the result against",
				Destination: &expected,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the result vector to this file",
				Destination: &output,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result vector as a JSON array on stdout",
				Destination: &jsonOut,
			},
			&cli.Float64Flag{
				Name:        "tolerance",
				Usage:       "relative tolerance when checking against --expected",
				Value:       0,
				Destination: &tolerance,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			in0Path, in1Path, err := resolveInputs(inputs)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve inputs: %v", err), 1)
			}
			expectedPath := resolveExpected(expected, in0Path)

			stop := logger.Time(log, "Importing data and creating memory on host")
			in1, err := dataset.Import(in0Path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			in2, err := dataset.Import(in1Path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			stop()
			if len(in1) != len(in2) {
				return cli.Exit(fmt.Sprintf("error: input lengths differ: %d != %d", len(in1), len(in2)), 1)
			}
			log.Info("input length", "elements", len(in1),
				"bytes", humanize.IBytes(uint64(len(in1))*4))

			dev, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()

			out, err := pipeline.Add(ctx, dev, pipeline.DefaultConfig(), in1, in2)
			if err != nil {
				return deviceExit(err)
			}

			if output != "" {
				if err := dataset.Export(output, out); err != nil {
					return cli.Exit(fmt.Sprintf("error: write output: %v", err), 1)
				}
				log.Info("wrote output", "path", output)
			}
			if jsonOut {
				if err := dataset.EncodeJSON(os.Stdout, out); err != nil {
					return err
				}
			}

			if expectedPath == "" {
				return nil
			}
			want, err := dataset.Import(expectedPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			res := dataset.Check(want, out, tolerance)
			if !res.OK() {
				return cli.Exit(fmt.Sprintf("check failed: %s", res), 1)
			}
			if !jsonOut {
				fmt.Println(res)
			}
			return nil
		},
	}
}

// deviceExit reports a device failure with its operation and source location.
func deviceExit(err error) error {
	var opErr *device.OpError
	if errors.As(err, &opErr) {
		return cli.Exit(fmt.Sprintf("device error: %v", err), 1)
	}
	return cli.Exit(fmt.Sprintf("error: %v", err), 1)
}
