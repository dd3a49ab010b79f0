package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vecstream/internal/backend"
)

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List available backends and the selected device",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("available: %s\n", backend.Available())

			dev, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()

			info := backend.Describe(dev)
			fmt.Printf("selected:  %s\n", info.Backend)
			fmt.Printf("device:    %s\n", info.Name)
			if info.TotalMemory > 0 {
				fmt.Printf("memory:    %s\n", humanize.IBytes(info.TotalMemory))
			}
			return nil
		},
	}
}
