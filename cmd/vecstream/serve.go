package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/vecstream/internal/api"
	"github.com/samcharles93/vecstream/internal/backend"
	"github.com/samcharles93/vecstream/internal/logger"
	"github.com/samcharles93/vecstream/internal/pipeline"
	"github.com/samcharles93/vecstream/internal/version"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		keep        int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the vector-add REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "keep",
				Usage:       "number of results kept for GET /v1/add/:id",
				Value:       api.DefaultStoreCapacity,
				Destination: &keep,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, LoadConfig(), &addr)

			dev, err := openDevice(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()

			server := api.NewServer(dev, pipeline.DefaultConfig(), api.NewResultStore(int(keep)), log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "backend", backend.Describe(dev).Backend, "version", version.String())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
