// Package api exposes the vector-add pipeline over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/vecstream/internal/backend"
	"github.com/samcharles93/vecstream/internal/device"
	"github.com/samcharles93/vecstream/internal/logger"
	"github.com/samcharles93/vecstream/internal/pipeline"
)

type Server struct {
	dev   device.Device
	cfg   pipeline.Config
	store *ResultStore
	log   logger.Logger
	now   func() time.Time

	// One pipeline runs at a time per device.
	mu sync.Mutex
}

func NewServer(dev device.Device, cfg pipeline.Config, store *ResultStore, log logger.Logger) *Server {
	if store == nil {
		store = NewResultStore(0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		dev:   dev,
		cfg:   cfg,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/device", s.handleDevice)
	e.POST("/v1/add", s.handleAdd)
	e.GET("/v1/add/:id", s.handleGetResult)
	e.DELETE("/v1/add/:id", s.handleDeleteResult)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDevice(c *echo.Context) error {
	info := backend.Describe(s.dev)
	return c.JSON(http.StatusOK, DeviceResponse{
		Backend:     info.Backend,
		Name:        info.Name,
		TotalMemory: info.TotalMemory,
		Streams:     s.cfg.Streams,
		SegmentSize: s.cfg.SegmentSize,
		BlockSize:   s.cfg.BlockSize,
	})
}

func (s *Server) handleAdd(c *echo.Context) error {
	req, err := decodeJSON[AddRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := validateAdd(&req); err != nil {
		return writeBadRequest(c, err.Error())
	}

	id := newResultID()
	log := s.log.With("id", id, "length", len(req.Input1))
	ctx := logger.WithContext(c.Request().Context(), log)

	start := s.now()
	s.mu.Lock()
	out, err := pipeline.Add(ctx, s.dev, s.cfg, req.Input1, req.Input2)
	s.mu.Unlock()
	elapsed := s.now().Sub(start)
	if err != nil {
		var opErr *device.OpError
		if errors.As(err, &opErr) {
			log.Error("pipeline failed", "op", opErr.Op, "error", err)
			return writeError(c, http.StatusInternalServerError, "device_error", err.Error())
		}
		log.Error("pipeline failed", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	log.Info("vector add complete", "elapsed", elapsed)

	resp := AddResponse{
		ID:         id,
		Object:     "vector_add",
		CreatedAt:  start.Unix(),
		Length:     len(out),
		Output:     out,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	if req.Store == nil || *req.Store {
		s.store.Put(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetResult(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, fmt.Sprintf("result %q not found", id))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteResult(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, fmt.Sprintf("result %q not found", id))
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "vector_add.deleted", Deleted: true})
}

func validateAdd(req *AddRequest) error {
	if req.Input1 == nil || req.Input2 == nil {
		return newInvalidRequest("input1 and input2 are required")
	}
	if len(req.Input1) != len(req.Input2) {
		return newInvalidRequest(fmt.Sprintf("input lengths differ: %d != %d", len(req.Input1), len(req.Input2)))
	}
	return nil
}
