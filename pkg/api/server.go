// Package api provides the REST API server for midiplug
package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/james-see/midiplug/pkg/capture"
	"github.com/james-see/midiplug/pkg/device"
	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/input"
	"github.com/james-see/midiplug/pkg/plug"
	"github.com/james-see/midiplug/pkg/sysex"
)

// @title midiplug API
// @version 1.0
// @description Inspect live MIDI input and decode raw MIDI bytes
// @host localhost:8080
// @BasePath /api/v1

// maxDecodeChunks bounds a decode request
const maxDecodeChunks = 4096

// Server serves the event log and stats of a live input
type Server struct {
	input  *input.Input
	log    *capture.Log
	ports  func(context.Context) (device.Ports, error)
	logger *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithInput exposes the stats of a live input
func WithInput(in *input.Input) Option {
	return func(s *Server) {
		s.input = in
	}
}

// WithEventLog serves recent events from log
func WithEventLog(log *capture.Log) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithPortLister replaces the port scan
func WithPortLister(fn func(context.Context) (device.Ports, error)) Option {
	return func(s *Server) {
		s.ports = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server
func NewServer(opts ...Option) *Server {
	s := &Server{
		ports:  device.List,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = capture.NewLog(0)
	}
	return s
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/ports", s.listPorts)
		v1.GET("/events", s.listEvents)
		v1.DELETE("/events", s.clearEvents)
		v1.GET("/stats", s.stats)
		v1.POST("/decode", s.decode)
		v1.POST("/sysex/describe", s.describeSysex)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// ListenAndServe serves on port until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Serve runs the API on port. When the server has an input, its events are
// kept in the event log and the input is closed once ctx is cancelled.
func (s *Server) Serve(ctx context.Context, port int) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.ListenAndServe(ctx, port)
	})

	if s.input != nil {
		sub := s.input.Registry().Register(s.log, event.KindAny, plug.AnyChannel)
		g.Go(func() error {
			<-ctx.Done()
			s.input.Registry().Remove(sub)
			s.input.Close()
			return nil
		})
	}

	return g.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// EventView is the JSON form of an event
type EventView struct {
	Time    *time.Time `json:"time,omitempty"`
	Kind    string     `json:"kind"`
	Channel *uint8     `json:"channel,omitempty"`
	Text    string     `json:"text"`
	Data    string     `json:"data"`
}

func viewOf(ev event.Event) EventView {
	v := EventView{
		Kind: ev.Kind().String(),
		Text: fmt.Sprint(ev),
		Data: strings.ToUpper(hex.EncodeToString(event.Bytes(ev))),
	}
	if ch, ok := event.ChannelOf(ev); ok {
		v.Channel = &ch
	}
	return v
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midiplug",
	})
}

// listPorts godoc
// @Summary List MIDI ports
// @Description Returns the input and output ports of the MIDI driver
// @Tags info
// @Produce json
// @Success 200 {object} device.Ports
// @Failure 504 {object} map[string]string
// @Router /ports [get]
func (s *Server) listPorts(c *gin.Context) {
	ports, err := s.ports(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, device.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ports)
}

// listEvents godoc
// @Summary Recent events
// @Description Returns the most recent events received on the input, oldest first
// @Tags events
// @Produce json
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} map[string][]EventView
// @Failure 400 {object} map[string]string
// @Router /events [get]
func (s *Server) listEvents(c *gin.Context) {
	limit := 0
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries := s.log.Entries(limit)
	views := make([]EventView, len(entries))
	for i, e := range entries {
		views[i] = viewOf(e.Event)
		views[i].Time = &entries[i].Time
	}

	c.JSON(http.StatusOK, gin.H{
		"events": views,
		"total":  s.log.Total(),
	})
}

// clearEvents godoc
// @Summary Clear the event log
// @Description Discards the logged events; the total count keeps running
// @Tags events
// @Success 204
// @Router /events [delete]
func (s *Server) clearEvents(c *gin.Context) {
	s.log.Reset()
	c.Status(http.StatusNoContent)
}

// stats godoc
// @Summary Input statistics
// @Description Returns decoding and dispatch counters of the live input
// @Tags events
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /stats [get]
func (s *Server) stats(c *gin.Context) {
	resp := gin.H{"logged": s.log.Total()}
	if s.input != nil {
		resp["input"] = s.input.Name()
		resp["stats"] = s.input.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// DecodeRequest is a sequence of transport chunks
type DecodeRequest struct {
	Chunks [][]int `json:"chunks" binding:"required"`
}

// decode godoc
// @Summary Decode raw MIDI
// @Description Runs byte chunks through a fresh input pipeline and returns the dispatched events
// @Tags decode
// @Accept json
// @Produce json
// @Param request body DecodeRequest true "Chunks of raw MIDI bytes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /decode [post]
func (s *Server) decode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Chunks) > maxDecodeChunks {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d chunks", maxDecodeChunks)})
		return
	}

	chunks := make([][]byte, len(req.Chunks))
	for i, chunk := range req.Chunks {
		b, err := toBytes(chunk)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("chunk %d: %v", i, err)})
			return
		}
		chunks[i] = b
	}

	in := input.New(input.WithLogger(s.logger))
	views := []EventView{}
	in.Registry().Register(plug.EventFunc(func(ev event.Event) error {
		views = append(views, viewOf(ev))
		return nil
	}), event.KindAny, plug.AnyChannel)

	for _, chunk := range chunks {
		if err := in.HandleRaw(chunk, 0); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"events": views,
		"stats":  in.Stats(),
	})
}

func toBytes(values []int) ([]byte, error) {
	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		b[i] = byte(v)
	}
	return b, nil
}

// DescribeRequest carries a sysex block as hex
type DescribeRequest struct {
	Data string `json:"data" binding:"required" example:"F0 7E 7F 06 01 F7"`
}

// describeSysex godoc
// @Summary Describe a sysex block
// @Description Validates a sysex block and returns its manufacturer and universal ids
// @Tags decode
// @Accept json
// @Produce json
// @Param request body DescribeRequest true "Hex encoded sysex block"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /sysex/describe [post]
func (s *Server) describeSysex(c *gin.Context) {
	var req DescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := hex.DecodeString(strings.Join(strings.Fields(req.Data), ""))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must be hex encoded"})
		return
	}

	info, err := sysex.Describe(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"manufacturer":      strings.ToUpper(hex.EncodeToString(info.Manufacturer)),
		"manufacturer_name": info.ManufacturerName(),
		"universal":         info.Universal,
		"realtime":          info.Realtime,
		"device_id":         info.DeviceID,
		"sub_id1":           info.SubID1,
		"sub_id2":           info.SubID2,
		"length":            info.Length,
	})
}
