// Package api exposes the ticker's HTTP control surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"

	"BTCTicker/internal/connectivity"
	"BTCTicker/internal/firmware"
	"BTCTicker/internal/lifecycle"
	"BTCTicker/internal/model"
	"BTCTicker/internal/recorder"
	"BTCTicker/internal/worker"
)

const (
	ServiceName         = "btc-ticker"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
	FirmwareSHAHeader   = "X-Firmware-SHA256"

	// ReadTimeout bounds how long a client may take to send a request,
	// firmware body included.
	ReadTimeout = 2 * time.Minute

	DefaultDiagnosticsLimit = 50
	MaxDiagnosticsLimit     = 500
)

// Snapshotter yields consistent snapshots of the shared state.
type Snapshotter interface {
	Snapshot() model.Snapshot
}

// LinkStatuser reports connectivity.
type LinkStatuser interface {
	Status() connectivity.Status
}

// WorkerStatuser reports refresh workers.
type WorkerStatuser interface {
	Statuses() []worker.Status
}

// WindowRunner opens exclusive windows.
type WindowRunner interface {
	Status() lifecycle.Status
	RunExclusive(ctx context.Context, fn func(ctx context.Context, windowID string) error) error
}

// Deps groups the collaborators the handler reads from.
type Deps struct {
	Store    Snapshotter
	Link     LinkStatuser
	Workers  WorkerStatuser
	Windows  WindowRunner
	Updater  firmware.Updater
	Recorder recorder.Recorder
	Clock    clock.Clock
	FreshTTL time.Duration
	// MaxImageSize caps a firmware upload. Zero means firmware.DefaultMaxSize.
	MaxImageSize int64
}

// Handler serves the control surface.
type Handler struct {
	deps    Deps
	started time.Time
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.FreshTTL <= 0 {
		deps.FreshTTL = 5 * time.Minute
	}
	if deps.MaxImageSize <= 0 {
		deps.MaxImageSize = firmware.DefaultMaxSize
	}
	return &Handler{deps: deps, started: deps.Clock.Now()}
}

// SetupRoutes configures all routes.
func (h *Handler) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())

	router.GET("/health", h.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.GET("/status", h.GetStatus)
	v1.GET("/diagnostics", h.GetDiagnostics)
	v1.POST("/firmware", h.PostFirmware)

	return router
}

// NewServer wraps the routes in an http.Server bound to addr.
func (h *Handler) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       ReadTimeout,
	}
}
