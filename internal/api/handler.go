package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"BTCTicker/internal/connectivity"
	"BTCTicker/internal/firmware"
	"BTCTicker/internal/lifecycle"
	"BTCTicker/internal/worker"
)

type snapshotView struct {
	Price       *string              `json:"price"`
	Changes     map[string]string    `json:"changes"`
	LastUpdated map[string]time.Time `json:"last_updated"`
	Stale       []string             `json:"stale"`
}

type statusResponse struct {
	Snapshot     snapshotView        `json:"snapshot"`
	Connectivity connectivity.Status `json:"connectivity"`
	Workers      []worker.Status     `json:"workers"`
	Window       lifecycle.Status    `json:"window"`
	Uptime       string              `json:"uptime"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": h.deps.Clock.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(c *gin.Context) {
	now := h.deps.Clock.Now()
	resp := statusResponse{
		Snapshot: h.snapshotView(now),
		Uptime:   now.Sub(h.started).Truncate(time.Second).String(),
	}
	if h.deps.Link != nil {
		resp.Connectivity = h.deps.Link.Status()
	}
	if h.deps.Workers != nil {
		resp.Workers = h.deps.Workers.Statuses()
	}
	if h.deps.Windows != nil {
		resp.Window = h.deps.Windows.Status()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) snapshotView(now time.Time) snapshotView {
	view := snapshotView{
		Changes:     map[string]string{},
		LastUpdated: map[string]time.Time{},
		Stale:       []string{},
	}
	if h.deps.Store == nil {
		return view
	}
	snap := h.deps.Store.Snapshot()
	if snap.HasPrice() {
		p := snap.Price.StringFixed(2)
		view.Price = &p
	}
	for tf, v := range snap.Changes {
		view.Changes[string(tf)] = v.StringFixed(2)
	}
	for s, at := range snap.LastUpdated {
		view.LastUpdated[string(s)] = at
	}
	for _, s := range snap.Stale(now, h.deps.FreshTTL) {
		view.Stale = append(view.Stale, string(s))
	}
	return view
}

// GetDiagnostics handles GET /api/v1/diagnostics?limit=N.
func (h *Handler) GetDiagnostics(c *gin.Context) {
	limit := DefaultDiagnosticsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxDiagnosticsLimit {
			h.fail(c, http.StatusBadRequest, errors.New("limit must be an integer between 1 and 500"))
			return
		}
		limit = n
	}
	if h.deps.Recorder == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}})
		return
	}
	events, err := h.deps.Recorder.Recent(limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// PostFirmware handles POST /api/v1/firmware. The request body is the image.
// It is read in full before the exclusive window opens, so a slow client
// never holds the workers suspended.
func (h *Handler) PostFirmware(c *gin.Context) {
	if h.deps.Windows == nil || h.deps.Updater == nil {
		h.fail(c, http.StatusServiceUnavailable, errors.New("firmware updates are not configured"))
		return
	}
	expected := c.GetHeader(FirmwareSHAHeader)

	image, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxImageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: more than %d bytes", firmware.ErrImageTooLarge, tooLarge.Limit))
			return
		}
		h.fail(c, http.StatusBadRequest, fmt.Errorf("read image: %w", err))
		return
	}
	if len(image) == 0 {
		h.fail(c, http.StatusBadRequest, firmware.ErrEmptyImage)
		return
	}

	var res *firmware.Result
	err = h.deps.Windows.RunExclusive(c.Request.Context(), func(ctx context.Context, windowID string) error {
		r, err := h.deps.Updater.Apply(ctx, windowID, bytes.NewReader(image), expected)
		res = r
		return err
	})

	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, lifecycle.ErrWindowActive):
		h.fail(c, http.StatusConflict, err)
	case errors.Is(err, firmware.ErrChecksumMismatch), errors.Is(err, firmware.ErrEmptyImage):
		h.fail(c, http.StatusBadRequest, err)
	case errors.Is(err, firmware.ErrImageTooLarge):
		h.fail(c, http.StatusRequestEntityTooLarge, err)
	default:
		h.fail(c, http.StatusInternalServerError, err)
	}
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	id := requestID(c)
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] api %s %s (request %s): %v", c.Request.Method, c.Request.URL.Path, id, err)
	} else {
		log.Printf("[WARN] api %s %s (request %s): %v", c.Request.Method, c.Request.URL.Path, id, err)
	}
	c.JSON(status, errorResponse{Error: err.Error(), RequestID: id})
}
