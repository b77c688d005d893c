// Package firmware stages update images. Staging runs inside an exclusive
// window so no refresh traffic competes with the write.
package firmware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// ImageName is the staged file name inside the staging directory.
	ImageName = "firmware.bin"
	// DefaultMaxSize caps an uploaded image.
	DefaultMaxSize int64 = 16 << 20
)

var (
	ErrEmptyImage       = errors.New("firmware image is empty")
	ErrImageTooLarge    = errors.New("firmware image exceeds size limit")
	ErrChecksumMismatch = errors.New("firmware checksum mismatch")
)

// Result describes a staged image.
type Result struct {
	WindowID string    `json:"window_id"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	SHA256   string    `json:"sha256"`
	StagedAt time.Time `json:"staged_at"`
}

// Updater applies an image. expectedSHA may be empty to skip verification.
type Updater interface {
	Apply(ctx context.Context, windowID string, image io.Reader, expectedSHA string) (*Result, error)
}

// FileUpdater writes images to a staging directory. The write goes to a temp
// file first and is renamed into place only after the checksum matches, so a
// failed update never leaves a partial image behind.
type FileUpdater struct {
	Dir     string
	MaxSize int64

	mu   sync.Mutex
	last *Result
}

// NewFileUpdater creates a FileUpdater staging into dir.
func NewFileUpdater(dir string) *FileUpdater {
	return &FileUpdater{Dir: dir, MaxSize: DefaultMaxSize}
}

func (u *FileUpdater) Apply(ctx context.Context, windowID string, image io.Reader, expectedSHA string) (*Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	tmp, err := os.CreateTemp(u.Dir, ImageName+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	limit := u.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx: ctx, r: io.LimitReader(image, limit+1)})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyImage
	}
	if n > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, limit)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if expectedSHA != "" && !strings.EqualFold(strings.TrimSpace(expectedSHA), sum) {
		return nil, fmt.Errorf("%w: got %s", ErrChecksumMismatch, sum)
	}

	dst := filepath.Join(u.Dir, ImageName)
	if err := os.Rename(tmpPath, dst); err != nil {
		return nil, fmt.Errorf("commit image: %w", err)
	}
	committed = true

	res := &Result{WindowID: windowID, Path: dst, Size: n, SHA256: sum, StagedAt: time.Now()}
	u.last = res
	log.Printf("[INFO] firmware staged %s (%d bytes, sha256 %s) in window %s", dst, n, sum, windowID)
	return res, nil
}

// Last returns the most recently staged image, or nil.
func (u *FileUpdater) Last() *Result {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return nil
	}
	r := *u.last
	return &r
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
