package firmware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestApplyStagesImage(t *testing.T) {
	dir := t.TempDir()
	u := NewFileUpdater(dir)
	image := []byte("\x7fELF firmware payload")

	res, err := u.Apply(context.Background(), "w-1", bytes.NewReader(image), strings.ToUpper(digest(image)))
	require.NoError(t, err)

	assert.Equal(t, "w-1", res.WindowID)
	assert.Equal(t, int64(len(image)), res.Size)
	assert.Equal(t, digest(image), res.SHA256)
	assert.Equal(t, filepath.Join(dir, ImageName), res.Path)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, image, got)
	assert.Equal(t, []string{ImageName}, stagedFiles(t, dir))
	assert.Equal(t, res.SHA256, u.Last().SHA256)
}

func TestApplyWithoutChecksum(t *testing.T) {
	u := NewFileUpdater(t.TempDir())
	res, err := u.Apply(context.Background(), "w-2", strings.NewReader("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, digest([]byte("abc")), res.SHA256)
}

func TestApplyRejectsBadImages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		sha     string
		maxSize int64
		want    error
	}{
		{"empty", "", "", 0, ErrEmptyImage},
		{"checksum mismatch", "payload", digest([]byte("other")), 0, ErrChecksumMismatch},
		{"too large", "0123456789", "", 4, ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			u := NewFileUpdater(dir)
			if tt.maxSize > 0 {
				u.MaxSize = tt.maxSize
			}
			_, err := u.Apply(context.Background(), "w", strings.NewReader(tt.body), tt.sha)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, stagedFiles(t, dir), "no partial image may remain")
			assert.Nil(t, u.Last())
		})
	}
}

func TestApplyKeepsPreviousImageOnFailure(t *testing.T) {
	dir := t.TempDir()
	u := NewFileUpdater(dir)
	_, err := u.Apply(context.Background(), "w-1", strings.NewReader("v1"), "")
	require.NoError(t, err)

	_, err = u.Apply(context.Background(), "w-2", strings.NewReader("v2"), digest([]byte("nope")))
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(dir, ImageName))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestApplyHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := NewFileUpdater(t.TempDir())
	_, err := u.Apply(ctx, "w", strings.NewReader("data"), "")
	require.ErrorIs(t, err, context.Canceled)
}
