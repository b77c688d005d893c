package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"BTCTicker/internal/connectivity"
	"BTCTicker/internal/firmware"
	"BTCTicker/internal/lifecycle"
	"BTCTicker/internal/model"
	"BTCTicker/internal/recorder"
	"BTCTicker/internal/state"
	"BTCTicker/internal/worker"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubLink struct{}

func (stubLink) Status() connectivity.Status {
	return connectivity.Status{State: "CONNECTED", Ready: true}
}

// MockUpdater implements firmware.Updater for testing.
type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) Apply(ctx context.Context, windowID string, image io.Reader, expectedSHA string) (*firmware.Result, error) {
	args := m.Called(ctx, windowID, image, expectedSHA)
	res, _ := args.Get(0).(*firmware.Result)
	return res, args.Error(1)
}

type fixture struct {
	clk    *clock.Mock
	store  *state.Store
	rec    *recorder.MemoryRecorder
	coord  *lifecycle.Coordinator
	dir    string
	router *gin.Engine
}

func newFixture(t *testing.T, updater firmware.Updater) *fixture {
	t.Helper()
	f := &fixture{
		clk:   clock.NewMock(),
		store: state.NewStore(time.Second),
		rec:   recorder.NewMemoryRecorder(100),
		dir:   t.TempDir(),
	}
	f.clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	pool := worker.NewPool()
	f.coord = lifecycle.NewCoordinator(pool, f.clk, f.rec, time.Second)
	if updater == nil {
		updater = firmware.NewFileUpdater(f.dir)
	}
	h := NewHandler(Deps{
		Store:    f.store,
		Link:     stubLink{},
		Workers:  pool,
		Windows:  f.coord,
		Updater:  updater,
		Recorder: f.rec,
		Clock:    f.clk,
		FreshTTL: time.Minute,
	})
	f.router = h.SetupRoutes()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, ServiceName, body["service"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeaderKey, "abc-123")

	w := f.do(req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeaderKey))
}

func TestStatusWithoutPrice(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Snapshot.Price)
	assert.ElementsMatch(t, []string{"price", "hourly", "daily"}, resp.Snapshot.Stale)
	assert.Equal(t, "CONNECTED", resp.Connectivity.State)
	assert.False(t, resp.Window.InProgress)
}

func TestStatusReportsSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clk.Now()
	require.NoError(t, f.store.WritePrice(decimal.RequireFromString("65000.5"), decimal.RequireFromString("2.5"), now))
	_, err := f.store.ApplyDelta(model.SeriesHourly, model.OneHour, decimal.RequireFromString("65065.57"), now, func(_, _ decimal.Decimal) (decimal.Decimal, error) {
		return decimal.RequireFromString("-0.1"), nil
	})
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Snapshot.Price)
	assert.Equal(t, "65000.50", *resp.Snapshot.Price)
	assert.Equal(t, "2.50", resp.Snapshot.Changes["24h"])
	assert.Equal(t, "-0.10", resp.Snapshot.Changes["1h"])
	assert.Equal(t, []string{"daily"}, resp.Snapshot.Stale)
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.rec.Record(&recorder.Event{
			Time: f.clk.Now(), Level: recorder.LevelWarn, Kind: recorder.KindNetwork, Source: "price", Message: "timeout",
		}))
	}

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []recorder.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Events, 2)
	assert.Greater(t, body.Events[0].ID, body.Events[1].ID)
}

func TestDiagnosticsRejectsBadLimit(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"abc", "0", "501"} {
		w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics?limit="+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", q)
	}
}

func TestFirmwareUpload(t *testing.T) {
	f := newFixture(t, nil)
	image := []byte("firmware v2")
	sum := sha256.Sum256(image)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader(image))
	req.Header.Set(FirmwareSHAHeader, hex.EncodeToString(sum[:]))
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res firmware.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.WindowID)
	assert.Equal(t, int64(len(image)), res.Size)

	staged, err := os.ReadFile(filepath.Join(f.dir, firmware.ImageName))
	require.NoError(t, err)
	assert.Equal(t, image, staged)

	st := f.coord.Status()
	assert.False(t, st.InProgress, "window must be closed after the update")
	assert.Equal(t, 1, st.Windows)
}

func TestFirmwareChecksumMismatch(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader([]byte("img")))
	req.Header.Set(FirmwareSHAHeader, "deadbeef")

	w := f.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.coord.InProgress())
}

func TestFirmwareConflictWhileWindowOpen(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.coord.Begin(context.Background())
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader([]byte("img"))))
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, f.coord.End())
}

func TestFirmwareUpdaterFailureClosesWindow(t *testing.T) {
	upd := new(MockUpdater)
	upd.On("Apply", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "").
		Return(nil, errors.New("flash write failed"))
	f := newFixture(t, upd)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader([]byte("img"))))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "flash write failed")
	assert.NotEmpty(t, body.RequestID)
	assert.False(t, f.coord.InProgress())
	upd.AssertExpectations(t)
}

func TestFirmwareWindowOpensOnlyAfterUpload(t *testing.T) {
	f := newFixture(t, nil)
	pr, pw := io.Pipe()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/firmware", pr)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- f.do(req) }()

	_, err := pw.Write([]byte("firmware "))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, f.coord.InProgress(), "window must stay closed while the body is streaming")
	assert.Equal(t, 0, f.coord.Status().Windows)

	_, err = pw.Write([]byte("v3"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case w := <-done:
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	case <-time.After(time.Second):
		t.Fatal("upload did not complete")
	}
	staged, err := os.ReadFile(filepath.Join(f.dir, firmware.ImageName))
	require.NoError(t, err)
	assert.Equal(t, "firmware v3", string(staged))
	assert.Equal(t, 1, f.coord.Status().Windows)
}

func TestFirmwareRejectsOversizedUploadBeforeWindow(t *testing.T) {
	f := newFixture(t, nil)
	h := NewHandler(Deps{Windows: f.coord, Updater: firmware.NewFileUpdater(f.dir), Clock: f.clk, MaxImageSize: 4})
	router := h.SetupRoutes()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader([]byte("0123456789"))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, f.coord.Status().Windows, "no window for a rejected upload")
}

func TestFirmwareRejectsEmptyUploadBeforeWindow(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/firmware", bytes.NewReader(nil)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, f.coord.Status().Windows)
}

func TestNewServerSetsReadTimeout(t *testing.T) {
	srv := NewHandler(Deps{}).NewServer(":0")
	assert.Equal(t, ReadTimeout, srv.ReadTimeout)
}
