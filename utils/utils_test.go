package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/commentboard/config"
)

func TestInitLogger_WritesFile(t *testing.T) {
	old := Logger
	t.Cleanup(func() { Logger, Sugar = old, old.Sugar() })

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, InitLogger(config.AppConfig{LogLevel: "warn", LogPath: path}))

	Logger.Info("dropped")
	Logger.Warn("kept", zap.String("k", "v"))
	require.NoError(t, Logger.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "v", line["k"])
}

func TestConsoleSyncer(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	cs := consoleSyncer{w}
	n, err := cs.Write([]byte("line\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, cs.Sync(), "fsync on a pipe is not a failure")

	require.NoError(t, w.Close())
	assert.ErrorIs(t, cs.Sync(), os.ErrClosed)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
	assert.False(t, parseLevel("silent").Enabled(zapcore.FatalLevel))
}

func newObservedRouter(handler gin.HandlerFunc) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(RequestIDKey, "req-1"); c.Next() })
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })
	r.Use(Ginzap(logger, time.RFC3339, true), RecoveryWithZap(logger, true))
	r.GET("/x", handler)
	return r, logs
}

func TestGinzap(t *testing.T) {
	r, logs := newObservedRouter(func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?a=1", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
	assert.Equal(t, "a=1", fields["query"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestRequestID(t *testing.T) {
	r, _ := newObservedRouter(func(c *gin.Context) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.Equal(t, "req-1", w.Body.String())

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, RequestID(c))
}

func TestRecoveryWithZap(t *testing.T) {
	r, logs := newObservedRouter(func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 50000, body.Code)

	panics := logs.FilterMessage("[Recovery from panic]").All()
	require.Len(t, panics, 1)
	assert.Contains(t, panics[0].ContextMap(), "stack")
}

func TestServer_GracefulStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer("", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), time.Second, time.Second)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	srv.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
