package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cppla/commentboard/metrics"
	"github.com/cppla/commentboard/utils"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		seen = utils.RequestID(c)
		c.Status(http.StatusOK)
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		id := w.Header().Get(utils.RequestIDKey)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("keeps the client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(utils.RequestIDKey, "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(utils.RequestIDKey))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(utils.RequestIDKey, strings.Repeat("x", maxRequestIDLength+1))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		_, err := uuid.Parse(w.Header().Get(utils.RequestIDKey))
		assert.NoError(t, err)
	})
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Metrics())
	router.POST("/graphql", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("records matched routes", func(t *testing.T) {
		counter := metrics.HTTPRequestsTotal.WithLabelValues("POST", "/graphql", "200")
		before := testutil.ToFloat64(counter)
		inFlight := testutil.ToFloat64(metrics.HTTPRequestsInFlight)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, before+1, testutil.ToFloat64(counter))
		assert.Equal(t, inFlight, testutil.ToFloat64(metrics.HTTPRequestsInFlight))
	})

	t.Run("groups unmatched routes", func(t *testing.T) {
		counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")
		before := testutil.ToFloat64(counter)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, before+1, testutil.ToFloat64(counter))
	})
}
