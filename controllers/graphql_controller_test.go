package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/commentboard/gql"
)

type stubExecutor struct {
	resp *gql.Response
	got  *http.Request
}

func (s *stubExecutor) Execute(r *http.Request) *gql.Response {
	s.got = r
	return s.resp
}

func newRouter(exec Executor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gc := NewGraphQLController(exec)
	r.Match([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, "/graphql", gc.Serve)
	return r
}

func TestServe_CopiesEngineResponse(t *testing.T) {
	exec := &stubExecutor{resp: &gql.Response{
		Status: http.StatusTeapot,
		Header: http.Header{
			"Content-Type": {"application/json; charset=utf-8"},
			"X-Multi":      {"first", "second", "first"},
		},
		Body: []byte(`{"data":{"comments":[]}}`),
	}}
	router := newRouter(exec)

	req := httptest.NewRequest(http.MethodPost, "/graphql?x=1", strings.NewReader(`{"query":"{comments{id}}"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, []string{"first", "second", "first"}, w.Header().Values("X-Multi"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"data":{"comments":[]}}`, w.Body.String())

	require.NotNil(t, exec.got)
	assert.Equal(t, http.MethodPost, exec.got.Method)
	assert.Equal(t, "1", exec.got.URL.Query().Get("x"))
	assert.Equal(t, "application/json", exec.got.Header.Get("Content-Type"))
}

func TestServe_EmptyBody(t *testing.T) {
	exec := &stubExecutor{resp: &gql.Response{
		Status: http.StatusNoContent,
		Header: http.Header{"Allow": {"GET, POST, OPTIONS"}},
	}}
	router := newRouter(exec)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/graphql", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Allow"))
	assert.Empty(t, w.Body.String())
}
