package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func echo(name string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(name))
	}
}

func doRequest(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterMatching(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs/last", echo("last"))
	r.GET("/api/v1/runs", echo("list"))
	r.POST("/api/v1/runs", echo("run"))
	r.GET("/api/v1/schedules/*", echo("schedule"))

	rec := doRequest(r, http.MethodGet, "/api/v1/runs/last")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "last", rec.Body.String())

	rec = doRequest(r, http.MethodPost, "/api/v1/runs")
	assert.Equal(t, "run", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/v1/schedules/abc-123")
	assert.Equal(t, "schedule", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/v1/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(r, http.MethodDelete, "/api/v1/runs")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterRegistrationOrderWins(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs/last", echo("specific"))
	r.GET("/api/v1/runs/*", echo("wildcard"))

	rec := doRequest(r, http.MethodGet, "/api/v1/runs/last")
	assert.Equal(t, "specific", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/v1/runs/other")
	assert.Equal(t, "wildcard", rec.Body.String())
}

func TestPathSegment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/abc-123", nil)
	assert.Equal(t, "api", PathSegment(req, 0))
	assert.Equal(t, "abc-123", PathSegment(req, 3))
	assert.Equal(t, "", PathSegment(req, 4))
	assert.Equal(t, "", PathSegment(req, -1))
}
