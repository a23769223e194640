package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	segments []string // "*" matches one segment, trailing "*" matches the rest
	handler  HandlerFunc
}

// Router is a small method+path router with per-segment wildcards and
// request logging. Routes are matched in registration order, so register
// specific paths before generic ones.
type Router struct {
	routes []route
}

func New() *Router { return &Router{} }

func (r *Router) handle(method, path string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		segments: strings.Split(strings.Trim(path, "/"), "/"),
		handler:  handler,
	})
}

func (r *Router) GET(path string, h HandlerFunc)    { r.handle(http.MethodGet, path, h) }
func (r *Router) POST(path string, h HandlerFunc)   { r.handle(http.MethodPost, path, h) }
func (r *Router) DELETE(path string, h HandlerFunc) { r.handle(http.MethodDelete, path, h) }

func (rt route) matches(path string) bool {
	got := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range rt.segments {
		if seg == "*" && i == len(rt.segments)-1 {
			return len(got) >= i // trailing wildcard swallows the rest
		}
		if i >= len(got) || (seg != "*" && seg != got[i]) {
			return false
		}
	}
	return len(got) == len(rt.segments)
}

// ServeHTTP dispatches and logs every request with its status and latency.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	matchedPath := false
	handled := false
	for _, rt := range r.routes {
		if !rt.matches(req.URL.Path) {
			continue
		}
		matchedPath = true
		if rt.method == req.Method {
			rt.handler(lrw, req)
			handled = true
			break
		}
	}
	if !handled {
		if matchedPath {
			http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
		} else {
			http.Error(lrw, "Not Found", http.StatusNotFound)
		}
	}

	log.Printf("%s%s%s %s %s%d%s (%v)",
		colorCyan, req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		time.Since(start))
}

// Start blocks serving on addr.
func (r *Router) Start(addr string) {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	log.Fatal(http.ListenAndServe(addr, r))
}

// PathSegment returns the i-th path segment of a request, "" if absent.
// Handlers use it to pull identifiers out of wildcard routes.
func PathSegment(req *http.Request, i int) string {
	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code < 300:
		return colorGreen
	case code < 400:
		return colorCyan
	case code < 500:
		return colorYellow
	default:
		return colorRed
	}
}
