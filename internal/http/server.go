package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"costcheck/internal/cache"
	applog "costcheck/internal/log"
	"costcheck/internal/services"
	appweb "costcheck/web"
)

// Server serves the cost dashboard page and its JSON chart API. Chart
// responses are cached per dataset version, so a reload naturally
// invalidates every cached answer without explicit purging.
type Server struct {
	http.Server
	templates   *template.Template
	datasets    *services.DatasetService
	rateLimiter *rateLimiter
	structLog   *applog.StructuredLogger

	// Rendered JSON chart responses keyed by dataset version and query.
	chartCache *cache.LRUCache[[]byte]

	appMetrics struct {
		uptime time.Time
	}
	secMetrics securityMetrics

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// Option adjusts server tuning knobs away from their defaults.
type Option func(*serverOptions)

type serverOptions struct {
	rateLimitPerMinute int
	chartCacheSize     int
	chartCacheTTL      time.Duration
}

// WithRateLimit sets the per-client request budget per minute.
func WithRateLimit(perMinute int) Option {
	return func(o *serverOptions) { o.rateLimitPerMinute = perMinute }
}

// WithChartCache sets the chart response cache capacity and entry TTL.
func WithChartCache(size int, ttl time.Duration) Option {
	return func(o *serverOptions) {
		o.chartCacheSize = size
		o.chartCacheTTL = ttl
	}
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, datasets *services.DatasetService, opts ...Option) *Server {
	options := serverOptions{
		rateLimitPerMinute: 60,
		chartCacheSize:     500,
		chartCacheTTL:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&options)
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		datasets:     datasets,
		rateLimiter:  newRateLimiter(options.rateLimitPerMinute),
		structLog:    applog.NewStructuredLogger(applog.New(applog.ComponentHTTP, applog.Options{})),
		chartCache:   cache.NewLRUCache[[]byte](options.chartCacheSize, options.chartCacheTTL),
		cacheManager: cache.NewManager(),
	}
	s.appMetrics.uptime = time.Now()

	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/summary", s.withSecurityHeaders(s.cached(s.handleSummary)))
	mux.HandleFunc("/api/cost-by-category", s.withSecurityHeaders(s.cached(s.handleCostByCategory)))
	mux.HandleFunc("/api/count-by-category", s.withSecurityHeaders(s.cached(s.handleCountByCategory)))
	mux.HandleFunc("/api/cost-histogram", s.withSecurityHeaders(s.cached(s.handleCostHistogram)))
	mux.HandleFunc("/api/cost-vs-items", s.withSecurityHeaders(s.cached(s.handleCostScatter)))
	mux.HandleFunc("/api/correlation", s.withSecurityHeaders(s.cached(s.handleCorrelation)))
	mux.HandleFunc("/api/preview", s.withSecurityHeaders(s.cached(s.handlePreview)))
	mux.HandleFunc("/api/filters", s.withSecurityHeaders(s.cached(s.handleFilters)))
	mux.HandleFunc("/api/refresh", s.withSecurityHeaders(s.handleRefresh))
	mux.HandleFunc("/export.csv", s.withSecurityHeaders(s.handleExport))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structLog.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, &s.secMetrics) {
			slog.WarnContext(ctx, "Suspicious request detected",
				"client_ip", clientIP, "url", r.URL.String())
		}

		if !s.rateLimiter.allow(clientIP, &s.secMetrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com https://cdn.jsdelivr.net 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.structLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

// cached wraps a JSON handler with the chart response cache. The key
// includes the dataset version, so stale entries fall out on reload.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next(w, r)
			return
		}

		key := chartCacheKey(s.datasets.Version(), r)
		if body, found := s.chartCache.Get(key); found {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(body)
			return
		}

		rec := &recordingWriter{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
		next(rec, r)

		if rec.statusCode == http.StatusOK {
			s.chartCache.Set(key, rec.body)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordingWriter additionally retains the body for caching.
type recordingWriter struct {
	responseWriter
	body []byte
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body = append(rw.body, b...)
	return rw.responseWriter.Write(b)
}
