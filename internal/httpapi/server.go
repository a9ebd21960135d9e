package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/persistence"
)

// CardSearcher looks cards up by partial name.
type CardSearcher interface {
	SearchCards(ctx context.Context, query string, limit int) ([]cards.Card, error)
}

// Asker starts an inquiry and returns its ID and result stream.
type Asker interface {
	Ask(ctx context.Context, inq agent.Inquiry) (string, <-chan agent.Event)
}

// HealthChecker reports whether the reference data is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (persistence.Stats, error)
}

type Server struct {
	cards  CardSearcher
	judge  Asker
	health HealthChecker

	metrics       http.Handler
	allowedOrigin string

	uiEnabled   bool
	uiStaticDir string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithUI serves a built single-page front end from staticDir.
func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) {
		s.health = h
	}
}

func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAllowedOrigin enables CORS for origin; "*" allows any origin.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) {
		s.allowedOrigin = strings.TrimSpace(origin)
	}
}

func NewServer(cardSearcher CardSearcher, judge Asker, opts ...Option) *Server {
	s := &Server{
		cards:     cardSearcher,
		judge:     judge,
		uiEnabled: false,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

// ListenAndServe returns http.ErrServerClosed once Shutdown has been called,
// even if Shutdown ran first.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/cards/search", s.handleCardSearch)
	s.mux.HandleFunc("/api/inquiries", s.handleInquiry)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	if s.allowedOrigin == "" {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins: []string{s.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Inquiry-ID"},
	}).Handler(next)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
