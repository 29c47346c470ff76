// Package web serves the browser chat interface and its JSON API.
package web

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"homechat/internal/application"
	"homechat/internal/scheduler"
)

const (
	SessionCookie = "homechat_session"

	DefaultAddr      = ":8080"
	DefaultRateLimit = 30

	maxAudioBytes = 10 * 1024 * 1024
	maxTextBytes  = 4096
)

// CommandRouter processes one user turn.
type CommandRouter interface {
	Handle(ctx context.Context, sess *application.Session, text string) (application.Outcome, error)
}

// TimerView is the read side of the scheduler.
type TimerView interface {
	PendingFor(sessionID string) []scheduler.Entry
	Stats() scheduler.Stats
}

type Config struct {
	Addr      string
	RateLimit int // command requests per minute per client IP

	// TrustedProxies are the peers allowed to name the client in
	// forwarding headers.
	TrustedProxies []netip.Prefix
}

type Deps struct {
	Sessions *application.SessionStore
	Router   CommandRouter
	STT      application.SpeechToText
	Weather  application.WeatherProvider
	Timers   TimerView
	Journal  application.Journal
	Hub      *Hub
	// Mode is the dispatcher mode shown on the chat page.
	Mode string
}

type Server struct {
	addr      string
	logger    *slog.Logger
	deps      Deps
	limiter   *RateLimiter
	templates map[string]*template.Template
	md        goldmark.Markdown
	upgrader  websocket.Upgrader
	mux       *http.ServeMux

	mu      sync.Mutex
	server  *http.Server
	running bool
	flashes map[string]string
}

func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if deps.Journal == nil {
		deps.Journal = application.NoopJournal{}
	}
	if deps.STT == nil {
		deps.STT = &application.NoopSTT{}
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(logger)
	}

	s := &Server{
		addr:      cfg.Addr,
		logger:    logger,
		deps:      deps,
		limiter:   NewRateLimiter(cfg.RateLimit, time.Minute),
		templates: loadTemplates(),
		md:        newMarkdown(),
		mux:       http.NewServeMux(),
		flashes:   make(map[string]string),
	}
	s.limiter.TrustProxies(cfg.TrustedProxies)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /session", s.handleSessionStart)
	s.mux.HandleFunc("POST /session/end", s.handleSessionEnd)

	// Command endpoints are rate limited per client IP
	s.mux.HandleFunc("POST /chat", s.limiter.Middleware(s.handleChatForm))
	s.mux.HandleFunc("POST /api/chat", s.limiter.Middleware(s.handleAPIChat))
	s.mux.HandleFunc("POST /api/audio", s.limiter.Middleware(s.handleAPIAudio))

	s.mux.HandleFunc("GET /api/weather", s.handleWeather)
	s.mux.HandleFunc("GET /api/timers", s.handleTimers)
	s.mux.HandleFunc("GET /api/journal", s.handleJournal)
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) setFlash(sessionID, msg string) {
	s.mu.Lock()
	s.flashes[sessionID] = msg
	s.mu.Unlock()
}

func (s *Server) takeFlash(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flashes[sessionID]
	delete(s.flashes, sessionID)
	return msg
}
