// Package api hosts the bot's HTTP surface: the inbound message webhook the
// platform adapter posts to, and read-only ops endpoints for the watch TUI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tsukumo-bot/tsukumo/internal/chat"
	"github.com/tsukumo-bot/tsukumo/internal/command"
	"github.com/tsukumo-bot/tsukumo/internal/signal"
)

// MessageHandler dispatches one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg chat.Message) error
}

// Config holds API server configuration.
type Config struct {
	Listen string
	APIKey string
}

// Server represents the HTTP API server.
type Server struct {
	config    Config
	handler   MessageHandler
	hub       *signal.Hub
	counter   *command.Counter
	poolSize  int
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, handler MessageHandler, hub *signal.Hub, counter *command.Counter, poolSize int, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		handler:   handler,
		hub:       hub,
		counter:   counter,
		poolSize:  poolSize,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes builds the chi router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/messages", s.handleMessage)
		r.Get("/events", s.handleEvents)
		r.Get("/status", s.handleStatus)
	})

	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" {
			if r.Header.Get("Authorization") != "Bearer "+s.config.APIKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleMessage accepts one inbound chat message and dispatches it
// asynchronously. The webhook caller gets a 202 with the assigned message
// ID; dispatch failures surface on the signal hub and in logs, not here.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg chat.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message JSON"})
		return
	}
	if msg.GuildID == "" || msg.ChannelID == "" || msg.AuthorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "guild_id, channel_id, and author_id are required"})
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	go func() {
		// Detached from the request: dispatch may wait on a render.
		if err := s.handler.HandleMessage(context.Background(), msg); err != nil {
			s.logger.Error("message dispatch failed", "message_id", msg.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": msg.ID})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an integer"})
			return
		}
		since = parsed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": s.hub.SnapshotSince(since),
		"seq":    s.hub.Seq(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"pool_size":      s.poolSize,
		"signals_total":  s.counter.Total(),
		"counters":       s.counter.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
