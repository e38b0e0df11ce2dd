package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/sceneedit/internal/auth"
	"github.com/inamate/sceneedit/internal/collab"
	"github.com/inamate/sceneedit/internal/config"
	"github.com/inamate/sceneedit/internal/engine"
	"github.com/inamate/sceneedit/internal/fixture"
	mw "github.com/inamate/sceneedit/internal/middleware"
	"github.com/inamate/sceneedit/internal/scene"
	"github.com/inamate/sceneedit/internal/snapshot"
	"github.com/inamate/sceneedit/internal/typeid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := snapshot.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	snapshots := snapshot.NewRepository(pool)
	if err := snapshots.Init(ctx); err != nil {
		slog.Error("init schema", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(pool, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	// Scene used for sessions without a stored snapshot
	var seed *scene.State
	if cfg.SeedScene != "" {
		st, err := fixture.Load(cfg.SeedScene)
		if err != nil {
			slog.Error("load seed scene", "path", cfg.SeedScene, "error", err)
			os.Exit(1)
		}
		seed = &st
	}

	loader := func(ctx context.Context, sessionID string) (*scene.State, error) {
		snap, err := snapshots.Latest(ctx, sessionID)
		if errors.Is(err, snapshot.ErrNotFound) {
			return seed, nil
		}
		if err != nil {
			return nil, err
		}
		return &snap.State, nil
	}

	saver := func(ctx context.Context, sessionID string, st scene.State) error {
		snap, err := snapshots.Save(ctx, sessionID, st)
		if err != nil {
			return err
		}
		slog.Debug("snapshot saved", "session", sessionID, "version", snap.Version)
		return nil
	}

	hub := collab.NewHub(loader, saver, collab.Options{
		Engine: engine.Options{
			HistoryLimit: cfg.HistoryLimit,
			AnchorSize:   cfg.AnchorSize,
			HitRadius:    cfg.HitRadius,
		},
		SaveInterval: cfg.SaveInterval,
	})
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")

	api.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{"sessionId": typeid.NewSessionID()})
	}).Methods("POST")

	api.HandleFunc("/sessions/{sessionId}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, err := snapshots.Latest(r.Context(), mux.Vars(r)["sessionId"])
		if errors.Is(err, snapshot.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot"})
			return
		}
		if err != nil {
			slog.Error("get snapshot", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}).Methods("GET")

	// WebSocket endpoint
	originPatterns := hostPatterns(cfg.Origins())
	r.HandleFunc("/ws/session/{sessionId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty scenes
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, originPatterns []string) {
	sessionID := mux.Vars(r)["sessionId"]
	if err := typeid.Validate(sessionID, typeid.PrefixSession); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	userID, err := authSvc.Authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	user, err := authSvc.GetUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, userID, user.DisplayName, sessionID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// hostPatterns turns configured origins into the host patterns websocket
// origin checks match against.
func hostPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
