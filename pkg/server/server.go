package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/devicerudder/pkg/log"
	"github.com/raterudder/devicerudder/pkg/storage"
	"github.com/raterudder/devicerudder/pkg/types"
	"github.com/raterudder/devicerudder/pkg/utility"
)

type contextKey string

const emailContextKey contextKey = "email"

// tokenVerifier validates an ID token and returns the email it was issued to.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

// Server handles the HTTP API for a single home. It loads the home's settings,
// prices the current hour through the utility and records every decision.
type Server struct {
	utilities *utility.Map
	storage   storage.Database
	metrics   *metrics

	homeID     string
	location   *time.Location
	clock      func() time.Time
	listenAddr string
	httpServer *http.Server

	adminEmails []string
	verifier    tokenVerifier
	serverName  string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(u *utility.Map, s storage.Database) *Server {
	srv := &Server{
		utilities:  u,
		storage:    s,
		metrics:    newMetrics(),
		location:   time.UTC,
		clock:      time.Now,
		serverName: "devicerudder",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	homeID := lflag.String("home-id", types.HomeIDDefault, "ID of the home whose settings and decisions this server manages")
	homeLocation := lflag.String("home-location", "UTC", "time zone of the home, used for evaluations without a currentTime (e.g. America/Chicago)")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to evaluate and update settings")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate Google ID tokens against, auth is disabled when empty")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.homeID = *homeID
		loc, err := time.LoadLocation(*homeLocation)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid home-location", slog.String("homeLocation", *homeLocation), slog.Any("error", err))
			os.Exit(1)
		}
		srv.location = loc
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifier = oidcVerifier(provider.Verifier(&oidc.Config{ClientID: *oidcAudience}))
			if len(srv.adminEmails) == 0 {
				log.Ctx(context.Background()).Warn("oidc-audience set without admin-emails, mutating endpoints will reject every request")
			}
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("GET /api/history/decisions", s.handleHistoryDecisions)
	apiMux.HandleFunc("GET /api/history/decisions/latest", s.handleLatestDecision)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.metrics.instrument(s.authMiddleware(apiMux)))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.metrics.handler())
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr), slog.String("homeID", s.homeID), slog.String("location", s.location.String()), slog.Bool("auth", s.verifier != nil))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// now returns the current time in the home's time zone.
func (s *Server) now() time.Time {
	clock := s.clock
	if clock == nil {
		clock = time.Now
	}
	loc := s.location
	if loc == nil {
		loc = time.UTC
	}
	return clock().In(loc)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
