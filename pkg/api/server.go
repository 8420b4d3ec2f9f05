// Package api exposes the Strava synchronization subsystem over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	shared "github.com/ridelink/server/pkg"
	"github.com/ridelink/server/pkg/bootstrap"
	"github.com/ridelink/server/pkg/infrastructure/oauth"
	"github.com/ridelink/server/pkg/integrations/strava"
	ridesync "github.com/ridelink/server/pkg/sync"
)

// Server bundles the handlers' dependencies. Construct it with the
// factories from cmd/server; tests swap in stubs.
type Server struct {
	Cfg *bootstrap.Config
	DB  shared.Database
	Log *slog.Logger

	Uploader  *ridesync.Uploader
	Processor *ridesync.Processor

	// ClientFor returns an authenticated API client for the user;
	// SubClient is the app-credential client for subscription calls.
	ClientFor func(userID string) *strava.Client
	SubClient *strava.Client

	// TokenSourceFor backs the status and refresh endpoints.
	TokenSourceFor func(userID string) oauth.TokenSource
}

// Router assembles the chi router with all routes mounted under /api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/strava", func(r chi.Router) {
		// Strava-facing endpoints, no local identity.
		r.Get("/webhook", s.handleWebhookVerify)
		r.Post("/webhook", s.handleWebhookEvent)
		r.Get("/callback", s.handleCallback)

		// User-facing endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/authorize", s.handleAuthorize)
			r.Get("/status", s.handleStatus)
			r.Post("/refresh-token", s.handleRefreshToken)
			r.Post("/upload/{id}", s.handleUpload)
			r.Get("/check-upload/{id}", s.handleCheckUpload)
			r.Get("/upload-status/{uploadID}", s.handleUploadStatus)

			// Subscription management carries the application secret
			// on the outbound call, so it stays behind identity too.
			r.Post("/webhook/subscribe", s.handleWebhookSubscribe)
			r.Get("/webhook/subscription", s.handleWebhookSubscription)
		})
	})

	return r
}

type contextKey string

const userIDKey contextKey = "userID"

// requireUser extracts the caller identity established by the fronting
// auth layer. Requests without it get 401 before any handler runs.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing user identity"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}
