package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/caliothemes/iGPTsave-sub002/internal/domain/model"
	"github.com/caliothemes/iGPTsave-sub002/internal/infra/logging"
	"github.com/caliothemes/iGPTsave-sub002/internal/usecase"
)

type ctxKey int

const sessionKey ctxKey = iota

// Server exposes the generation and billing use cases over HTTP.
type Server struct {
	genUC      usecase.GenerationUseCase
	billUC     usecase.BillingUseCase
	ledger     usecase.CreditLedger
	auth       *AuthManager
	pollBudget time.Duration
	dev        bool
	log        *zerolog.Logger
}

func NewServer(
	genUC usecase.GenerationUseCase,
	billUC usecase.BillingUseCase,
	ledger usecase.CreditLedger,
	auth *AuthManager,
	pollBudget time.Duration,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		genUC:      genUC,
		billUC:     billUC,
		ledger:     ledger,
		auth:       auth,
		pollBudget: pollBudget,
		dev:        dev,
		log:        logger,
	}
}

// Router builds the full route tree. Generation routes stay open for the
// whole polling budget; everything else is capped at ten seconds.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Status check is keyed by the provider task id alone; no session.
		r.With(s.short()).Get("/video/generations/status", s.handleVideoStatus)

		// Sessions are minted by the front door in production; the local
		// issuer exists only for developer setups.
		if s.dev {
			r.With(s.short()).Post("/auth/session", s.handleSessionMint)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.With(s.short()).Post("/auth/logout", s.handleLogout)

			r.With(s.long()).Post("/video/generations", s.handleVideoGenerate)
			r.With(s.long()).Post("/images/edits", s.handleImageEdit)
			r.With(s.long()).Post("/images/background-removal", s.handleBackgroundRemove)
			r.With(s.long()).Post("/images/background-removal/ai", s.handleBackgroundRemoveAI)

			r.With(s.short()).Post("/billing/checkout/complete", s.handleCheckoutComplete)
			r.With(s.short()).Get("/account/credits", s.handleCredits)
		})
	})

	return Chain(r, Recover(s.log), TraceID(), RequestLog(s.log))
}

func (s *Server) long() Middleware  { return Timeout(s.pollBudget + 30*time.Second) }
func (s *Server) short() Middleware { return Timeout(10 * time.Second) }

// requireSession authenticates the request and stashes the session user in
// the context. Auth failures are answered before any credit mutation.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, user)
		ctx = logging.WithUserEmail(ctx, user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) model.SessionUser {
	user, _ := ctx.Value(sessionKey).(model.SessionUser)
	return user
}
