// ABOUTME: HTTP shell of keyward, wiring ceremonies, sessions, and authz
// ABOUTME: Owns route registration, JSON plumbing, and graceful shutdown

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/authz"
	"github.com/keyward/keyward/internal/ceremony"
	"github.com/keyward/keyward/internal/challenge"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/session"
	"github.com/keyward/keyward/internal/store"
)

// CeremonyVerifier is the slice of the ceremony package the gateway consumes.
// Tests substitute a stub so handler behavior can be exercised without a real
// authenticator.
type CeremonyVerifier interface {
	RegistrationOptions(user *store.User, existing []*store.Credential, challenge []byte) (*protocol.CredentialCreation, error)
	VerifyRegistration(user *store.User, existing []*store.Credential, challenge, response []byte) (*store.Credential, error)
	AuthenticationOptions() (*protocol.CredentialAssertion, string, error)
	ParseAuthentication(response []byte) (*protocol.ParsedCredentialAssertionData, error)
	VerifyAuthentication(cred *store.Credential, parsed *protocol.ParsedCredentialAssertionData, policy ceremony.ChallengePolicy) (uint32, error)
}

// Server ties the gateway's components to its HTTP surface.
type Server struct {
	cfg        *config.Settings
	store      store.Store
	verifier   CeremonyVerifier
	challenges *challenge.Validator
	sessions   *session.Service
	engine     *authz.Engine
	audit      *audit.Recorder
	logger     *slog.Logger

	httpServer *http.Server
}

// New assembles a Server from already-constructed components.
func New(cfg *config.Settings, st store.Store, verifier CeremonyVerifier, validator *challenge.Validator, sessions *session.Service, engine *authz.Engine, recorder *audit.Recorder) *Server {
	s := &Server{
		cfg:        cfg,
		store:      st,
		verifier:   verifier,
		challenges: validator,
		sessions:   sessions,
		engine:     engine,
		audit:      recorder,
		logger:     slog.Default().With("component", "gateway"),
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// RegisterRoutes registers all gateway routes on the given mux. Ceremony and
// authorization routes live under the public URL's path prefix; health and
// metrics stay at the root for the benefit of infrastructure probes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	prefix := s.cfg.PathPrefix()

	mux.HandleFunc(fmt.Sprintf("GET %sauth/options", prefix), s.handleAuthOptions)
	mux.HandleFunc(fmt.Sprintf("POST %sauth/verify", prefix), s.handleAuthVerify)
	mux.HandleFunc(fmt.Sprintf("GET %sregister/{invitation}/options", prefix), s.handleRegisterOptions)
	mux.HandleFunc(fmt.Sprintf("POST %sregister/{invitation}/verify", prefix), s.handleRegisterVerify)
	mux.HandleFunc(fmt.Sprintf("GET %sauthz", prefix), s.handleForwardAuth)
	mux.HandleFunc(fmt.Sprintf("GET %sauthz/reload", prefix), s.handleReload)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Run starts the HTTP listener and blocks until the context is canceled or
// the server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("gateway listening",
			"addr", s.httpServer.Addr,
			"public_url", s.cfg.PublicURL,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down gateway")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
