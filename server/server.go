package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/workspark/auth"
	"github.com/jrsteele09/workspark/internal/config"
	"github.com/jrsteele09/workspark/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// KeySet publishes the public keys access tokens are signed with.
type KeySet interface {
	JWKS() (*token.JWKS, bool)
}

// Deps are the collaborators the auth service endpoints run on.
type Deps struct {
	Auth     *auth.Service
	Keys     KeySet
	Identity func(http.Handler) http.Handler // establishes the caller's principal
	Bind     func(http.Handler) http.Handler // binds the tenant data source
	Logger   zerolog.Logger
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	router chi.Router
	config config.Config
	deps   Deps
	logger zerolog.Logger
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if deps.Identity == nil || deps.Bind == nil {
		return nil, errors.New("[Server New] identity and data source middleware are required")
	}

	s := &Server{
		env:    config.GetEnv(),
		router: chi.NewRouter(),
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logRoute(method, route)
		return nil
	})
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return strings.ToLower(scheme)
	}
	return "http"
}
