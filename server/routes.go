package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/workspark/internal/envelope"
)

const (
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteAuthAPI       = "/auth/api/v1"

	// Relative to RouteAuthAPI
	RouteSignIn      = "/public/signin"
	RouteRefresh     = "/public/refresh"
	RouteSSO         = "/public/sso"
	RouteSSOLogin    = "/public/sso/login"
	RouteSSOCallback = "/public/sso/callback"
	RouteSignOut     = "/signout"
	RouteMe          = "/me"
)

func (s *Server) initRoutes() {
	s.router.Use(
		s.RecoverMiddleware,
		s.RequestLoggerMiddleware,
		s.CorsMiddleware,
		s.FrameSecurityMiddleware,
	)

	s.router.Get(RouteWellKnownJWKS, s.JWKS())

	s.router.Route(RouteAuthAPI, func(r chi.Router) {
		r.Use(s.deps.Identity, s.deps.Bind)

		r.Post(RouteSignIn, s.SignIn())
		r.Post(RouteRefresh, s.Refresh())
		r.Post(RouteSSO, s.CompleteSSO())
		r.Get(RouteSSOLogin, s.SSOLogin())
		r.Get(RouteSSOCallback, s.SSOCallback())

		r.Post(RouteSignOut, s.SignOut())
		r.Get(RouteMe, s.Me())
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.Write(w, http.StatusNotFound, envelope.Response{Message: "Not found", Error: "Not Found"})
	})
}
