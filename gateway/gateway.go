package gateway

import (
	"net/http"

	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/internal/pathmatch"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/rs/zerolog"
)

type Options struct {
	Logger    zerolog.Logger
	Headers   Headers
	Tokens    TokenValidator
	Sessions  sessions.Store // nil skips the session check at the edge
	Whitelist []string
	Metrics   *metrics.Metrics
}

// New builds the standard edge chain: logging, then tenant resolution, then
// authentication, in front of upstream.
func New(upstream http.Handler, opts Options) *Chain {
	authOptions := []AuthOption{WithWhitelist(pathmatch.New(opts.Whitelist...))}
	if opts.Sessions != nil {
		authOptions = append(authOptions, WithSessionStore(opts.Sessions))
	}

	stages := []Stage{
		NewLoggingStage(opts.Logger, opts.Headers.RequestID),
		NewTenantStage(opts.Headers),
		NewAuthStage(opts.Tokens, opts.Headers, authOptions...),
	}
	return NewChain(upstream, stages, WithMetrics(opts.Metrics))
}
