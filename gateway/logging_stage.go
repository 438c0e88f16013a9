package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoggingStage assigns every request an id and logs its arrival and completion.
// It never rejects.
type LoggingStage struct {
	logger zerolog.Logger
	header string
}

var _ Completer = (*LoggingStage)(nil)

func NewLoggingStage(logger zerolog.Logger, requestIDHeader string) *LoggingStage {
	return &LoggingStage{logger: logger, header: requestIDHeader}
}

func (s *LoggingStage) Process(r *http.Request) Result {
	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	out := r.Clone(logger.WithContext(r.Context()))
	out.Header.Set(s.header, requestID)

	logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("query", r.URL.RawQuery).
		Str("host", r.Host).
		Msg("request received")
	return Continue(out)
}

func (s *LoggingStage) Complete(r *http.Request, status int, elapsed time.Duration) {
	zerolog.Ctx(r.Context()).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("duration", elapsed).
		Msg("request completed")
}
