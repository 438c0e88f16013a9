// Package gateway is the edge of the platform. A Chain runs an ordered list of
// stages over each inbound request; every stage either continues with a
// (possibly rewritten) request or terminates with a response. Requests that pass
// every stage are handed to the upstream handler, normally a reverse proxy.
package gateway

import (
	"net/http"
	"time"

	"github.com/jrsteele09/workspark/internal/envelope"
	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/rs/zerolog"
)

// Result is the outcome of a Stage.
type Result struct {
	Request *http.Request
	Status  int
	Body    any
	Err     error
}

// Continue passes r to the next stage.
func Continue(r *http.Request) Result {
	return Result{Request: r}
}

// Terminate stops the chain and writes body with status.
func Terminate(status int, body any) Result {
	return Result{Status: status, Body: body}
}

// Reject stops the chain with the envelope matching err's kind.
func Reject(err error) Result {
	status, body := envelope.FromError(err)
	return Result{Status: status, Body: body, Err: err}
}

func (res Result) Terminated() bool {
	return res.Request == nil
}

type Stage interface {
	Process(r *http.Request) Result
}

// StageFunc adapts a function to a Stage.
type StageFunc func(r *http.Request) Result

func (f StageFunc) Process(r *http.Request) Result {
	return f(r)
}

// Completer is implemented by stages that want to observe how a request finished.
// Complete receives the request as it left that stage.
type Completer interface {
	Complete(r *http.Request, status int, elapsed time.Duration)
}

type Chain struct {
	stages   []Stage
	upstream http.Handler
	metrics  *metrics.Metrics
	nowFunc  func() time.Time
}

type ChainOption func(*Chain)

func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

func WithNowFunc(now func() time.Time) ChainOption {
	return func(c *Chain) {
		c.nowFunc = now
	}
}

func NewChain(upstream http.Handler, stages []Stage, options ...ChainOption) *Chain {
	c := &Chain{
		stages:   stages,
		upstream: upstream,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

type completion struct {
	completer Completer
	request   *http.Request
}

func (c *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := c.nowFunc()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	var completions []completion
	defer func() {
		elapsed := c.nowFunc().Sub(start)
		for i := len(completions) - 1; i >= 0; i-- {
			completions[i].completer.Complete(completions[i].request, recorder.status, elapsed)
		}
	}()

	current := r
	for _, stage := range c.stages {
		res := stage.Process(current)
		if completer, ok := stage.(Completer); ok {
			req := res.Request
			if req == nil {
				req = current
			}
			completions = append(completions, completion{completer: completer, request: req})
		}

		if res.Terminated() {
			if res.Err != nil {
				zerolog.Ctx(current.Context()).Info().Err(res.Err).Int("status", res.Status).Msg("request rejected")
				c.metrics.GatewayRejected(apperrors.KindOf(res.Err).String())
			} else {
				c.metrics.GatewayRejected("terminated")
			}
			envelope.Write(recorder, res.Status, res.Body)
			return
		}
		current = res.Request
	}

	c.metrics.GatewayForwarded()
	c.upstream.ServeHTTP(recorder, current)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

// Flush lets streamed upstream responses through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
