package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/workspark/gateway"
	"github.com/jrsteele09/workspark/internal/config"
	"github.com/jrsteele09/workspark/internal/logging"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/jrsteele09/workspark/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	m := metrics.New(prometheus.DefaultRegisterer)
	for {
		if err := run(m); err != nil {
			log.Error().Err(err).Msg("Error running gateway")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Gateway stopped")
}

func run(m *metrics.Metrics) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(c.GetEnv(), c.GetLogLevel(), c.GetAppName()+"-gateway")
	displayAppname(c.GetAppName() + " Gateway")

	signer, err := token.NewSigner(c.GetTokenSecret(), c.GetSigningKeyID(), c.GetSigningKeyPEM())
	if err != nil {
		return err
	}
	tokens := token.New(signer, token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()))

	var sessionStore sessions.Store
	if c.GetCheckSessions() {
		redisClient, err := sessions.ConnectRedis(context.Background(), c.GetRedisURL(), 5, 2*time.Second)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		sessionStore = sessions.NewRedisStore(redisClient, c.GetSessionKeyPrefix())
	}

	upstreams, err := gateway.NewRouter(c.GetRoutes())
	if err != nil {
		return err
	}

	edge := gateway.New(upstreams, gateway.Options{
		Logger: logger,
		Headers: gateway.Headers{
			Tenant:    c.GetTenantHeader(),
			Identity:  c.GetIdentityHeader(),
			SkipAuth:  c.GetSkipAuthHeader(),
			RequestID: c.GetRequestIDHeader(),
		},
		Tokens:    tokens,
		Sessions:  sessionStore,
		Whitelist: c.GetWhitelist(),
		Metrics:   m,
	})

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Mount("/", edge)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Gateway listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
