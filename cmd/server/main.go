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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/workspark/auth"
	"github.com/jrsteele09/workspark/datasource"
	"github.com/jrsteele09/workspark/identity"
	"github.com/jrsteele09/workspark/internal/config"
	"github.com/jrsteele09/workspark/internal/logging"
	"github.com/jrsteele09/workspark/internal/metrics"
	"github.com/jrsteele09/workspark/internal/pathmatch"
	"github.com/jrsteele09/workspark/provisioning"
	"github.com/jrsteele09/workspark/server"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/jrsteele09/workspark/tenants"
	"github.com/jrsteele09/workspark/token"
	"github.com/jrsteele09/workspark/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	m := metrics.New(prometheus.DefaultRegisterer)
	for {
		if err := run(m); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
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
	logger := logging.New(c.GetEnv(), c.GetLogLevel(), c.GetAppName())
	displayAppname(c.GetAppName())

	ctx := context.Background()

	connector := datasource.NewPgxConnector(datasource.PgxConfig{
		ConnectionString:  c.GetDatabaseURL(),
		MaxConns:          c.GetMaxConns(),
		MinConns:          c.GetMinConns(),
		HealthCheckPeriod: c.GetHealthCheckPeriod(),
	})

	registryMigrator := provisioning.NewGooseMigrator(connector.PoolConfig, provisioning.RegistryMigrations(), logger)
	if err := registryMigrator.Migrate(ctx, c.GetDefaultDatabase()); err != nil {
		return fmt.Errorf("registry migrations: %w", err)
	}
	defaultPool, err := connector.Connect(ctx, &tenants.Tenant{DatabaseName: c.GetDefaultDatabase()})
	if err != nil {
		return err
	}
	defer defaultPool.Close()
	registry := tenants.NewPgRepo(defaultPool)

	redisClient, err := sessions.ConnectRedis(ctx, c.GetRedisURL(), 5, 2*time.Second)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	sessionStore := sessions.NewRedisStore(redisClient, c.GetSessionKeyPrefix())

	signer, err := token.NewSigner(c.GetTokenSecret(), c.GetSigningKeyID(), c.GetSigningKeyPEM())
	if err != nil {
		return err
	}
	tokens := token.New(signer, token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()))

	router := datasource.NewRouter[*pgxpool.Pool](registry, connector, c.GetDefaultDatabase(),
		datasource.WithMetrics[*pgxpool.Pool](m),
		datasource.WithLogger[*pgxpool.Pool](logger),
	)
	defer router.Close()

	provisioner := provisioning.New(registry,
		provisioning.NewPgSchemaManager(defaultPool),
		provisioning.NewGooseMigrator(connector.PoolConfig, provisioning.TenantMigrations(), logger),
		provisioning.WithRegistrar(router),
		provisioning.WithMetrics(m),
		provisioning.WithLogger(logger),
	)
	router.UsePreparer(provisioner)

	userSource := users.RepoSourceFunc(func(ctx context.Context) (users.UserRepo, error) {
		if pool, ok := datasource.PoolFromContext[*pgxpool.Pool](ctx); ok {
			return users.NewPgRepo(pool), nil
		}
		key, _ := tenants.KeyFromContext(ctx)
		pool, err := router.Resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		return users.NewPgRepo(pool), nil
	})

	authOptions := []auth.ServiceOption{
		auth.WithSessionTTL(c.GetSessionTTL()),
		auth.WithLogger(logger),
	}
	sso := auth.SSOConfig{
		IssuerURL:    c.GetSSOIssuerURL(),
		ClientID:     c.GetSSOClientID(),
		ClientSecret: c.GetSSOClientSecret(),
		RedirectURL:  c.GetSSORedirectURL(),
	}
	if sso.Enabled() {
		verifier := token.NewExternalVerifier(&http.Client{Timeout: c.GetOIDCTimeout()})
		authOptions = append(authOptions, auth.WithSSO(sso, verifier))
	}
	authService, err := auth.NewService(userSource, sessionStore, tokens, authOptions...)
	if err != nil {
		return err
	}

	filter := identity.New(sessionStore,
		identity.WithHeaders(identity.Headers{
			Tenant:   c.GetTenantHeader(),
			Identity: c.GetIdentityHeader(),
			SkipAuth: c.GetSkipAuthHeader(),
		}),
		identity.WithWhitelist(pathmatch.New(c.GetWhitelist()...)),
		identity.WithMetrics(m),
	)

	authServer, err := server.New(c, server.Deps{
		Auth:     authService,
		Keys:     tokens,
		Identity: filter.Middleware,
		Bind:     router.Bind,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if err := server.InitialiseSystem(ctx, c, server.SystemDeps{
		Registry:  registry,
		Onboarder: provisioner,
		Users:     userSource,
		Logger:    logger,
	}); err != nil {
		return err
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Mount("/", authServer)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func listenAndServe(server *http.Server) {
	log.Info().Msgf("Server listening on %s", server.Addr)
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
