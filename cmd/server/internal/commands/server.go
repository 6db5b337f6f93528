package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/domainsec/tracker/internal/auth"
	"github.com/domainsec/tracker/internal/cascade"
	"github.com/domainsec/tracker/internal/i18n"
	"github.com/domainsec/tracker/internal/loaders"
	"github.com/domainsec/tracker/internal/logger"
	"github.com/domainsec/tracker/internal/mutations"
	"github.com/domainsec/tracker/internal/permissions"
	"github.com/domainsec/tracker/internal/server"
	"github.com/domainsec/tracker/internal/store"
	postgresstore "github.com/domainsec/tracker/internal/store/postgres"
	"github.com/domainsec/tracker/internal/telemetry"
)

type ServerCmd struct {
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TRACKER_LISTEN"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" env:"TRACKER_CORS_ORIGINS"`

	// Auth configuration
	JWTSecret string `help:"secret key for HMAC verification of bearer tokens" env:"TRACKER_JWT_SECRET"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"TRACKER_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Cache configuration
	RedisURL string `help:"Redis URL for the entity loader cache (empty disables caching)" env:"TRACKER_REDIS_URL"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TRACKER_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if len(c.JWTSecret) < 32 {
		return errors.New("JWT secret is required and must be at least 32 bytes (--jwt-secret or TRACKER_JWT_SECRET)")
	}
	verifier, err := auth.NewVerifier([]byte(c.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("failed to load message catalogs: %w", err)
	}

	var (
		users   store.UserStore
		orgs    store.OrganizationStore
		domains store.DomainStore
		graph   store.GraphStore
	)

	switch c.StoreType {
	case "postgres":
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
			AutoMigrate:     c.PostgresStore.AutoMigrate,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create PostgreSQL pool: %w", err)
		}
		defer pool.Close()

		users = postgresstore.NewUserStore(pool)
		orgs = postgresstore.NewOrganizationStore(pool)
		domains = postgresstore.NewDomainStore(pool)
		graph = postgresstore.NewGraphStore(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		mem := store.NewMemory()
		users = mem.Users()
		orgs = mem.Organizations()
		domains = mem.Domains()
		graph = mem
		log.Warn().Msg("Using in-memory stores. This should only be used in development!")
	}

	var cache *redis.Client
	if c.RedisURL != "" {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		cache = redis.NewClient(opts)
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis client")
			}
		}()
		log.Info().Msg("Entity loader cache enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	entityLoaders := loaders.New(users, orgs, domains, cache)
	svc := mutations.New(
		entityLoaders,
		graph,
		permissions.NewResolver(graph),
		cascade.NewPlanner(graph),
		catalog,
		telemetry.New(registry),
		log,
	)

	srv := server.New(svc, entityLoaders, verifier, catalog, registry, log, c.CORSOrigins)
	httpServer := configureHTTPServer(c.Listen, srv.Handler())

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Str("listen", c.Listen).Msg("Listening for HTTP connections")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
