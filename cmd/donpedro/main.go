package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/donpedro/internal/cache"
	memcache "github.com/dropDatabas3/donpedro/internal/cache/memory"
	redcache "github.com/dropDatabas3/donpedro/internal/cache/redis"
	"github.com/dropDatabas3/donpedro/internal/config"
	"github.com/dropDatabas3/donpedro/internal/configstore"
	"github.com/dropDatabas3/donpedro/internal/credentials"
	"github.com/dropDatabas3/donpedro/internal/email"
	"github.com/dropDatabas3/donpedro/internal/engine"
	httpserver "github.com/dropDatabas3/donpedro/internal/http"
	"github.com/dropDatabas3/donpedro/internal/http/session"
	"github.com/dropDatabas3/donpedro/internal/jwt"
	"github.com/dropDatabas3/donpedro/internal/maintenance"
	"github.com/dropDatabas3/donpedro/internal/metrics"
	"github.com/dropDatabas3/donpedro/internal/observability/logger"
	"github.com/dropDatabas3/donpedro/internal/profile"
	"github.com/dropDatabas3/donpedro/internal/rate"
	"github.com/dropDatabas3/donpedro/internal/store/core"
	memstore "github.com/dropDatabas3/donpedro/internal/store/memory"
	pgstore "github.com/dropDatabas3/donpedro/internal/store/pg"
	redstore "github.com/dropDatabas3/donpedro/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "donpedro:", err)
		os.Exit(1)
	}
}

func run() error {
	flagConfig := flag.String("config", "config.yaml", "ruta del archivo de configuración")
	flagEnvFile := flag.String("env-file", ".env", "archivo .env opcional")
	flag.Parse()

	// .env es opcional: en producción las variables vienen del entorno
	_ = godotenv.Load(*flagEnvFile)

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: os.Getenv("LOG_LEVEL")})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	// registro de configuración: fail-fast ante cualquier inconsistencia
	cs, err := configstore.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// cache backend (sesiones + grants en memoria/redis)
	var (
		cacheBackend cache.Cache
		redisCache   *redcache.Cache
	)
	switch cfg.Cache.Kind {
	case "redis":
		redisCache = redcache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		cacheBackend = redisCache
	default:
		cacheBackend = memcache.New(config.Dur(cfg.Cache.Memory.DefaultTTL, 10*time.Minute))
	}

	// stores según driver
	var (
		grants      core.GrantStore
		tokens      core.TokenStore
		keys        core.KeyStore
		creds       credentials.Store
		grantsSweep maintenance.SweepFunc
		pg          *pgstore.Store
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err = pgstore.New(ctx, cfg.Storage.DSN, pgstore.Options{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, time.Hour),
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		pgCreds := credentials.NewPGStore(pg.Pool())
		if err := pgCreds.EnsureSchema(ctx); err != nil {
			return err
		}
		tokens = pg.Tokens()
		keys = pg.Keys()
		creds = pgCreds
		grantsSweep = pg.DeleteExpiredGrants
		if redisCache != nil {
			grants = redstore.NewGrantStore(redisCache.Client(), cfg.Cache.Redis.Prefix)
			grantsSweep = nil // redis expira por TTL
		} else {
			grants = pg.Grants()
		}
	default:
		mg := memstore.NewGrantStore()
		grants = mg
		grantsSweep = func(ctx context.Context, before time.Time) (int64, error) {
			return int64(mg.Sweep(before)), nil
		}
		tokens = memstore.NewTokenStore()
		keys = memstore.NewKeyStore()
		creds, err = credentials.NewMemoryStore(cfg.Users)
		if err != nil {
			return err
		}
	}

	// claves de firma: bootstrap si el store está vacío
	keystore := jwt.NewKeystore(keys)
	if err := keystore.EnsureBootstrap(ctx); err != nil {
		return fmt.Errorf("signing keys: %w", err)
	}
	issuer := jwt.NewIssuer(cfg.JWT.Issuer, keystore)
	rotator := jwt.NewRotator(keys, keystore,
		config.Dur(cfg.JWT.Rotation.Interval, 24*time.Hour),
		config.Dur(cfg.JWT.Rotation.Overlap, 48*time.Hour),
	)

	// alertas por SMTP (opcionales)
	var alerts *email.SecurityAlerter
	if cfg.SMTP.Host != "" && cfg.SMTP.AlertsTo != "" {
		sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		if cfg.SMTP.TLSMode != "" {
			sender.TLSMode = cfg.SMTP.TLSMode
		}
		alerts = email.NewSecurityAlerter(sender, cfg.SMTP.AlertsTo)
	}

	prof := profile.New(cs, profile.CredentialsSource(creds))
	eng := engine.New(engine.Options{
		Config:      cs,
		Grants:      grants,
		Tokens:      tokens,
		Credentials: creds,
		Profile:     prof,
		Issuer:      issuer,
		CodeTTL:     config.Dur(cfg.JWT.CodeTTL, 5*time.Minute),
		Alerts:      alerts,
	})

	sessions := session.NewManager(cacheBackend, session.Options{
		CookieName: cfg.Auth.Session.CookieName,
		TTL:        config.Dur(cfg.Auth.Session.TTL, 12*time.Hour),
		Secure:     cfg.Auth.Session.Secure,
		SameSite:   cfg.Auth.Session.SameSite,
	})

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		window := config.Dur(cfg.Rate.Window, time.Minute)
		if redisCache != nil {
			limiter = rate.NewRedisLimiter(redisCache.Client(), "rl:", cfg.Rate.MaxRequests, window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, window)
		}
	}

	if err := metrics.RegisterProtocol(nil); err != nil {
		return err
	}
	metricsCfg := httpserver.MetricsConfig{}
	if pg != nil {
		metricsCfg.Pool = pg.Pool
	}
	metricsHandler, err := httpserver.RegisterMetrics(metricsCfg)
	if err != nil {
		return err
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		IssuerURL:      cfg.JWT.Issuer,
		Engine:         eng,
		Issuer:         issuer,
		Keystore:       keystore,
		ConfigStore:    cs,
		Credentials:    creds,
		Profile:        prof,
		Sessions:       sessions,
		Limiter:        limiter,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		IntrospectUser: cfg.Auth.IntrospectBasicUser,
		IntrospectPass: cfg.Auth.IntrospectBasicPass,
		MetricsHandler: metricsHandler,
	})

	server := httpserver.NewServer(cfg.Server.Addr, router)
	sweeper := &maintenance.Sweeper{
		Tokens:   tokens,
		Grants:   grantsSweep,
		Interval: config.Dur(cfg.Sweep.Interval, 10*time.Minute),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return rotator.Run(gctx) })
	g.Go(func() error { sweeper.Run(gctx); return nil })

	log.Info("donpedro up",
		logger.String("issuer", cfg.JWT.Issuer),
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
	)
	// rotator.Run devuelve ctx.Err() al cancelar: un SIGTERM limpio no es
	// un fallo del proceso.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
