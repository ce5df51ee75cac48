// Package main runs the chessaroo API server: accounts, hand-recorded game
// ledgers and chess.com imports behind session authentication.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chessaroo/cmd/chessaroo-server/cli"
	"chessaroo/internal/server/chesscom"
	"chessaroo/internal/server/config"
	"chessaroo/internal/server/http"
	"chessaroo/internal/server/obslog"
	"chessaroo/internal/server/service"
	"chessaroo/internal/server/session"
	"chessaroo/internal/server/storage"

	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = time.Second * 5
	devSecret               = "dev-secret-minimum-32-characters-long"
)

func main() {
	// Check for CLI database commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "CLI error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		cfgPath = flag.String("config", "", "Optional config file (yaml, json or toml)")
		dev     = flag.Bool("dev", false, "Development mode (fixed secret, relaxed rate limits)")
	)
	flag.Parse()

	cfg, err := config.Setup(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dev {
		cfg.Dev = true
	}

	log := obslog.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	deployedAt := time.Now().UTC()

	// 1. Storage and schema
	store, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.Dev)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	applied, err := store.Migrate(context.Background())
	if err != nil {
		store.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("storage ready", zap.String("driver", cfg.DBDriver), zap.Int("migrations_applied", applied))

	// 2. Session signing secret
	secret, err := signingSecret(cfg, log)
	if err != nil {
		store.Close()
		return err
	}

	// 3. Session store, Redis when configured
	var sessionStore session.Store = session.NewSQLStore(store)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		rdb, err := session.DialRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			store.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		sessionStore = session.NewRedisStore(rdb)
		log.Info("session store: redis")
	} else {
		log.Info("session store: database")
	}
	sessions := session.NewManager(sessionStore, secret, cfg.SessionTTL)

	fetcher := chesscom.NewClient(cfg.ChessComBaseURL, chesscom.WithTimeout(cfg.ChessComTimeout))

	svc := service.New(store, sessions, fetcher, service.WithLogger(log))

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go svc.RunCleanupJob(cleanupCtx, cfg.CleanupInterval)

	app := http.NewFiberApp(svc, log, http.Options{
		DevMode:             cfg.Dev,
		CORSOrigins:         cfg.Origins(),
		SessionCookieName:   cfg.SessionCookieName,
		SessionCookieSecure: cfg.SessionCookieSecure,
		AdminCookieName:     cfg.AdminSessionCookieName,
		AdminPassword:       cfg.AdminPassword(),
		AdminTTL:            cfg.AdminSessionTTL(),
		Secret:              secret,
		DeploymentTime:      deployedAt,
	})

	addr := cfg.Addr()
	listenErr := make(chan error, 1)
	go func() {
		log.Info("chessaroo API listening",
			zap.String("addr", "http://"+addr),
			zap.Bool("dev", cfg.Dev),
			zap.Bool("admin_configured", cfg.AdminPassword() != ""))
		listenErr <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down")
	case err := <-listenErr:
		if err != nil {
			log.Error("listen failed", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(gracefulShutdownTimeout); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	cleanupCancel()

	if err := svc.Shutdown(); err != nil {
		log.Warn("service shutdown error", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// signingSecret returns the configured key, the fixed dev key, or a random
// key that invalidates all sessions on restart
func signingSecret(cfg *config.Config, log *zap.Logger) ([]byte, error) {
	switch {
	case cfg.SecretKey != "":
		return []byte(cfg.SecretKey), nil
	case cfg.Dev:
		log.Warn("using fixed signing secret (dev mode)")
		return []byte(devSecret), nil
	default:
		secret := make([]byte, config.MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		log.Warn("SECRET_KEY not set; generated a random secret, sessions end on restart")
		return secret, nil
	}
}
