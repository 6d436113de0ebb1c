package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/meatshop-backoffice/internal/carrier"
	"github.com/iliyamo/meatshop-backoffice/internal/config"
	"github.com/iliyamo/meatshop-backoffice/internal/database"
	"github.com/iliyamo/meatshop-backoffice/internal/handler"
	"github.com/iliyamo/meatshop-backoffice/internal/logging"
	"github.com/iliyamo/meatshop-backoffice/internal/middleware"
	"github.com/iliyamo/meatshop-backoffice/internal/otp"
	"github.com/iliyamo/meatshop-backoffice/internal/queue"
	"github.com/iliyamo/meatshop-backoffice/internal/repository"
	"github.com/iliyamo/meatshop-backoffice/internal/router"
	queue_publisher "github.com/iliyamo/meatshop-backoffice/internal/service"
	"github.com/iliyamo/meatshop-backoffice/internal/session"
	"github.com/iliyamo/meatshop-backoffice/internal/storage"
	"github.com/iliyamo/meatshop-backoffice/internal/token"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	log := logging.New(cfg.IsProduction())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	issuer, err := token.New(token.Config{
		AccessSecret:  cfg.JWTSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshSecret: cfg.JWTRefreshSecret,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info(ctx, "migrations applied")
	}

	rdb := config.NewRedisClient()
	var codes otp.Store
	if rdb != nil {
		defer rdb.Close()
		codes = otp.NewRedisStore(rdb, cfg.CodeTTL)
	} else {
		log.Warn(ctx, "redis unavailable: in-memory verification codes, no rate limiting")
		codes = otp.NewMemoryStore(cfg.CodeTTL)
	}

	var events session.EventPublisher = queue_publisher.Nop{}
	if cfg.AuthEventsEnabled {
		events = queue_publisher.New(cfg.RabbitURL, log)
	}
	if cfg.AuthEventsConsumer {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, Dir: "logs", Logger: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "auth-consumer stopped", "error", err)
			}
		}()
	}

	avatars, err := newAvatarStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := session.New(
		repository.NewUserRepo(db),
		repository.NewTokenRepo(db),
		issuer,
		codes,
		events,
		session.Config{BcryptCost: cfg.BcryptCost, Logger: log},
	)
	car := carrier.New(carrier.NewCookieEncoder(cfg.CookieSecure, cfg.CookieSameSite), carrier.BearerEncoder{})
	authn := middleware.Authenticate(issuer, car)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("3M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     allowedOrigins(cfg.FrontendURL),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, carrier.RefreshHeader},
		AllowCredentials: true,
	}))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, car, log), authn, limiter)
	router.RegisterUsers(e, handler.NewUsersHandler(svc, avatars, log), authn)
	if cfg.AvatarStorage != "s3" {
		router.RegisterUploads(e, cfg.AvatarDir)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}

func newAvatarStore(ctx context.Context, cfg config.Config) (storage.AvatarStore, error) {
	if cfg.AvatarStorage == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			PublicURL:    cfg.S3.PublicURL,
		})
	}
	return storage.NewDiskStore(filepath.Clean(cfg.AvatarDir), "/uploads"), nil
}

// allowedOrigins returns the dashboard origin(s) from FRONTEND_URL
// (comma-separated) or the local dev servers.
func allowedOrigins(frontend string) []string {
	var out []string
	for _, o := range strings.Split(frontend, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, strings.TrimRight(o, "/"))
		}
	}
	if len(out) == 0 {
		out = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	return out
}
