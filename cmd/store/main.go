package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/teashop/internal/cache"
	"github.com/Skotchmaster/teashop/internal/httpserver"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/search"
	"github.com/Skotchmaster/teashop/internal/service"
	"github.com/Skotchmaster/teashop/pkg/config"
	pkgdb "github.com/Skotchmaster/teashop/pkg/db"
	"github.com/Skotchmaster/teashop/pkg/events"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/teashop/pkg/middleware/logging"
	"github.com/Skotchmaster/teashop/pkg/middleware/ratelimit"
	"github.com/Skotchmaster/teashop/pkg/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := pkgdb.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer pkgdb.Close(db)

	r := repo.New(db)
	if err := r.Migrate(initCtx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	var (
		orderCache service.OrderCache
		limits     ratelimit.Store = ratelimit.NewMemoryStore()
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(initCtx).Err(); err != nil {
			logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		} else {
			orderCache = cache.NewOrderCache(rdb, cfg.OrderCacheTTL)
			limits = ratelimit.NewRedisStore(rdb)
			logger.Info("redis_connected", "addr", cfg.RedisAddr)
		}
	}

	var index service.ProductIndex
	if cfg.ESURL != "" {
		es, err := search.NewClient(initCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("elasticsearch_unavailable", "url", cfg.ESURL, "error", err)
		} else {
			ix := search.NewProductIndex(es, cfg.ESIndex)
			if err := ix.EnsureIndex(initCtx); err != nil {
				logger.Warn("elasticsearch_index_failed", "index", cfg.ESIndex, "error", err)
			} else {
				index = ix
			}
		}
	}

	var bucket storage.Bucket = storage.NewMemoryBucket()
	if cfg.S3.Bucket != "" {
		s3b, err := storage.NewS3Bucket(initCtx, cfg.S3)
		if err != nil {
			log.Fatalf("s3: %v", err)
		}
		bucket = s3b
	} else {
		logger.Warn("storage_in_memory", "reason", "S3_BUCKET is not set")
	}
	uploader := storage.NewUploader(bucket)

	catalog := &service.CatalogService{Repo: r, Index: index, Events: publisher}
	orders := &service.OrderService{Repo: r, Cache: orderCache, Events: publisher}
	users := &service.UserService{Repo: r, Uploader: uploader}
	auth := &service.AuthService{Repo: r, JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL, Events: publisher}
	cart := &service.CartService{Repo: r}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-CSRF-Token"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	httpserver.Register(e, &httpserver.Deps{
		Health:    &httpserver.HealthHTTP{Service: cfg.ServiceName, DB: r},
		Catalog:   &httpserver.CatalogHTTP{Svc: catalog},
		Orders:    &httpserver.OrderHTTP{Svc: orders},
		Users:     &httpserver.UserHTTP{Auth: auth, Users: users, Orders: orders},
		Cart:      &httpserver.CartHTTP{Svc: cart},
		Admin:     &httpserver.AdminHTTP{Catalog: catalog, Orders: orders, Users: users, Uploader: uploader},
		Storage:   &httpserver.StorageHTTP{Bucket: bucket},
		JWTSecret: cfg.JWTSecret,
		Limits:    limits,
		CSRF:      csrf.DefaultConfig(),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if index != nil {
		g.Go(func() error {
			n, err := catalog.Reindex(logging.IntoContext(gctx, logger))
			if err != nil {
				logger.Warn("reindex_failed", "indexed", n, "error", err)
				return nil
			}
			logger.Info("reindex_done", "indexed", n)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server_error", "error", err)
	}
	logger.Info("stopped")
}

func newPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	var multi events.Multi
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			logger.Warn("kafka_unavailable", "error", err)
		} else {
			multi = append(multi, kp)
		}
	}
	if cfg.RabbitMQURL != "" {
		ap, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			logger.Warn("rabbitmq_unavailable", "error", err)
		} else {
			multi = append(multi, ap)
		}
	}
	if len(multi) == 0 {
		return events.Noop{}
	}
	return multi
}
