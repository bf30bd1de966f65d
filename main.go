package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/flower-lookup/internal/auth"
	"github.com/example/flower-lookup/internal/classifier"
	"github.com/example/flower-lookup/internal/config"
	"github.com/example/flower-lookup/internal/handlers"
	"github.com/example/flower-lookup/internal/logging"
	"github.com/example/flower-lookup/internal/metrics"
	"github.com/example/flower-lookup/internal/palette"
	"github.com/example/flower-lookup/internal/presentation"
	"github.com/example/flower-lookup/internal/repository"
	"github.com/example/flower-lookup/internal/usecase"
	"github.com/example/flower-lookup/internal/wiki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.Database, logger)
	repo := repository.NewIdentificationRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	var cache usecase.RecordCache
	if cfg.Redis.Addr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		cache = usecase.NewRedisCache(initRedis(redisCtx, cfg.Redis, logger), time.Duration(cfg.Redis.CacheTTLSec)*time.Second)
	} else {
		logger.Warn("redis address not set, lookup cache disabled")
	}

	model, conn, err := classifier.DialClassifier(ctx, cfg.Classifier.Addr, logger)
	if err != nil {
		logger.Fatal("failed to connect to classifier", zap.String("addr", cfg.Classifier.Addr), zap.Error(err))
	}
	defer conn.Close()

	wikiHTTP := &http.Client{Timeout: time.Duration(cfg.Wiki.TimeoutSec) * time.Second}
	lookup := wiki.NewClient(wiki.Config{
		Endpoint:             cfg.Wiki.Endpoint,
		ThumbnailSize:        cfg.Wiki.ThumbnailSize,
		UserAgent:            cfg.Wiki.UserAgent,
		RequireBatchComplete: cfg.Wiki.RequireBatchComplete,
		HTTPClient:           wikiHTTP,
	}, logger)

	tag, err := language.Parse(cfg.Presentation.Locale)
	if err != nil {
		logger.Warn("invalid locale, using English", zap.String("locale", cfg.Presentation.Locale), zap.Error(err))
		tag = language.English
	}
	presenter := presentation.NewPresenter(palette.NewFetcher(wikiHTTP, logger), tag, logger)

	uc := usecase.NewIdentificationUseCase(repo, cache, model, lookup, presenter, logger)

	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware())
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authMiddleware := auth.JWTMiddleware(auth.Config{
		Secret:         cfg.Auth.JWTSecret,
		Audience:       cfg.Auth.JWTAudience,
		Issuer:         cfg.Auth.JWTIssuer,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
	})
	handlers.RegisterRoutes(r, uc, authMiddleware)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadHeaderTimeoutS) * time.Second,
	}

	logger.Info("flower lookup listening", zap.String("addr", cfg.HTTP.Addr))
	if err := serveHTTPServer(server, time.Duration(cfg.HTTP.ShutdownTimeoutS)*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, cfg config.DatabaseConfig, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, cfg config.RedisConfig, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
