package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voka/internal/app"
	"voka/internal/cache"
	"voka/internal/config"
	"voka/internal/payment"
	"voka/internal/pkg/auth"
	"voka/internal/pkg/logger"
	"voka/internal/pkg/zalo"
	"voka/internal/quiz"
	"voka/internal/service"
	"voka/internal/storage"
)

func main() {
	settings := config.Current

	var l *logger.Logger
	var err error
	var opts []logger.Option
	if settings.LogFile != "" {
		opts = append(opts, logger.WithFile(settings.LogFile, settings.LogMaxSizeMB))
	}
	if l, err = logger.CreateLogger(config.LogLevel, opts...); err != nil {
		log.Fatal("Failed to create logger:", err)
	}

	auth.Configure(settings.JWTSecret, settings.TokenTTL)

	storage, err := storage.NewPostgreSQL(config.DatabaseURI, l)
	if err != nil {
		log.Fatal(err)
	}
	defer storage.Close()

	if settings.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = storage.Migrate(migrateCtx)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
	}

	var deviceCache cache.Cache = cache.NewMemory()
	if settings.RedisAddr != "" {
		redisCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewRedis(redisCtx, settings.RedisAddr, settings.RedisPassword, settings.RedisDB)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		deviceCache = redisCache
	} else {
		l.Sugar().Warn("REDIS_ADDR is not set, keeping device state in memory")
	}
	defer deviceCache.Close()

	payments := payment.NewClient(payment.Config{
		BaseURL:     settings.PayOSBaseURL,
		ClientID:    settings.PayOSClientID,
		APIKey:      settings.PayOSAPIKey,
		ChecksumKey: settings.PayOSChecksumKey,
	})
	identities := zalo.NewClient(settings.ZaloGraphURL, settings.ZaloAppSecret)

	if settings.SandboxMode {
		l.Sugar().Warn("Sandbox mode is on: test webhooks are acknowledged and hearts can be reset")
	}

	app := app.NewApp(storage, deviceCache, payments, identities, app.Config{
		DefaultHearts:  settings.DefaultHearts,
		DefaultCredits: settings.DefaultCredits,
		ScoreWindow:    settings.ScoreWindow,
		Quiz: quiz.Config{
			BatchSize:         settings.QuizBatchSize,
			PrefetchThreshold: settings.QuizPrefetchThreshold,
			FetchTimeout:      settings.QuizFetchTimeout,
		},
		SessionTTL:     settings.QuizSessionTTL,
		ChecksumKey:    settings.PayOSChecksumKey,
		ReturnURL:      settings.PaymentReturnURL,
		CancelURL:      settings.PaymentCancelURL,
		SandboxMode:    settings.SandboxMode,
		LeaderboardTTL: settings.LeaderboardCacheTTL,
	}, l)
	service := service.NewService(app, config.ServerRunAddress, l)

	const readHeaderTimeout = 5 * time.Second
	server := &http.Server{Addr: config.ServerRunAddress, Handler: service.NewRouter(), ReadHeaderTimeout: readHeaderTimeout}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(serverCtx, shutdownTimeout)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		app.Close(shutdownCtx)
		serverStopCtx()
	}()

	l.Sugar().Infof("Listening on %s", config.ServerRunAddress)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	<-serverCtx.Done()
}
