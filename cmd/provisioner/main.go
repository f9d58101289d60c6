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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/api"
	"github.com/LeventeLantos/account-provisioner/internal/client"
	"github.com/LeventeLantos/account-provisioner/internal/config"
	"github.com/LeventeLantos/account-provisioner/internal/feed"
	"github.com/LeventeLantos/account-provisioner/internal/logging"
	"github.com/LeventeLantos/account-provisioner/internal/mailbox"
	"github.com/LeventeLantos/account-provisioner/internal/repo"
	"github.com/LeventeLantos/account-provisioner/internal/scheduler"
	"github.com/LeventeLantos/account-provisioner/internal/service"
	"github.com/LeventeLantos/account-provisioner/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.Init(logging.Config{Level: cfg.Log.Level})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("provisioner exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("provisioner starting",
		zap.String("addr", cfg.Server.Address),
		zap.Duration("interval", cfg.Scheduler.Interval),
		zap.String("csv", cfg.Feed.CSVPath),
		zap.String("redis", cfg.Redis.Address),
	)

	db, err := repo.Connect(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, OTP lookups will retry per poll", zap.Error(err))
	}
	cancel()

	files, err := logging.NewRunFiles(cfg.Log.Dir, cfg.Log.Retention)
	if err != nil {
		return err
	}
	defer files.Close()

	users := repo.NewPostgresUserRepo(db)
	audit := service.NewAuditor(repo.NewPostgresAuditRepo(db), users)
	authAPI := client.NewAuthClient(cfg.Auth.BaseURL, cfg.Auth.Timeout)
	mb := mailbox.NewRedisMailbox(rdb,
		mailbox.WithKeyPrefix(cfg.OTP.KeyPrefix),
		mailbox.WithLogger(logger.Named("mailbox")),
	)

	registrar := service.NewRegistrar(authAPI, mb, audit, service.RegistrarConfig{
		OTPTimeout: cfg.OTP.Timeout,
		OTPPoll:    cfg.OTP.Poll,
	})
	login := service.NewLoginRetrier(authAPI, users, audit, service.LoginRetrierConfig{
		CooldownMinutes: cfg.Login.CooldownMinutes,
		Limit:           cfg.Login.Limit,
	})

	job := worker.NewJob(
		worker.Config{CSVPath: cfg.Feed.CSVPath, LogLevel: cfg.Log.Level},
		files,
		repo.NewPostgresLogRepo(db),
		feed.ReadFile,
		registrar,
		login,
		worker.WithLogger(logger.Named("job")),
	)

	sched, err := scheduler.New(cfg.Scheduler.Interval, job.Run,
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithWatch(cfg.Feed.CSVPath, cfg.Scheduler.Debounce),
	)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(logger.Named("http"))(api.Router(api.NewHandler(sched, job))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("size", rec.size),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
