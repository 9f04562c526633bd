package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/auth"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/config"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/deepimage"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/enhance"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/grpcserver"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/handlers"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/imageprocessor"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/qrcode"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/queue"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/repository"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.close()

	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			logger.Fatal("grpc health listen failed", zap.Error(err), zap.String("addr", cfg.GRPCHealthAddr))
		}
		hs := grpcserver.NewHealthServer(logger)
		go hs.Serve(lis) //nolint:errcheck
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			hs.Shutdown(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("photo booth api listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("face_crop", a.usecase.FaceCropEnabled()),
		zap.Bool("qr_code", cfg.Features.QRCode),
		zap.Bool("queue", a.usecase.AsyncEnabled()))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

type app struct {
	router  *gin.Engine
	usecase *usecase.AvatarUseCase
	closers []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	repo, err := repository.NewArtifactRepository(repository.Dirs{
		Originals: cfg.Storage.UploadDir,
		Enhanced:  cfg.Storage.EnhancedDir,
		QRCodes:   cfg.Storage.QRDir,
	}, logger)
	if err != nil {
		return nil, err
	}

	client := deepimage.NewClient(deepimage.Options{
		BaseURL: cfg.DeepImage.BaseURL,
		APIKey:  cfg.DeepImage.APIKey,
		Timeout: cfg.DeepImage.Timeout,
		Logger:  logger,
	})
	pipeline := enhance.NewPipeline(
		enhance.NewSubmitter(client, logger),
		enhance.NewPoller(client, enhance.PollPolicy{
			Interval:        cfg.DeepImage.PollInterval,
			MaxAttempts:     cfg.DeepImage.MaxAttempts,
			FailureStatuses: cfg.DeepImage.FailureStatuses,
		}, logger),
		enhance.NewMaterializer(client, repo, logger),
		logger,
	)

	opts := usecase.Options{ProgressTTL: cfg.Redis.ProgressTTL}
	if cfg.Features.QRCode {
		opts.QR = qrcode.NewGenerator(repo, qrcode.Options{PublicHost: cfg.PublicHost, Port: cfg.Port}, logger)
	}
	if cfg.Features.FaceCrop {
		detector, err := imageprocessor.LoadPigoDetectorOrDefault(cfg.FaceCascadePath, imageprocessor.DefaultPigoParams(), logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("load face detector: %w", err)
		}
		opts.Cropper = imageprocessor.NewFaceCropper(detector, logger)
	}

	if cfg.Redis.Addr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		cache, err := initRedis(redisCtx, cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = cache.Close() })
		opts.Cache = cache
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	if cfg.Queue.Enabled {
		enqueuer := queue.NewEnqueuer(redisOpt, cfg.DeepImage.PollBudget(), logger)
		a.closers = append(a.closers, func() { _ = enqueuer.Close() })
		opts.Enqueuer = enqueuer
	}

	a.usecase = usecase.NewAvatarUseCase(repo, pipeline, opts, logger)

	if cfg.Queue.Enabled {
		worker := queue.NewWorker(redisOpt, cfg.Queue.Concurrency, a.usecase, logger)
		if err := worker.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("start queue worker: %w", err)
		}
		a.closers = append(a.closers, worker.Shutdown)
	}

	a.router = newRouter(cfg, a.usecase, logger)
	return a, nil
}

func newRouter(cfg *config.Config, uc handlers.AvatarService, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger), handlers.CORS(cfg.CORSOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	handlers.RegisterRoutes(r, uc, auth.SharedSecretMiddleware(cfg.SharedSecret), cfg.MaxUploadBytes)
	return r
}

func initRedis(ctx context.Context, cfg config.RedisConfig) (*usecase.RedisCache, error) {
	cache := usecase.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}))
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache, nil
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
		err := server.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			// Uploads still polling lose their connection, which cancels
			// their request contexts and ends the poll loop.
			logger.Warn("shutdown timed out, closing open connections", zap.Duration("timeout", shutdownTimeout))
			_ = server.Close()
			return <-errCh
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
