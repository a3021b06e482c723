package cmd

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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/face-identify/internal/config"
	"github.com/example/face-identify/internal/grpchealth"
	"github.com/example/face-identify/internal/handlers"
	"github.com/example/face-identify/internal/identity"
	"github.com/example/face-identify/internal/pipeline"
	"github.com/example/face-identify/internal/repository"
	"github.com/example/face-identify/internal/storage"
	"github.com/example/face-identify/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the identification HTTP service",
	Long: `Start the HTTP service. POST an image as the multipart field "file" to
/getimg to receive the recognized people in it.

The recognition log (DATABASE_DSN), the person name cache (REDIS_ADDR) and the
gRPC health service (GRPC_ADDR) are enabled when their address is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	svc, closeAll, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newRouter(cfg.HTTP, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	onShutdown := func() {}
	if cfg.HTTP.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTP.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.GRPCAddr, err)
		}
		health := grpchealth.NewServer(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("grpc health service stopped", zap.Error(err))
			}
		}()
		defer health.Stop()
		health.SetServing(true)
		onShutdown = func() { health.SetServing(false) }
	}

	logger.Info("face-identify listening",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("group_id", cfg.FaceAPI.GroupID),
	)
	if err := serveHTTPServerWithOptions(server, cfg.HTTP.ShutdownTimeout, logger, nil, nil, onShutdown); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}

// buildService wires the face client, the optional cache and recognition log,
// and the pipeline. The returned func releases every opened connection.
func buildService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*usecase.IdentificationUseCase, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	table, err := loadIdentityTable(cfg.Identity.Path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("identity table loaded", zap.Int("entries", table.Len()))

	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var names pipeline.NameResolver = pipeline.ServiceNames{Getter: client}
	if cfg.Redis.Addr != "" {
		if rdb := initRedis(ctx, cfg.Redis.Addr, logger); rdb != nil {
			closers = append(closers, func() { _ = rdb.Close() })
			names = usecase.NewCachedNames(usecase.NewRedisCache(rdb), names, cfg.Redis.CacheTTL, logger)
		}
	}

	var repo usecase.RecognitionRepository
	if cfg.Database.DSN != "" {
		db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		recognitionRepo := repository.NewRecognitionRepository(db, logger)
		if err := recognitionRepo.AutoMigrate(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("auto migrate failed: %w", err)
		}
		repo = recognitionRepo
	}

	pipe := pipeline.New(client, names, table, pipeline.Options{
		BatchSize:         cfg.Pipeline.BatchSize,
		Concurrency:       cfg.Pipeline.Concurrency,
		IncludeUnresolved: cfg.Pipeline.UnresolvedPolicy == config.UnresolvedInclude,
	}, logger)

	return usecase.NewIdentificationUseCase(client, pipe, repo, cfg.FaceAPI.GroupID, logger), closeAll, nil
}

func loadIdentityTable(path string) (*identity.Table, error) {
	if path == "" {
		return identity.Default()
	}
	return identity.Load(path)
}

// initRedis returns nil when the server cannot be reached; names are then
// looked up directly.
func initRedis(ctx context.Context, addr string, logger *zap.Logger) *redis.Client {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, person name cache disabled", zap.Error(err), zap.String("addr", addr))
		_ = client.Close()
		return nil
	}
	return client
}

func newRouter(cfg config.HTTPConfig, svc handlers.Service) *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{})
	router.MaxMultipartMemory = cfg.MaxUploadSize

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Length", handlers.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
	if cfg.Gzip {
		router.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	handlers.RegisterRoutes(router, svc, storage.NewDiskStore(cfg.UploadDir), cfg.MaxUploadSize)
	return router
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal, onShutdown func()) error {
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
		if onShutdown != nil {
			onShutdown()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
