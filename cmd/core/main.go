package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-transfer-ledger/pkg/logger"
	"github.com/JoeShih716/go-transfer-ledger/pkg/mysql"
	"github.com/JoeShih716/go-transfer-ledger/pkg/postgres"
	"github.com/JoeShih716/go-transfer-ledger/pkg/wal"
	pb "github.com/JoeShih716/go-transfer-ledger/proto"
)

func main() {
	// .env 不存在時只用系統環境變數
	_ = godotenv.Load()

	path := "config/config.yaml"
	if v, ok := os.LookupEnv("LEDGER_CONFIG"); ok {
		path = v
	}
	cfg, err := loadConfig(path, os.LookupEnv)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited with error", zap.Error(err))
	}
	zl.Info("server exited")
}

func run(cfg Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 初始化 Store (Driven Adapter)
	store, closeStore, err := newStore(ctx, cfg, zl.Named("store"))
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. 初始化 UseCase
	core := usecase.NewCoreUseCase(store, zl,
		usecase.WithRetry(cfg.Transfer.MaxAttempts, cfg.Transfer.BackoffBase))

	// 3. 初始化 gRPC 與 HTTP Adapter (Driving Adapter)
	grpcServer := grpc.NewServer()
	pb.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(core,
		grpc_adapter.WithLogger(zl.Named("grpc")),
		grpc_adapter.WithRetryDelay(cfg.Transfer.RetryAfter)))

	app := http_adapter.NewApp(http_adapter.NewHandler(core,
		http_adapter.WithLogger(zl.Named("http")),
		http_adapter.WithRetryAfter(cfg.Transfer.RetryAfter)))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("starting grpc server", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		zl.Info("starting http server", zap.String("addr", cfg.Server.HTTPAddr))
		if err := app.Listen(cfg.Server.HTTPAddr); err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down servers")
		grpcServer.GracefulStop()
		return app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}

// newStore 依設定建立 Store，回傳的 cleanup 負責釋放連線或 WAL
func newStore(ctx context.Context, cfg Config, zl *zap.Logger) (usecase.Store, func(), error) {
	switch cfg.Store.Type {
	case StoreMemory, StoreMemoryLoop:
		var (
			journal memory_adapter.Journal
			cleanup = func() {}
		)
		if cfg.Store.WALPath != "" {
			walFile, err := wal.Open(cfg.Store.WALPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init WAL: %w", err)
			}
			journal = walFile
			cleanup = func() {
				if err := walFile.Close(); err != nil {
					zl.Warn("close wal failed", zap.Error(err))
				}
			}
		}
		opts := []memory_adapter.Option{
			memory_adapter.WithLockTimeout(cfg.Store.LockTimeout),
			memory_adapter.WithLogger(zl),
			memory_adapter.WithQueueSize(cfg.Store.QueueSize),
		}
		if cfg.Store.Type == StoreMemory {
			s, err := memory_adapter.NewMutexStore(journal, opts...)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			return s, cleanup, nil
		}
		s, err := memory_adapter.NewLoopStore(journal, opts...)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		// loop 要比 server 晚停，伺服器關閉後才取消
		loopCtx, cancel := context.WithCancel(context.Background())
		s.Start(loopCtx)
		return s, func() {
			cancel()
			<-s.Stopped()
			cleanup()
		}, nil

	case StoreMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		s := mysql_adapter.NewStore(client,
			mysql_adapter.WithLockTimeout(cfg.Store.LockTimeout), mysql_adapter.WithLogger(zl))
		if err := s.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, func() { _ = client.Close() }, nil

	case StorePostgres:
		client, err := postgres.NewClient(ctx, cfg.Postgres, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		s := postgres_adapter.NewStore(client.Pool(),
			postgres_adapter.WithLockTimeout(cfg.Store.LockTimeout), postgres_adapter.WithLogger(zl))
		if err := s.Migrate(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}
