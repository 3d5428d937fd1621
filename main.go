package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quel-style-server/modules/common/config"
	"quel-style-server/modules/common/logger"
	redisClient "quel-style-server/modules/common/redis"
	"quel-style-server/modules/worker"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quel-style-server",
		Short:         "Style-transfer prompt rewriting and image generation server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and queue worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(newInvokeCmd())
	return root
}

// loadConfig - 환경변수 로드 후 로거 설정
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func newStore(cfg *config.Config) (worker.Store, func(), error) {
	if cfg.QueueBackend != config.QueueRedis {
		logrus.Info("📦 Using in-memory job store")
		return worker.NewMemoryStore(0), func() {}, nil
	}

	rdb, err := redisClient.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return worker.NewRedisStore(rdb, cfg.JobTTL), func() { rdb.Close() }, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := worker.NewMetrics()
	hub := worker.NewStreamHub(store, metrics)
	w := worker.NewWorker(store, p.handler, metrics, hub)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Queue Worker 시작 (백그라운드)
	workerDone := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(workerDone)
	}()

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck(cfg.ServiceName)).Methods("GET")
	r.HandleFunc("/health", healthCheck(cfg.ServiceName)).Methods("GET")
	r.HandleFunc("/metrics", getMetrics(metrics, store)).Methods("GET")
	worker.NewRunHandler(store, w, metrics).RegisterRoutes(r)
	worker.NewCancelHandler(store, metrics, hub).RegisterRoutes(r)
	hub.RegisterRoutes(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.Infof("🚀 %s starting on port %s", cfg.ServiceName, cfg.Port)
	logrus.Infof("⚡ Sync run: POST http://localhost:%s/runsync", cfg.Port)
	logrus.Infof("📥 Async run: POST http://localhost:%s/run", cfg.Port)
	logrus.Infof("📡 Status stream: ws://localhost:%s/stream/{jobId}", cfg.Port)
	logrus.Infof("❤️  Health check: http://localhost:%s/health", cfg.Port)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stop()
			<-workerDone
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logrus.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("⚠️  Server shutdown: %v", err)
	}
	<-workerDone
	return nil
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": service,
		})
	}
}

// 서버 메트릭 조회 엔드포인트
func getMetrics(metrics *worker.Metrics, store worker.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queueLen, err := store.QueueLength(r.Context())
		if err != nil {
			logrus.Warnf("⚠️  Failed to read queue length: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server":      metrics.Snapshot(),
			"queueLength": queueLen,
		})
	}
}
