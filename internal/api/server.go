package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"AutoViral-Studio/internal/agent/catalog"
	"AutoViral-Studio/internal/observability/metrics"
	"AutoViral-Studio/internal/studio"
	"AutoViral-Studio/internal/task"
	"AutoViral-Studio/pkg/logger"
)

// Dependencies 汇总 API 处理器需要的服务。Jobs 为空时任务接口返回 503。
type Dependencies struct {
	Agent    studio.Invoker
	Registry *catalog.Registry
	Studio   *studio.Studio
	Jobs     *task.Service
}

// Option 定义可选配置。
type Option func(*Server)

// WithReadHeaderTimeout 设置读取请求头的超时。
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr              string
	deps              Dependencies
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	log               *slog.Logger
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, deps Dependencies, opts ...Option) *Server {
	if deps.Registry == nil {
		deps.Registry = catalog.DefaultRegistry()
	}
	if deps.Studio == nil && deps.Agent != nil {
		deps.Studio = studio.New(deps.Agent, deps.Registry)
	}
	s := &Server{
		addr:              addr,
		deps:              deps,
		readHeaderTimeout: 5 * time.Second,
		shutdownTimeout:   10 * time.Second,
		log:               logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由与中间件链。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/agent/call", s.handleAgentCall)
	mux.HandleFunc("GET /api/v1/agents", s.handleListAgents)

	mux.HandleFunc("GET /api/v1/studio/options", s.handleStudioOptions)
	mux.HandleFunc("POST /api/v1/studio/script", s.handleScript)
	mux.HandleFunc("POST /api/v1/studio/captions", s.handleCaptions)
	mux.HandleFunc("POST /api/v1/studio/trends", s.handleTrends)
	mux.HandleFunc("POST /api/v1/studio/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/v1/studio/sections/{name}", s.handleSectionState)
	mux.HandleFunc("DELETE /api/v1/studio/sections/{name}", s.handleSectionReset)

	mux.HandleFunc("POST /api/v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/stats", s.handleJobStats)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleJobDetail)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return s.recoverPanics(observe(mux))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API 服务启动", slog.String("addr", s.addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("API 服务关闭超时", slog.Any("error", err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "服务已关闭"})
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
