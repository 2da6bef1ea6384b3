package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"AutoViral-Studio/internal/observability/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.status = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// recoverPanics 是请求级的错误边界：处理器 panic 时返回 500，服务继续运行。
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error("请求处理 panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)
				if !rec.written {
					writeJSON(rec, http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "INTERNAL"})
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// observe 记录请求数与耗时，handler 标签使用路由模式以控制基数。
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			pattern := r.Pattern
			if pattern == "" {
				pattern = "unmatched"
			}
			status := rec.status
			if v := recover(); v != nil {
				metrics.ObserveHTTPRequest(pattern, r.Method, http.StatusInternalServerError, time.Since(started))
				panic(v)
			}
			metrics.ObserveHTTPRequest(pattern, r.Method, status, time.Since(started))
		}()
		next.ServeHTTP(rec, r)
	})
}
