package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"repo-triage/internal/common"
	"repo-triage/internal/domain"
	"repo-triage/internal/service"
)

const maxBodyBytes = 64 << 10

// Triager HTTP 层需要的排查能力，由 service.TriageService 实现
type Triager interface {
	Triage(ctx context.Context, rawURL string, opts ...service.TriageOption) (domain.Outcome, error)
}

// Server 排查服务的 HTTP 入口
type Server struct {
	triager Triager
	limiter *IPLimiter
	logger  *slog.Logger
}

// New 创建 HTTP 入口，limiter 为 nil 时不限流
func New(triager Triager, limiter *IPLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{triager: triager, limiter: limiter, logger: logger}
}

// Routes 返回挂好全部路由的 chi 路由器
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limited := r.With(s.rateLimit)
	limited.Get("/api/triage", s.handleTriageQuery)
	limited.Post("/api/triage", s.handleTriageBody)
	return r
}

// NewHTTPServer 创建带超时设置的 http.Server
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) handleTriageQuery(w http.ResponseWriter, r *http.Request) {
	s.triage(w, r, r.URL.Query().Get("url"))
}

type triageRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleTriageBody(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.ErrorPayload{Error: "invalid request body"})
		return
	}
	s.triage(w, r, req.URL)
}

func (s *Server) triage(w http.ResponseWriter, r *http.Request, rawURL string) {
	if strings.TrimSpace(rawURL) == "" {
		writeJSON(w, http.StatusBadRequest, domain.ErrorPayload{URL: rawURL, Error: "url is required"})
		return
	}

	outcome, err := s.triager.Triage(r.Context(), rawURL)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("triage failed", "url", rawURL, "code", common.CodeOf(err), "error", err)
		}
		writeJSON(w, status, service.ErrorResult(rawURL, err))
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// StatusFor 把错误码映射为 HTTP 状态码
func StatusFor(err error) int {
	switch common.CodeOf(err) {
	case common.ErrCodeInvalidInput, common.ErrCodeUnsupportedHost:
		return http.StatusBadRequest
	case common.ErrCodeNotFound:
		return http.StatusNotFound
	case common.ErrCodeUpstream, common.ErrCodeInspection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, domain.ErrorPayload{URL: r.URL.Query().Get("url"), Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"ip", clientIP(r),
			"status_code", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
