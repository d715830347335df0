package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/closurectl/internal/observability"
	"github.com/danmuck/closurectl/internal/optimizer"
	"github.com/danmuck/closurectl/internal/scratch"
	"github.com/danmuck/closurectl/internal/tools"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// MaxScriptBytes caps request bodies accepted by POST /optimize.
const MaxScriptBytes = 8 << 20

// Optimizer is the pipeline surface the HTTP layer needs.
type Optimizer interface {
	Optimize(ctx context.Context, script string) (optimizer.Result, error)
	Check() error
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	pipeline Optimizer
	router   *gin.Engine
}

type optimizeRequest struct {
	Script string `json:"script"`
}

type optimizeResponse struct {
	Output      string `json:"output"`
	Diagnostics string `json:"diagnostics,omitempty"`
	ExitCode    int32  `json:"exit_code"`
	Artifact    string `json:"artifact"`
	InputDigest string `json:"input_digest"`
	InputBytes  int    `json:"input_bytes"`
	OutputBytes int    `json:"output_bytes"`
	DurationMS  int64  `json:"duration_ms"`
}

func New(id, addr string, corsOrigins []string, pipeline Optimizer) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		pipeline: pipeline,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve blocks until ctx is canceled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("id", s.ID).Str("addr", s.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		if err := s.pipeline.Check(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":   false,
				"error":   err.Error(),
				"service": s.ID,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/optimize", s.handleOptimize)
}

func (s *Server) handleOptimize(c *gin.Context) {
	script, err := readScript(c)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	res, err := s.pipeline.Optimize(c.Request.Context(), script)
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, optimizeResponse{
		Output:      res.Output,
		Diagnostics: res.Diagnostics,
		ExitCode:    res.ExitCode,
		Artifact:    res.Artifact,
		InputDigest: res.InputDigest,
		InputBytes:  res.InputBytes,
		OutputBytes: res.OutputBytes,
		DurationMS:  res.Duration.Milliseconds(),
	})
}

var errEmptyScript = errors.New("empty script")

func readScript(c *gin.Context) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxScriptBytes))
	if err != nil {
		return "", err
	}
	script := string(body)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req optimizeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", err
		}
		script = req.Script
	}
	if strings.TrimSpace(script) == "" {
		return "", errEmptyScript
	}
	return script, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tools.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, tools.ErrSpawn), errors.Is(err, optimizer.ErrToolFailure):
		return http.StatusBadGateway
	case errors.Is(err, scratch.ErrWrite):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
