// Package server exposes the solver over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"craft-optimizer/internal/config"
	"craft-optimizer/internal/request"
	"craft-optimizer/internal/rotation"
	"craft-optimizer/internal/search"
	"craft-optimizer/internal/sim"
	"craft-optimizer/internal/store"
)

// maxBodyBytes bounds request bodies and stream messages.
const maxBodyBytes = 1 << 16

// Server answers solve requests. The cache is optional.
type Server struct {
	cfg     config.Config
	cache   *store.Cache
	log     *slog.Logger
	limiter *rate.Limiter
}

// New builds a server. cache may be nil.
func New(cfg config.Config, cache *store.Cache, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, cache: cache, log: log}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return s
}

// Router returns the route table.
//
//	POST /v1/solve         solve one request and answer with the result
//	GET  /v1/solve/stream  WebSocket; solve with live progress and suggestions
//	GET  /metrics          Prometheus metrics
//	GET  /healthz          liveness
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("craft-optimizer"), s.logRequests())

	v1 := router.Group("/v1", s.rateLimit())
	v1.POST("/solve", s.handleSolve)
	v1.GET("/solve/stream", s.handleStream)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many solve requests"})
			return
		}
		c.Next()
	}
}

// ── Solve ───────────────────────────────────────────────────────────

// SolveResponse is the body of a finished solve.
type SolveResponse struct {
	ID        string   `json:"id,omitempty"`
	Actions   []string `json:"actions"`
	Quality   uint32   `json:"quality"`
	Progress  uint32   `json:"progress"`
	Steps     int      `json:"steps"`
	Nodes     uint64   `json:"nodes"`
	Optimal   bool     `json:"optimal"`
	Cancelled bool     `json:"cancelled"`
	Cached    bool     `json:"cached"`
	ElapsedMS int64    `json:"elapsed_ms"`
	Macros    []string `json:"macros,omitempty"`
}

func newSolveResponse(actions []sim.Action, table *sim.ActionTable) SolveResponse {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return SolveResponse{
		Actions: names,
		Steps:   len(actions),
		Macros:  rotation.Macros(actions, table, rotation.MacroOptions{Notify: true}),
	}
}

func (s *Server) handleSolve(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	args, err := request.Parse(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.Solve(c.Request.Context(), &args, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Solve answers args from the cache when an optimal rotation is stored, and
// otherwise runs the search and stores an optimal result.
func (s *Server) Solve(ctx context.Context, args *request.Args, obs search.Observer) (SolveResponse, error) {
	settings := args.Settings()
	table := settings.ActionTable()
	key := args.Fingerprint(s.cfg.MaxSteps)

	if s.cache != nil {
		rec, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("cache lookup failed", "error", err)
		} else if ok && rec.Optimal {
			resp := newSolveResponse(rec.Actions, table)
			resp.Quality, resp.Progress = rec.Quality, rec.Progress
			resp.Nodes, resp.Optimal, resp.Cached = rec.Nodes, true, true
			return resp, nil
		}
	}

	res, err := search.Solve(ctx, args.SearchRequest(), obs,
		search.WithConfig(s.cfg), search.WithLogger(s.log))
	if err != nil {
		return SolveResponse{}, err
	}
	resp := newSolveResponse(res.Actions, table)
	resp.ID = res.ID
	resp.Quality, resp.Progress = res.Quality, res.Progress
	resp.Nodes, resp.Optimal, resp.Cancelled = res.Nodes, res.Optimal, res.Cancelled
	resp.ElapsedMS = res.Elapsed.Milliseconds()

	if s.cache != nil && res.Optimal {
		err := s.cache.Put(ctx, key, store.Record{
			Actions:  res.Actions,
			Quality:  res.Quality,
			Progress: res.Progress,
			Optimal:  true,
			Nodes:    res.Nodes,
		})
		if err != nil {
			s.log.Warn("cache store failed", "error", err)
		}
	}
	return resp, nil
}
