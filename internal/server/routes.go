package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the traceability endpoints under rg.
//
//	GET  /projects/:project/matrix
//	GET  /projects/:project/requirements/:id
//	POST /projects/:project/impact
//	GET  /projects/:project/validation
//	GET  /projects/:project/gaps
//	GET  /projects/:project/export?format=csv|json|html|markdown
//	GET  /projects/:project/compare/:head
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	projects := rg.Group("/projects/:project")
	{
		projects.GET("/matrix", h.HandleMatrix)
		projects.GET("/requirements/:id", h.HandleRequirement)
		projects.POST("/impact", h.HandleImpact)
		projects.GET("/validation", h.HandleValidation)
		projects.GET("/gaps", h.HandleGaps)
		projects.GET("/export", h.HandleExport)
		projects.GET("/compare/:head", h.HandleCompare)
	}
}

// NewRouter builds the full HTTP handler: the /v1 API plus /healthz and
// the Prometheus /metrics endpoint.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1"), h)
	return router
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.Writer.Header().Get("X-Request-ID"),
		)
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to ten seconds.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
