package handler

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed openapi/openapi.yaml
var openAPISpec []byte

// LoadOpenAPI parses and validates the embedded API description
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health, metrics and the API description
type SystemHandler struct {
	db      Pinger
	metrics http.Handler
	doc     *openapi3.T
	version string
	logger  *zap.Logger
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db Pinger, metrics http.Handler, doc *openapi3.T, logger *zap.Logger) *SystemHandler {
	version := ""
	if doc != nil && doc.Info != nil {
		version = doc.Info.Version
	}
	return &SystemHandler{
		db:      db,
		metrics: metrics,
		doc:     doc,
		version: version,
		logger:  logger,
	}
}

// GetHealth checks database connectivity
func (h *SystemHandler) GetHealth(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed: database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"service":  "adherence-engine",
		"version":  h.version,
	})
}

// GetMetrics exposes the prometheus registry
func (h *SystemHandler) GetMetrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// GetOpenAPI serves the API description as JSON
func (h *SystemHandler) GetOpenAPI(c *gin.Context) {
	c.JSON(http.StatusOK, h.doc)
}
