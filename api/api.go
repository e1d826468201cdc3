// Package api serves the watch-list over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/shelfwatch/config"
	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/normalize"
	"github.com/pevans/shelfwatch/tracking"
	"github.com/pevans/shelfwatch/watch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Server represents the HTTP API server for the watch-list.
type Server struct {
	service  *watch.Service
	gatherer prometheus.Gatherer
	config   *config.Config
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithConfig exposes cfg, redacted, at /api/v1/config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.config = cfg }
}

// NewServer creates a new API server.
func NewServer(service *watch.Service, opts ...Option) *Server {
	s := &Server{
		service:  service,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.Default()

	api := router.Group("/api/v1")
	api.GET("/tracked", s.HandleListTracked)
	api.POST("/tracked", s.HandleTrack)
	api.GET("/tracked/:id", s.HandleGetTracked)
	api.GET("/tracked/:id/history", s.HandleGetHistory)
	api.POST("/tracked/:id/check", s.HandleCheck)
	api.DELETE("/tracked/:id", s.HandleUntrack)
	api.GET("/config", s.HandleGetConfig)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return router
}

// TrackedSummary is one row of GET /api/v1/tracked.
type TrackedSummary struct {
	Identifier   string           `json:"identifier"`
	Title        string           `json:"title"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	Availability string           `json:"availability"`
	ProductURL   *string          `json:"product_url"`
	Samples      int              `json:"samples"`
	TrackedAt    string           `json:"tracked_at"`
}

// ListTrackedResponse represents the response for GET /api/v1/tracked.
type ListTrackedResponse struct {
	Items []TrackedSummary `json:"items"`
	Total int              `json:"total"`
}

// HistoryResponse represents the response for GET
// /api/v1/tracked/{id}/history.
type HistoryResponse struct {
	Identifier   string                `json:"identifier"`
	PriceHistory []tracking.PricePoint `json:"price_history"`
}

// TrackRequest represents the request for POST /api/v1/tracked. At least one
// of the fields must be set.
type TrackRequest struct {
	Identifier string `json:"identifier,omitempty"`
	URL        string `json:"url,omitempty"`
}

// CheckResponse represents the response for POST
// /api/v1/tracked/{id}/check.
type CheckResponse struct {
	Changed bool               `json:"changed"`
	Event   *watch.ChangeEvent `json:"event,omitempty"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *Server) handleError(c *gin.Context, err error) {
	var invalid *tracking.InvalidRecordError
	var unavailable *docsource.UnavailableError

	switch {
	case errors.Is(err, tracking.ErrNotTracked):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	case errors.Is(err, watch.ErrItemNotFound):
		c.JSON(http.StatusUnprocessableEntity, errorResponse("item_not_found", err.Error()))
	case errors.As(err, &unavailable):
		c.JSON(http.StatusBadGateway, errorResponse("unavailable", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// trackedID validates the :id path parameter.
func trackedID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !normalize.IsIdentifier(id) {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid identifier"))
		return "", false
	}
	return id, true
}

// HandleListTracked handles GET /api/v1/tracked.
func (s *Server) HandleListTracked(c *gin.Context) {
	items, err := s.service.List(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}

	summaries := make([]TrackedSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, TrackedSummary{
			Identifier:   item.Identifier,
			Title:        item.Snapshot.DisplayTitle(),
			CurrentPrice: item.CurrentPrice(),
			Availability: item.Snapshot.Availability,
			ProductURL:   item.Snapshot.ProductURL,
			Samples:      len(item.PriceHistory),
			TrackedAt:    item.TrackedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, ListTrackedResponse{
		Items: summaries,
		Total: len(summaries),
	})
}

// HandleGetTracked handles GET /api/v1/tracked/{id}.
func (s *Server) HandleGetTracked(c *gin.Context) {
	id, ok := trackedID(c)
	if !ok {
		return
	}

	item, err := s.service.Get(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if item == nil {
		s.handleError(c, tracking.ErrNotTracked)
		return
	}

	c.JSON(http.StatusOK, item)
}

// HandleGetHistory handles GET /api/v1/tracked/{id}/history.
func (s *Server) HandleGetHistory(c *gin.Context) {
	id, ok := trackedID(c)
	if !ok {
		return
	}

	item, err := s.service.Get(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if item == nil {
		s.handleError(c, tracking.ErrNotTracked)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Identifier:   item.Identifier,
		PriceHistory: item.PriceHistory,
	})
}

// HandleTrack handles POST /api/v1/tracked.
func (s *Server) HandleTrack(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}
	if req.Identifier == "" && req.URL == "" {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "identifier or url is required"))
		return
	}
	if req.Identifier != "" && !normalize.IsIdentifier(req.Identifier) {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", "Invalid identifier"))
		return
	}

	item, created, err := s.service.TrackTarget(c.Request.Context(), docsource.Target{
		Identifier: req.Identifier,
		URL:        req.URL,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, item)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// HandleCheck handles POST /api/v1/tracked/{id}/check.
func (s *Server) HandleCheck(c *gin.Context) {
	id, ok := trackedID(c)
	if !ok {
		return
	}

	event, err := s.service.Scheduler().SampleNow(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Changed: event != nil,
		Event:   event,
	})
}

// HandleUntrack handles DELETE /api/v1/tracked/{id}.
func (s *Server) HandleUntrack(c *gin.Context) {
	id, ok := trackedID(c)
	if !ok {
		return
	}

	removed, err := s.service.Untrack(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if !removed {
		s.handleError(c, tracking.ErrNotTracked)
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleGetConfig handles GET /api/v1/config.
func (s *Server) HandleGetConfig(c *gin.Context) {
	if s.config == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "No configuration loaded"))
		return
	}
	c.JSON(http.StatusOK, s.config.Redacted())
}
