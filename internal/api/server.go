// Package api exposes the registry's REST endpoints.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/auth"
	"errorshare/backend/internal/config"
	"errorshare/backend/internal/logging"
	"errorshare/backend/internal/ranking"
	"errorshare/backend/internal/repository"
	"errorshare/backend/internal/similarity"
)

// Server holds the handler dependencies for the registry REST API.
type Server struct {
	registry repository.Registry
	matcher  *similarity.Matcher
	ranker   ranking.Ranker
	cfg      *config.Config
	log      *logging.Logger
}

// NewServer creates the API server. The matcher reads candidates from the
// same registry the handlers write to.
func NewServer(registry repository.Registry, cfg *config.Config, log *logging.Logger) *Server {
	scorer := similarity.Scorer{
		CategoryBonus:  cfg.Similarity.CategoryBonus,
		LanguageBonus:  cfg.Similarity.LanguageBonus,
		FrameworkBonus: cfg.Similarity.FrameworkBonus,
	}
	return &Server{
		registry: registry,
		matcher:  similarity.NewMatcher(registry, scorer, cfg.Similarity.MinScore, cfg.Similarity.CandidatePool),
		ranker:   ranking.Ranker{PriorWeight: cfg.Ranking.PriorWeight},
		cfg:      cfg,
		log:      log,
	}
}

// RegisterRoutes mounts every endpoint on e. Registration, health and docs
// are open; everything else requires an instance API key.
func (s *Server) RegisterRoutes(e *echo.Echo, authz *auth.Auth) {
	e.GET("/health", s.handleHealth)
	e.POST("/api/v1/instances", s.handleRegisterInstance)

	g := e.Group("/api/v1")
	g.Use(authz.RequireAPIKey)

	g.POST("/patterns", s.handleSubmitPattern)
	g.GET("/patterns", s.handleListPatterns)
	g.GET("/patterns/:id", s.handleGetPattern)
	g.GET("/patterns/:id/solutions", s.handlePatternSolutions)
	g.POST("/solutions", s.handleSubmitSolution)
	g.POST("/solutions/:id/feedback", s.handleFeedback)
	g.POST("/feedback", s.handleFeedbackBySolutionID)
	g.POST("/relationships", s.handleCreateRelationship)
	g.GET("/graph/patterns/:id/similar", s.handleSimilarPatterns)
	g.GET("/graph/technologies/:slug/related", s.handleRelatedTechnologies)
	g.GET("/graph/solutions/:id/portability", s.handleSolutionPortability)
	g.GET("/instances/:id", s.handleGetInstance)
	g.DELETE("/instances/:id", s.handleDeactivateInstance)
	g.POST("/sync", s.handleReportSync)
	g.GET("/stats", s.handleStats)
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.registry.Ping(c.Request().Context()); err != nil {
		return writeError(c, http.StatusServiceUnavailable, "Registry Unavailable", err.Error())
	}
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "errorshare-registry",
		Version:   "1.0.0",
	})
}

// ProblemDetails is an RFC 7807 problem response.
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

func writeError(c echo.Context, status int, title, detail string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// fail maps the error taxonomy onto problem responses. Anything unmapped is a
// 500 and gets logged with its cause.
func (s *Server) fail(c echo.Context, err error) error {
	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) {
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		return c.JSON(http.StatusBadRequest, ProblemDetails{
			Type:   "about:blank",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: vErr.Reason,
			Field:  vErr.Field,
		})
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return writeError(c, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, apperrors.ErrUnknownPattern):
		return writeError(c, http.StatusNotFound, "Unknown Pattern", err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		return writeError(c, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return writeError(c, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, apperrors.ErrRateLimited):
		return writeError(c, http.StatusTooManyRequests, "Rate Limited", err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return writeError(c, http.StatusServiceUnavailable, "Unavailable", err.Error())
	}

	s.log.Error("request failed", "path", c.Path(), "error", err)
	return writeError(c, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
}
