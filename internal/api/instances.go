package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/auth"
	"errorshare/backend/pkg/models"
)

func (s *Server) handleRegisterInstance(c echo.Context) error {
	var req registerInstanceRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	if strings.TrimSpace(req.InstanceName) == "" {
		return s.fail(c, apperrors.Validation("instance_name", "required"))
	}
	if strings.TrimSpace(req.IDEVersion) == "" {
		return s.fail(c, apperrors.Validation("ide_version", "required"))
	}

	key, err := auth.GenerateAPIKey()
	if err != nil {
		return s.fail(c, err)
	}

	instance := &models.Instance{
		Name:         req.InstanceName,
		IDEVersion:   req.IDEVersion,
		InstanceURL:  req.InstanceURL,
		APIKey:       key,
		Capabilities: req.Capabilities,
	}
	if err := s.registry.RegisterInstance(c.Request().Context(), instance); err != nil {
		return s.fail(c, err)
	}

	s.log.Info("instance registered", "instance_id", instance.ID, "name", instance.Name)

	// The key is returned exactly once, here.
	return c.JSON(http.StatusCreated, registerInstanceResponse{
		InstanceID:   instance.ID,
		APIKey:       key,
		RegisteredAt: instance.RegisteredAt,
	})
}

func (s *Server) handleGetInstance(c echo.Context) error {
	instance, err := s.registry.GetInstance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, instance)
}

func (s *Server) handleDeactivateInstance(c echo.Context) error {
	if err := s.registry.DeactivateInstance(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleReportSync records a client-reported sync cycle in the audit trail.
func (s *Server) handleReportSync(c echo.Context) error {
	var h models.SyncHistory
	if err := c.Bind(&h); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	if h.Status != models.SyncSuccess && h.Status != models.SyncPartial && h.Status != models.SyncFailed {
		return s.fail(c, apperrors.Validation("status", "must be success, partial or failed"))
	}

	if instance := auth.InstanceFromContext(c); instance != nil {
		h.InstanceID = instance.ID
	}
	if h.InstanceID == "" {
		return s.fail(c, apperrors.Validation("instance_id", "required"))
	}

	if err := s.registry.RecordSyncHistory(c.Request().Context(), &h); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, h)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.registry.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
