// Package auth implements API key authentication for registered instances.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/repository"
	"errorshare/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// HeaderAPIKey is the header instances authenticate with.
const HeaderAPIKey = "X-API-Key"

// instanceContextKey is the echo context key the middleware stores the
// authenticated instance under.
const instanceContextKey = "auth.instance"

// Auth resolves API keys to registered instances.
type Auth struct {
	registry repository.Registry
	logger   Logger
}

// New creates the auth layer over the instance registry.
func New(registry repository.Registry, logger Logger) *Auth {
	return &Auth{registry: registry, logger: logger}
}

// RequireAPIKey is echo middleware that rejects requests without a valid key
// belonging to an active instance. The instance is attached to the request
// context for handlers.
func (a *Auth) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(HeaderAPIKey)
		if key == "" {
			return echo.NewHTTPError(401, "missing API key")
		}

		instance, err := a.registry.GetInstanceByAPIKey(c.Request().Context(), key)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				a.logger.Debug("rejected unknown API key")
				return echo.NewHTTPError(401, "invalid API key")
			}
			return err
		}
		if !instance.IsActive {
			a.logger.Info("rejected deactivated instance", "instance_id", instance.ID)
			return echo.NewHTTPError(401, "instance is deactivated")
		}

		c.Set(instanceContextKey, instance)
		return next(c)
	}
}

// InstanceFromContext returns the authenticated instance, or nil on
// unauthenticated routes.
func InstanceFromContext(c echo.Context) *models.Instance {
	instance, _ := c.Get(instanceContextKey).(*models.Instance)
	return instance
}

// GenerateAPIKey produces an opaque 256-bit key for a new instance.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
