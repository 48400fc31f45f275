package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/logging"
	"errorshare/backend/internal/repository"
	"errorshare/backend/pkg/models"
)

// keyOnlyRegistry implements the one registry method the middleware uses.
type keyOnlyRegistry struct {
	repository.Registry
	instances map[string]*models.Instance
}

func (r *keyOnlyRegistry) GetInstanceByAPIKey(ctx context.Context, key string) (*models.Instance, error) {
	instance, ok := r.instances[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return instance, nil
}

func invoke(t *testing.T, a *Auth, key string) (*httptest.ResponseRecorder, *models.Instance) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *models.Instance
	handler := a.RequireAPIKey(func(c echo.Context) error {
		seen = InstanceFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, seen
}

func TestRequireAPIKey(t *testing.T) {
	registry := &keyOnlyRegistry{instances: map[string]*models.Instance{
		"good-key":     {ID: "inst-1", Name: "workstation", IsActive: true},
		"inactive-key": {ID: "inst-2", Name: "retired", IsActive: false},
	}}
	a := New(registry, logging.NewNop())

	t.Run("valid key attaches instance", func(t *testing.T) {
		rec, seen := invoke(t, a, "good-key")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "inst-1", seen.ID)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		rec, _ := invoke(t, a, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		rec, _ := invoke(t, a, "no-such-key")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deactivated instance rejected", func(t *testing.T) {
		rec, _ := invoke(t, a, "inactive-key")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	require.NoError(t, err)
	b, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
