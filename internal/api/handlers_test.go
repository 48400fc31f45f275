package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"errorshare/backend/internal/auth"
	"errorshare/backend/internal/config"
	"errorshare/backend/internal/logging"
	"errorshare/backend/pkg/models"
)

func technology(slug, name, kind string) *models.Technology {
	return &models.Technology{Slug: slug, Name: name, Kind: models.TechnologyKind(kind)}
}

func techEdge(from, to, relType string) *models.TechnologyRelationship {
	return &models.TechnologyRelationship{
		FromSlug:         from,
		ToSlug:           to,
		RelationshipType: models.TechRelationshipType(relType),
	}
}

type testAPI struct {
	e      *echo.Echo
	apiKey string
}

func newTestAPI(t *testing.T) (*testAPI, *fakeRegistry) {
	t.Helper()

	registry := newFakeRegistry()
	cfg := &config.Config{
		Similarity: config.SimilarityConfig{
			MinScore:       0.30,
			CategoryBonus:  0.15,
			LanguageBonus:  0.05,
			FrameworkBonus: 0.05,
			DefaultLimit:   10,
			CandidatePool:  500,
		},
		Ranking: config.RankingConfig{PriorWeight: 2.0},
	}

	log := logging.NewNop()
	server := NewServer(registry, cfg, log)

	e := echo.New()
	server.RegisterRoutes(e, auth.New(registry, log))

	api := &testAPI{e: e}
	resp := api.do(t, http.MethodPost, "/api/v1/instances", map[string]any{
		"instance_name": "test-workstation",
		"ide_version":   "1.0.0",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var reg struct {
		InstanceID string `json:"instance_id"`
		APIKey     string `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.APIKey)
	api.apiKey = reg.APIKey
	return api, registry
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if a.apiKey != "" {
		req.Header.Set(auth.HeaderAPIKey, a.apiKey)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func patternBody(signature string) map[string]any {
	return map[string]any{
		"error_signature": signature,
		"error_category":  "import_error",
		"language":        "python",
		"description":     "no module named requests",
		"anonymized":      true,
	}
}

func TestSubmitPatternTwiceSameID(t *testing.T) {
	api, _ := newTestAPI(t)
	sig := "import_error:module_named_requests:0a1b2c3d4e5f"

	first := api.do(t, http.MethodPost, "/api/v1/patterns", patternBody(sig))
	require.Equal(t, http.StatusCreated, first.Code)
	var r1 submitPatternResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &r1))
	assert.Equal(t, int64(1), r1.OccurrenceCount)

	second := api.do(t, http.MethodPost, "/api/v1/patterns", patternBody(sig))
	require.Equal(t, http.StatusCreated, second.Code)
	var r2 submitPatternResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &r2))
	assert.Equal(t, r1.PatternID, r2.PatternID)
	assert.Equal(t, int64(2), r2.OccurrenceCount)
}

func TestSubmitPatternRejectsNonAnonymized(t *testing.T) {
	api, _ := newTestAPI(t)
	body := patternBody("import_error:module:aaa")
	body["anonymized"] = false

	resp := api.do(t, http.MethodPost, "/api/v1/patterns", body)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &problem))
	assert.Equal(t, "anonymized", problem.Field)
}

func TestSubmitPatternValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		name  string
		strip string
	}{
		{"missing signature", "error_signature"},
		{"missing category", "error_category"},
		{"missing language", "language"},
		{"missing description", "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := patternBody("import_error:x:bbb")
			delete(body, tt.strip)
			resp := api.do(t, http.MethodPost, "/api/v1/patterns", body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)

			var problem ProblemDetails
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &problem))
			assert.Equal(t, tt.strip, problem.Field)
		})
	}
}

func TestRequestsWithoutKeyRejected(t *testing.T) {
	api, _ := newTestAPI(t)
	api.apiKey = ""
	resp := api.do(t, http.MethodPost, "/api/v1/patterns", patternBody("import_error:x:ccc"))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSolutionForUnknownPatternIs404(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.do(t, http.MethodPost, "/api/v1/solutions", map[string]any{
		"pattern_signature":    "no:such:signature",
		"solution_title":       "x",
		"solution_description": "y",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFeedbackLifecycle(t *testing.T) {
	api, _ := newTestAPI(t)
	sig := "import_error:module_named_requests:feedback01"
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/patterns", patternBody(sig)).Code)

	solResp := api.do(t, http.MethodPost, "/api/v1/solutions", map[string]any{
		"pattern_signature":    sig,
		"solution_title":       "pip install requests",
		"solution_description": "install the missing package",
		"applies_to":           []string{"python"},
	})
	require.Equal(t, http.StatusCreated, solResp.Code)
	var sol submitSolutionResponse
	require.NoError(t, json.Unmarshal(solResp.Body.Bytes(), &sol))

	for _, helpful := range []bool{true, true, true, false} {
		resp := api.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/solutions/%s/feedback", sol.SolutionID),
			map[string]any{"was_helpful": helpful})
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	listResp := api.do(t, http.MethodGet, "/api/v1/patterns/"+sig+"/solutions", nil)
	require.Equal(t, http.StatusOK, listResp.Code)
	var listing patternSolutionsResponse
	require.NoError(t, json.Unmarshal(listResp.Body.Bytes(), &listing))
	require.Len(t, listing.Solutions, 1)

	got := listing.Solutions[0]
	assert.Equal(t, int64(3), got.HelpfulCount)
	assert.Equal(t, int64(3), got.Votes)
	assert.Equal(t, int64(1), got.UnhelpfulCount)
	// Smoothing pulls the raw 0.75 toward the 0.5 prior.
	assert.Greater(t, got.SuccessRate, 0.5)
	assert.Less(t, got.SuccessRate, 0.75)
}

func TestSimilarPatternsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/patterns", map[string]any{
		"error_signature": "import_error:module_named_requests:sim001",
		"error_category":  "import_error",
		"language":        "python",
		"description":     "no module named requests",
		"anonymized":      true,
	}).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/patterns", map[string]any{
		"error_signature": "import_error:module_named_urllib:sim002",
		"error_category":  "import_error",
		"language":        "python",
		"description":     "no module named urllib three",
		"anonymized":      true,
	}).Code)

	resp := api.do(t, http.MethodGet,
		"/api/v1/graph/patterns/import_error:module_named_requests:sim001/similar", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var similar similarPatternsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &similar))
	require.NotEmpty(t, similar.Patterns)
	assert.Equal(t, "import_error:module_named_urllib:sim002", similar.Patterns[0].Pattern.Signature)
	// Never returns the query pattern itself.
	for _, m := range similar.Patterns {
		assert.NotEqual(t, "import_error:module_named_requests:sim001", m.Pattern.Signature)
	}
}

func TestSelfRelationshipRejected(t *testing.T) {
	api, _ := newTestAPI(t)
	sig := "runtime_error:nil:rel001"
	created := api.do(t, http.MethodPost, "/api/v1/patterns", patternBody(sig))
	require.Equal(t, http.StatusCreated, created.Code)
	var r submitPatternResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &r))

	resp := api.do(t, http.MethodPost, "/api/v1/relationships", map[string]any{
		"from_pattern_id":   r.PatternID,
		"to_pattern_id":     r.PatternID,
		"relationship_type": "similar",
		"similarity_score":  0.9,
		"strength":          0.9,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListPatternsFilters(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/patterns", patternBody("import_error:a:lst001")).Code)

	goBody := patternBody("runtime_error:b:lst002")
	goBody["language"] = "go"
	goBody["error_category"] = "runtime_error"
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/patterns", goBody).Code)

	resp := api.do(t, http.MethodGet, "/api/v1/patterns?language=python", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var listing listPatternsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listing))
	assert.Equal(t, int64(1), listing.Total)
	require.Len(t, listing.Patterns, 1)
	assert.Equal(t, "python", listing.Patterns[0].Language)
}

func TestTechnologyGraphEndpoints(t *testing.T) {
	api, registry := newTestAPI(t)
	ctx := t.Context()

	for _, tech := range []struct{ slug, name, kind string }{
		{"python", "Python", "language"},
		{"requests", "Requests", "tool"},
		{"httpx", "HTTPX", "tool"},
	} {
		_, err := registry.UpsertTechnology(ctx, technology(tech.slug, tech.name, tech.kind))
		require.NoError(t, err)
	}
	require.NoError(t, registry.CreateTechnologyRelationship(ctx, techEdge("requests", "httpx", "alternative")))
	require.NoError(t, registry.CreateTechnologyRelationship(ctx, techEdge("requests", "python", "dependency")))

	resp := api.do(t, http.MethodGet, "/api/v1/graph/technologies/requests/related", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var related relatedTechnologiesResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &related))
	assert.Len(t, related.Related, 2)
}

func TestSolutionPortability(t *testing.T) {
	api, registry := newTestAPI(t)
	ctx := t.Context()

	sig := "import_error:module:port001"
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/patterns", patternBody(sig)).Code)

	solResp := api.do(t, http.MethodPost, "/api/v1/solutions", map[string]any{
		"pattern_signature":    sig,
		"solution_title":       "switch client library",
		"solution_description": "use the maintained alternative",
		"applies_to":           []string{"requests"},
	})
	require.Equal(t, http.StatusCreated, solResp.Code)
	var sol submitSolutionResponse
	require.NoError(t, json.Unmarshal(solResp.Body.Bytes(), &sol))

	_, err := registry.UpsertTechnology(ctx, technology("requests", "Requests", "tool"))
	require.NoError(t, err)
	_, err = registry.UpsertTechnology(ctx, technology("httpx", "HTTPX", "tool"))
	require.NoError(t, err)
	require.NoError(t, registry.CreateTechnologyRelationship(ctx, techEdge("requests", "httpx", "alternative")))

	resp := api.do(t, http.MethodGet, "/api/v1/graph/solutions/"+sol.SolutionID+"/portability", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var portability solutionPortabilityResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &portability))
	require.Len(t, portability.Targets, 1)
	assert.Equal(t, "httpx", portability.Targets[0].Technology.Slug)
}

func TestStatsEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	require.Equal(t, http.StatusCreated,
		api.do(t, http.MethodPost, "/api/v1/patterns", patternBody("import_error:a:st001")).Code)

	resp := api.do(t, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["total_patterns"])
	assert.EqualValues(t, 1, stats["total_instances"])
}

func TestDeactivatedInstanceLocksOut(t *testing.T) {
	api, registry := newTestAPI(t)

	var instanceID string
	for id := range registry.instances {
		instanceID = id
	}
	resp := api.do(t, http.MethodDelete, "/api/v1/instances/"+instanceID, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	after := api.do(t, http.MethodPost, "/api/v1/patterns", patternBody("import_error:a:deact"))
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}
