// Package sync pushes locally captured knowledge to the central registry and
// pulls back community solutions, tolerating registry downtime.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/pkg/models"
)

// RegistryClient is the slice of the registry API the sync engine needs.
type RegistryClient interface {
	PushPattern(ctx context.Context, p *models.Pattern) error
	PushSolution(ctx context.Context, s *models.Solution) error
	PushFeedback(ctx context.Context, f *models.Feedback) error
	PullSolutions(ctx context.Context, signature string) ([]*models.Solution, error)
	ReportSync(ctx context.Context, h *models.SyncHistory) error
}

// HTTPClient talks to the registry's REST API, authenticating with the
// instance's API key.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a registry client. timeout bounds each request.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// RegisterRequest is the registration payload for a new instance.
type RegisterRequest struct {
	InstanceName string   `json:"instance_name"`
	IDEVersion   string   `json:"ide_version"`
	InstanceURL  *string  `json:"instance_url,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// RegisterResponse carries the issued credentials. The API key is returned
// only at registration.
type RegisterResponse struct {
	InstanceID   string    `json:"instance_id"`
	APIKey       string    `json:"api_key"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Register creates a new instance record in the registry. The only endpoint
// that needs no API key.
func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/instances", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushPattern submits one pattern occurrence.
func (c *HTTPClient) PushPattern(ctx context.Context, p *models.Pattern) error {
	return c.do(ctx, http.MethodPost, "/api/v1/patterns", p, nil)
}

// pushSolutionRequest is the solution submission wire shape. The endpoint
// names the title and description fields differently from the model.
type pushSolutionRequest struct {
	PatternSignature    string   `json:"pattern_signature"`
	SolutionTitle       string   `json:"solution_title"`
	SolutionDescription string   `json:"solution_description"`
	CodeSnippet         *string  `json:"code_snippet,omitempty"`
	AppliesTo           []string `json:"applies_to,omitempty"`
	Verified            bool     `json:"verified,omitempty"`
}

// PushSolution submits one locally authored solution.
func (c *HTTPClient) PushSolution(ctx context.Context, s *models.Solution) error {
	req := pushSolutionRequest{
		PatternSignature:    s.PatternSignature,
		SolutionTitle:       s.Title,
		SolutionDescription: s.Description,
		CodeSnippet:         s.CodeSnippet,
		AppliesTo:           s.AppliesTo,
		Verified:            s.Verified,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/solutions", req, nil)
}

// PushFeedback submits one feedback vote.
func (c *HTTPClient) PushFeedback(ctx context.Context, f *models.Feedback) error {
	return c.do(ctx, http.MethodPost, "/api/v1/feedback", f, nil)
}

// pulledSolution is one entry of the solution listing endpoint, which returns
// summaries keyed by solution_id rather than full solution records.
type pulledSolution struct {
	SolutionID     string  `json:"solution_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	CodeSnippet    *string `json:"code_snippet,omitempty"`
	SuccessRate    float64 `json:"success_rate"`
	Verified       bool    `json:"verified"`
	Votes          int64   `json:"votes"`
	HelpfulCount   int64   `json:"helpful_count"`
	UnhelpfulCount int64   `json:"unhelpful_count"`
}

type pullSolutionsResponse struct {
	Solutions []pulledSolution `json:"solutions"`
}

// PullSolutions fetches the ranked community solutions for a signature.
func (c *HTTPClient) PullSolutions(ctx context.Context, signature string) ([]*models.Solution, error) {
	var resp pullSolutionsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/patterns/"+signature+"/solutions", nil, &resp)
	if err != nil {
		return nil, err
	}

	solutions := make([]*models.Solution, 0, len(resp.Solutions))
	for _, ps := range resp.Solutions {
		solutions = append(solutions, &models.Solution{
			ID:               ps.SolutionID,
			PatternSignature: signature,
			Title:            ps.Title,
			Description:      ps.Description,
			CodeSnippet:      ps.CodeSnippet,
			SuccessRate:      ps.SuccessRate,
			Verified:         ps.Verified,
			Votes:            ps.Votes,
			HelpfulCount:     ps.HelpfulCount,
			UnhelpfulCount:   ps.UnhelpfulCount,
		})
	}
	return solutions, nil
}

// ReportSync records the outcome of a completed cycle in the registry's audit
// trail.
func (c *HTTPClient) ReportSync(ctx context.Context, h *models.SyncHistory) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sync", h, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	default:
		// 429 and 5xx messages stay retryable by pattern.
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nil
}
