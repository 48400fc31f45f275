package api

import (
	"time"

	"errorshare/backend/pkg/models"
)

// Request and response shapes. Field names are part of the wire contract and
// must not drift from the documented API.

type registerInstanceRequest struct {
	InstanceName string   `json:"instance_name"`
	IDEVersion   string   `json:"ide_version"`
	InstanceURL  *string  `json:"instance_url,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type registerInstanceResponse struct {
	InstanceID   string    `json:"instance_id"`
	APIKey       string    `json:"api_key"`
	RegisteredAt time.Time `json:"registered_at"`
}

type submitPatternRequest struct {
	ErrorSignature string                  `json:"error_signature"`
	ErrorCategory  string                  `json:"error_category"`
	Language       string                  `json:"language"`
	Framework      *string                 `json:"framework,omitempty"`
	Description    string                  `json:"description"`
	Tags           []string                `json:"tags,omitempty"`
	Anonymized     bool                    `json:"anonymized"`
	Severity       models.Severity         `json:"severity,omitempty"`
	Metadata       *models.PatternMetadata `json:"metadata,omitempty"`
}

type similarPatternSummary struct {
	PatternID       string                `json:"pattern_id"`
	ErrorSignature  string                `json:"error_signature"`
	SimilarityScore float64               `json:"similarity_score"`
	SimilarityType  models.SimilarityType `json:"similarity_type"`
}

type submitPatternResponse struct {
	PatternID       string                  `json:"pattern_id"`
	OccurrenceCount int64                   `json:"occurrence_count"`
	SimilarPatterns []similarPatternSummary `json:"similar_patterns"`
}

type submitSolutionRequest struct {
	PatternSignature    string   `json:"pattern_signature"`
	SolutionTitle       string   `json:"solution_title"`
	SolutionDescription string   `json:"solution_description"`
	CodeSnippet         *string  `json:"code_snippet,omitempty"`
	SuccessRate         *float64 `json:"success_rate,omitempty"`
	AppliesTo           []string `json:"applies_to,omitempty"`
	Verified            bool     `json:"verified,omitempty"`
}

type submitSolutionResponse struct {
	SolutionID           string             `json:"solution_id"`
	LinkedPatterns       []string           `json:"linked_patterns"`
	ConfidenceScore      float64            `json:"confidence_score"`
	AlternativeSolutions []*models.Solution `json:"alternative_solutions"`
}

type listPatternsResponse struct {
	Patterns []*models.Pattern `json:"patterns"`
	Total    int64             `json:"total"`
}

type solutionSummary struct {
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

type patternSolutionsResponse struct {
	Pattern   *models.Pattern   `json:"pattern"`
	Solutions []solutionSummary `json:"solutions"`
}

type feedbackRequest struct {
	InstanceID            string  `json:"instance_id"`
	WasHelpful            bool    `json:"was_helpful"`
	ResolutionTimeMinutes *int    `json:"resolution_time_minutes,omitempty"`
	Comment               *string `json:"comment,omitempty"`
}

type feedbackResponse struct {
	FeedbackID      string  `json:"feedback_id"`
	SolutionUpdated bool    `json:"solution_updated"`
	NewSuccessRate  float64 `json:"new_success_rate"`
}

type similarPatternsResponse struct {
	Patterns []*models.RelatedPattern `json:"patterns"`
}

type relatedTechnologiesResponse struct {
	Technology string                      `json:"technology"`
	Related    []*models.RelatedTechnology `json:"related"`
}

type portabilityTarget struct {
	From       string                      `json:"from"`
	Via        models.TechRelationshipType `json:"via"`
	Technology *models.Technology          `json:"technology"`
}

type solutionPortabilityResponse struct {
	SolutionID string              `json:"solution_id"`
	AppliesTo  []string            `json:"applies_to"`
	Targets    []portabilityTarget `json:"targets"`
}

type relationshipRequest struct {
	FromPatternID    string                  `json:"from_pattern_id"`
	ToPatternID      string                  `json:"to_pattern_id"`
	RelationshipType models.RelationshipType `json:"relationship_type"`
	SimilarityScore  float64                 `json:"similarity_score"`
	Strength         float64                 `json:"strength"`
}
