// Package models defines the domain models shared by the registry server and
// the instance agent.
package models

import "time"

// Severity classifies how disruptive an error pattern is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is one of the accepted severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RelationshipType is the type of a directed edge between two patterns.
type RelationshipType string

const (
	RelationshipSimilar     RelationshipType = "similar"
	RelationshipLeadsTo     RelationshipType = "leads_to"
	RelationshipCausedBy    RelationshipType = "caused_by"
	RelationshipSemantic    RelationshipType = "semantic"
	RelationshipAlternative RelationshipType = "alternative"
)

// ValidRelationshipType reports whether t is a known pattern edge type.
func ValidRelationshipType(t RelationshipType) bool {
	switch t {
	case RelationshipSimilar, RelationshipLeadsTo, RelationshipCausedBy,
		RelationshipSemantic, RelationshipAlternative:
		return true
	}
	return false
}

// SimilarityType distinguishes how a similar pattern was found.
type SimilarityType string

const (
	// SimilarityLexical means the match was computed from text overlap.
	SimilarityLexical SimilarityType = "lexical"
	// SimilaritySemantic means the match came from a curated semantic edge.
	SimilaritySemantic SimilarityType = "semantic"
)

// PatternMetadata holds the optional, explicitly typed extras for a pattern.
type PatternMetadata struct {
	RuntimeVersion string `json:"runtime_version,omitempty"`
	OSFamily       string `json:"os_family,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
	ToolVersion    string `json:"tool_version,omitempty"`
}

// Pattern is a deduplicated error class aggregated across instances.
type Pattern struct {
	ID              string           `json:"id" db:"id"`
	Signature       string           `json:"error_signature" db:"signature"`
	Category        string           `json:"error_category" db:"category"`
	Language        string           `json:"language" db:"language"`
	Framework       *string          `json:"framework,omitempty" db:"framework"`
	Description     string           `json:"description" db:"description"`
	Tags            []string         `json:"tags,omitempty" db:"tags"`
	OccurrenceCount int64            `json:"occurrence_count" db:"occurrence_count"`
	FirstSeen       time.Time        `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time        `json:"last_seen" db:"last_seen"`
	Anonymized      bool             `json:"anonymized" db:"anonymized"`
	Severity        Severity         `json:"severity" db:"severity"`
	Metadata        *PatternMetadata `json:"metadata,omitempty"`
}

// Solution is a proposed fix tied to exactly one pattern.
//
// SuccessRate, HelpfulCount and UnhelpfulCount are derived from the feedback
// set and are rewritten by the registry on every feedback insert; they are
// never settable directly.
type Solution struct {
	ID               string    `json:"solution_id" db:"id"`
	PatternSignature string    `json:"pattern_signature" db:"pattern_signature"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	CodeSnippet      *string   `json:"code_snippet,omitempty" db:"code_snippet"`
	SuccessRate      float64   `json:"success_rate" db:"success_rate"`
	ConfidenceScore  float64   `json:"confidence_score" db:"confidence_score"`
	AppliesTo        []string  `json:"applies_to,omitempty" db:"applies_to"`
	Verified         bool      `json:"verified" db:"verified"`
	Votes            int64     `json:"votes" db:"votes"`
	HelpfulCount     int64     `json:"helpful_count" db:"helpful_count"`
	UnhelpfulCount   int64     `json:"unhelpful_count" db:"unhelpful_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Feedback is one instance's report of whether a solution worked.
// Immutable after creation.
type Feedback struct {
	ID                    string    `json:"feedback_id" db:"id"`
	SolutionID            string    `json:"solution_id" db:"solution_id"`
	InstanceID            string    `json:"instance_id" db:"instance_id"`
	WasHelpful            bool      `json:"was_helpful" db:"was_helpful"`
	ResolutionTimeMinutes *int      `json:"resolution_time_minutes,omitempty" db:"resolution_time_minutes"`
	Comment               *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// PatternRelationship is a directed, typed edge between two patterns.
// Self-loops are rejected and (from, to, type) is unique.
type PatternRelationship struct {
	ID               string           `json:"id" db:"id"`
	FromPatternID    string           `json:"from_pattern_id" db:"from_pattern_id"`
	ToPatternID      string           `json:"to_pattern_id" db:"to_pattern_id"`
	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`
	SimilarityScore  float64          `json:"similarity_score" db:"similarity_score"`
	Strength         float64          `json:"strength" db:"strength"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// RelatedPattern pairs a pattern with the edge or score that linked it to a
// query, so callers can distinguish lexical matches from curated semantic ones.
type RelatedPattern struct {
	Pattern         *Pattern         `json:"pattern"`
	SimilarityScore float64          `json:"similarity_score"`
	SimilarityType  SimilarityType   `json:"similarity_type"`
	RelationshipVia RelationshipType `json:"relationship_via,omitempty"`
}
