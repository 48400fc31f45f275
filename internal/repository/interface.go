// Package repository holds the central registry storage layer.
package repository

import (
	"context"

	"errorshare/backend/pkg/models"
)

// PatternFilter narrows ListPatterns. Empty fields mean no filter.
type PatternFilter struct {
	Language  string
	Framework string
	Category  string
	Limit     int
	Offset    int
}

// Registry is the authoritative, deduplicated aggregate over all instances.
//
// All mutating operations are per-record atomic: concurrent submissions of
// the same signature never lose an increment and concurrent feedback never
// corrupts a derived success rate. Callers hold no cross-call locks.
type Registry interface {
	Ping(ctx context.Context) error

	// UpsertPattern inserts the pattern or, when the signature already
	// exists, atomically increments its occurrence count and refreshes
	// last_seen. The instance's contribution counter is bumped in the same
	// transaction when instanceID is non-empty.
	UpsertPattern(ctx context.Context, p *models.Pattern, instanceID string) (*models.Pattern, error)
	GetPatternBySignature(ctx context.Context, signature string) (*models.Pattern, error)
	GetPatternByID(ctx context.Context, id string) (*models.Pattern, error)
	ListPatterns(ctx context.Context, f PatternFilter) ([]*models.Pattern, int64, error)
	// DeletePattern removes a pattern; its solutions cascade.
	DeletePattern(ctx context.Context, signature string) error

	// UpsertSolution inserts a solution scoped to an existing pattern
	// signature. Returns ErrUnknownPattern when the signature is absent.
	UpsertSolution(ctx context.Context, s *models.Solution, instanceID string) (*models.Solution, error)
	GetSolution(ctx context.Context, id string) (*models.Solution, error)
	ListSolutionsForPattern(ctx context.Context, signature string) ([]*models.Solution, error)

	// RecordFeedback inserts the feedback row and recomputes the owning
	// solution's derived fields from the full feedback set, in one
	// transaction. Returns the updated solution.
	RecordFeedback(ctx context.Context, f *models.Feedback, priorWeight float64) (*models.Solution, error)

	// CreateRelationship adds a directed, typed edge between two patterns.
	// Self-loops fail validation; duplicate (from, to, type) returns
	// ErrConflict.
	CreateRelationship(ctx context.Context, r *models.PatternRelationship) (*models.PatternRelationship, error)
	SemanticNeighbors(ctx context.Context, signature string) ([]*models.RelatedPattern, error)
	CandidatePatterns(ctx context.Context, language, category string, limit int) ([]*models.Pattern, error)

	UpsertTechnology(ctx context.Context, t *models.Technology) (*models.Technology, error)
	CreateTechnologyRelationship(ctx context.Context, r *models.TechnologyRelationship) error
	RelatedTechnologies(ctx context.Context, slug string) ([]*models.RelatedTechnology, error)

	RegisterInstance(ctx context.Context, inst *models.Instance) error
	GetInstanceByAPIKey(ctx context.Context, key string) (*models.Instance, error)
	GetInstance(ctx context.Context, id string) (*models.Instance, error)
	// DeactivateInstance marks the instance inactive; instances are never
	// deleted.
	DeactivateInstance(ctx context.Context, id string) error
	// RecordSyncHistory appends one sync audit row and updates the
	// instance's sync bookkeeping in the same transaction.
	RecordSyncHistory(ctx context.Context, h *models.SyncHistory) error

	Stats(ctx context.Context) (*models.RegistryStats, error)
}
