package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/ranking"
	"errorshare/backend/internal/repository"
	"errorshare/backend/pkg/models"
)

// fakeRegistry is an in-memory Registry for handler tests.
type fakeRegistry struct {
	patterns      map[string]*models.Pattern  // by signature
	solutions     map[string]*models.Solution // by id
	feedback      []*models.Feedback
	relationships []*models.PatternRelationship
	technologies  map[string]*models.Technology
	techEdges     []*models.TechnologyRelationship
	instances     map[string]*models.Instance // by id
	syncHistory   []*models.SyncHistory
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		patterns:     make(map[string]*models.Pattern),
		solutions:    make(map[string]*models.Solution),
		technologies: make(map[string]*models.Technology),
		instances:    make(map[string]*models.Instance),
	}
}

var _ repository.Registry = (*fakeRegistry)(nil)

func (r *fakeRegistry) Ping(ctx context.Context) error { return nil }

func (r *fakeRegistry) UpsertPattern(ctx context.Context, p *models.Pattern, instanceID string) (*models.Pattern, error) {
	if existing, ok := r.patterns[p.Signature]; ok {
		existing.OccurrenceCount++
		existing.LastSeen = time.Now()
	} else {
		stored := *p
		stored.ID = uuid.New().String()
		stored.OccurrenceCount = 1
		stored.FirstSeen = time.Now()
		stored.LastSeen = stored.FirstSeen
		r.patterns[p.Signature] = &stored
	}
	if inst, ok := r.instances[instanceID]; ok {
		inst.PatternsSubmitted++
	}
	return r.patterns[p.Signature], nil
}

func (r *fakeRegistry) GetPatternBySignature(ctx context.Context, signature string) (*models.Pattern, error) {
	if p, ok := r.patterns[signature]; ok {
		return p, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRegistry) GetPatternByID(ctx context.Context, id string) (*models.Pattern, error) {
	for _, p := range r.patterns {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRegistry) ListPatterns(ctx context.Context, f repository.PatternFilter) ([]*models.Pattern, int64, error) {
	var out []*models.Pattern
	for _, p := range r.patterns {
		if f.Language != "" && p.Language != f.Language {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Framework != "" && (p.Framework == nil || *p.Framework != f.Framework) {
			continue
		}
		out = append(out, p)
	}
	total := int64(len(out))
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *fakeRegistry) DeletePattern(ctx context.Context, signature string) error {
	if _, ok := r.patterns[signature]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.patterns, signature)
	for id, sol := range r.solutions {
		if sol.PatternSignature == signature {
			delete(r.solutions, id)
		}
	}
	return nil
}

func (r *fakeRegistry) UpsertSolution(ctx context.Context, s *models.Solution, instanceID string) (*models.Solution, error) {
	if _, ok := r.patterns[s.PatternSignature]; !ok {
		return nil, apperrors.ErrUnknownPattern
	}
	stored := *s
	stored.ID = uuid.New().String()
	stored.SuccessRate = 0.5
	stored.ConfidenceScore = 0.5
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.solutions[stored.ID] = &stored
	if inst, ok := r.instances[instanceID]; ok {
		inst.SolutionsSubmitted++
	}
	return &stored, nil
}

func (r *fakeRegistry) GetSolution(ctx context.Context, id string) (*models.Solution, error) {
	if s, ok := r.solutions[id]; ok {
		return s, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRegistry) ListSolutionsForPattern(ctx context.Context, signature string) ([]*models.Solution, error) {
	var out []*models.Solution
	for _, s := range r.solutions {
		if s.PatternSignature == signature {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRegistry) RecordFeedback(ctx context.Context, f *models.Feedback, priorWeight float64) (*models.Solution, error) {
	sol, ok := r.solutions[f.SolutionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	f.ID = uuid.New().String()
	f.CreatedAt = time.Now()
	r.feedback = append(r.feedback, f)

	var helpful, total int64
	for _, fb := range r.feedback {
		if fb.SolutionID != f.SolutionID {
			continue
		}
		total++
		if fb.WasHelpful {
			helpful++
		}
	}
	sol.HelpfulCount = helpful
	sol.UnhelpfulCount = total - helpful
	sol.Votes = helpful
	sol.SuccessRate = ranking.SmoothedRate(helpful, total, priorWeight)
	if inst, ok := r.instances[f.InstanceID]; ok {
		inst.FeedbackGiven++
	}
	return sol, nil
}

func (r *fakeRegistry) CreateRelationship(ctx context.Context, rel *models.PatternRelationship) (*models.PatternRelationship, error) {
	if rel.FromPatternID == rel.ToPatternID {
		return nil, apperrors.Validation("to_pattern_id", "must differ from from_pattern_id")
	}
	for _, existing := range r.relationships {
		if existing.FromPatternID == rel.FromPatternID &&
			existing.ToPatternID == rel.ToPatternID &&
			existing.RelationshipType == rel.RelationshipType {
			return nil, apperrors.ErrConflict
		}
	}
	rel.ID = uuid.New().String()
	rel.CreatedAt = time.Now()
	r.relationships = append(r.relationships, rel)
	return rel, nil
}

func (r *fakeRegistry) SemanticNeighbors(ctx context.Context, signature string) ([]*models.RelatedPattern, error) {
	var query *models.Pattern
	for _, p := range r.patterns {
		if p.Signature == signature {
			query = p
		}
	}
	if query == nil {
		return nil, nil
	}

	var out []*models.RelatedPattern
	for _, rel := range r.relationships {
		if rel.RelationshipType != models.RelationshipSemantic {
			continue
		}
		var otherID string
		switch query.ID {
		case rel.FromPatternID:
			otherID = rel.ToPatternID
		case rel.ToPatternID:
			otherID = rel.FromPatternID
		default:
			continue
		}
		other, err := r.GetPatternByID(ctx, otherID)
		if err != nil {
			continue
		}
		out = append(out, &models.RelatedPattern{
			Pattern:         other,
			SimilarityScore: rel.SimilarityScore,
			SimilarityType:  models.SimilaritySemantic,
			RelationshipVia: models.RelationshipSemantic,
		})
	}
	return out, nil
}

func (r *fakeRegistry) CandidatePatterns(ctx context.Context, language, category string, limit int) ([]*models.Pattern, error) {
	var out []*models.Pattern
	for _, p := range r.patterns {
		if language != "" && p.Language != language {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRegistry) UpsertTechnology(ctx context.Context, t *models.Technology) (*models.Technology, error) {
	if existing, ok := r.technologies[t.Slug]; ok {
		existing.Name = t.Name
		existing.Kind = t.Kind
		return existing, nil
	}
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	r.technologies[t.Slug] = t
	return t, nil
}

func (r *fakeRegistry) CreateTechnologyRelationship(ctx context.Context, rel *models.TechnologyRelationship) error {
	r.techEdges = append(r.techEdges, rel)
	return nil
}

func (r *fakeRegistry) RelatedTechnologies(ctx context.Context, slug string) ([]*models.RelatedTechnology, error) {
	var out []*models.RelatedTechnology
	for _, rel := range r.techEdges {
		if rel.FromSlug != slug {
			continue
		}
		tech, ok := r.technologies[rel.ToSlug]
		if !ok {
			continue
		}
		out = append(out, &models.RelatedTechnology{Technology: tech, RelationshipType: rel.RelationshipType})
	}
	return out, nil
}

func (r *fakeRegistry) RegisterInstance(ctx context.Context, inst *models.Instance) error {
	inst.ID = uuid.New().String()
	inst.IsActive = true
	inst.RegisteredAt = time.Now()
	r.instances[inst.ID] = inst
	return nil
}

func (r *fakeRegistry) GetInstanceByAPIKey(ctx context.Context, key string) (*models.Instance, error) {
	for _, inst := range r.instances {
		if inst.APIKey == key {
			return inst, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRegistry) GetInstance(ctx context.Context, id string) (*models.Instance, error) {
	if inst, ok := r.instances[id]; ok {
		return inst, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRegistry) DeactivateInstance(ctx context.Context, id string) error {
	inst, ok := r.instances[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	inst.IsActive = false
	return nil
}

func (r *fakeRegistry) RecordSyncHistory(ctx context.Context, h *models.SyncHistory) error {
	if _, ok := r.instances[h.InstanceID]; !ok {
		return fmt.Errorf("%w: instance %s", apperrors.ErrNotFound, h.InstanceID)
	}
	h.ID = uuid.New().String()
	h.CreatedAt = time.Now()
	r.syncHistory = append(r.syncHistory, h)
	r.instances[h.InstanceID].TotalSyncCount++
	return nil
}

func (r *fakeRegistry) Stats(ctx context.Context) (*models.RegistryStats, error) {
	stats := &models.RegistryStats{
		TotalPatterns:  int64(len(r.patterns)),
		TotalSolutions: int64(len(r.solutions)),
		TotalFeedback:  int64(len(r.feedback)),
		TotalInstances: int64(len(r.instances)),
		GeneratedAt:    time.Now(),
	}
	for _, inst := range r.instances {
		if inst.IsActive {
			stats.ActiveInstances++
		}
	}
	for _, p := range r.patterns {
		stats.TotalOccurrences += p.OccurrenceCount
	}
	for _, s := range r.solutions {
		if s.Verified {
			stats.VerifiedSolutions++
		}
	}
	return stats, nil
}
