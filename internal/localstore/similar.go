package localstore

import (
	"context"

	"errorshare/backend/pkg/models"
)

// CandidatePatterns returns local patterns for similarity scoring, most
// frequent first. It makes the store a drop-in source for the matcher so
// find-similar works without the registry.
func (s *Store) CandidatePatterns(ctx context.Context, language, category string, limit int) ([]*models.Pattern, error) {
	patterns, err := s.ListPatterns(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.Pattern
	for _, p := range patterns {
		if language != "" && p.Language != language {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SemanticNeighbors is a no-op locally. Semantic edges are curated in the
// central registry and only reachable online.
func (s *Store) SemanticNeighbors(ctx context.Context, signature string) ([]*models.RelatedPattern, error) {
	return nil, nil
}
