// Package similarity ranks registry patterns against a query using character
// trigram overlap, with small boosts for exact category, language and
// framework matches. Cross-language matches are not computed here; they are
// stored as semantic relationship edges and merged into results by Matcher.
package similarity

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"errorshare/backend/internal/normalize"
	"errorshare/backend/pkg/models"
)

const instrumentationName = "errorshare/backend/internal/similarity"

// Query describes the pattern being matched against the registry.
type Query struct {
	Signature   string
	Description string
	Category    string
	Language    string
	Framework   string
}

// Scorer computes a [0,1] lexical score between a query and a pattern.
type Scorer struct {
	CategoryBonus  float64
	LanguageBonus  float64
	FrameworkBonus float64
}

// Score returns the similarity between q and p. The base is the trigram Dice
// coefficient over the normalized descriptions; exact metadata matches add
// fixed bonuses, capped at 1.0. Signatures carry a content hash and take no
// part in scoring, so equal descriptions always score equally.
func (s Scorer) Score(q Query, p *models.Pattern) float64 {
	score := Dice(normalize.Message(q.Description), normalize.Message(p.Description))
	if score == 0 {
		return 0
	}

	if q.Category != "" && q.Category == p.Category {
		score += s.CategoryBonus
	}
	if q.Language != "" && q.Language == p.Language {
		score += s.LanguageBonus
	}
	if q.Framework != "" && p.Framework != nil && q.Framework == *p.Framework {
		score += s.FrameworkBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Dice returns the Sørensen–Dice coefficient over the character trigram sets
// of a and b. Order-insensitive and tolerant of minor wording differences.
func Dice(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		if a == b && a != "" {
			return 1.0
		}
		return 0
	}

	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return 2.0 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 3 {
		if len(runes) == 0 {
			return nil
		}
		return map[string]struct{}{string(runes): {}}
	}
	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// PatternSource is the slice of the registry the matcher reads from.
type PatternSource interface {
	// CandidatePatterns returns up to limit patterns to score, most frequent
	// first. Empty language/category mean no filter.
	CandidatePatterns(ctx context.Context, language, category string, limit int) ([]*models.Pattern, error)
	// SemanticNeighbors returns patterns linked to the given signature by a
	// stored semantic relationship edge.
	SemanticNeighbors(ctx context.Context, signature string) ([]*models.RelatedPattern, error)
}

// Matcher ranks registry patterns against a query.
type Matcher struct {
	source        PatternSource
	scorer        Scorer
	minScore      float64
	candidatePool int
	tracer        trace.Tracer
}

// NewMatcher creates a Matcher over the given pattern source.
func NewMatcher(source PatternSource, scorer Scorer, minScore float64, candidatePool int) *Matcher {
	if candidatePool <= 0 {
		candidatePool = 500
	}
	return &Matcher{
		source:        source,
		scorer:        scorer,
		minScore:      minScore,
		candidatePool: candidatePool,
		tracer:        otel.Tracer(instrumentationName),
	}
}

// Match returns up to limit patterns ranked by descending score, filtered to
// score >= the configured threshold. Stored semantic edges for the query
// signature are merged in, tagged with their relationship type. Ties order by
// occurrence count, then last seen, for determinism.
func (m *Matcher) Match(ctx context.Context, q Query, limit int) ([]*models.RelatedPattern, error) {
	if limit <= 0 {
		limit = 10
	}

	ctx, span := m.tracer.Start(ctx, "similarity.Match",
		trace.WithAttributes(
			attribute.String("query.language", q.Language),
			attribute.String("query.category", q.Category),
			attribute.Int("limit", limit),
		))
	defer span.End()

	candidates, err := m.source.CandidatePatterns(ctx, q.Language, "", m.candidatePool)
	if err != nil {
		return nil, err
	}

	var results []*models.RelatedPattern
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		if p.Signature == q.Signature {
			continue
		}
		score := m.scorer.Score(q, p)
		if score < m.minScore {
			continue
		}
		results = append(results, &models.RelatedPattern{
			Pattern:         p,
			SimilarityScore: score,
			SimilarityType:  models.SimilarityLexical,
		})
		seen[p.Signature] = struct{}{}
	}

	if q.Signature != "" {
		neighbors, err := m.source.SemanticNeighbors(ctx, q.Signature)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if _, dup := seen[n.Pattern.Signature]; dup {
				continue
			}
			if n.SimilarityScore < m.minScore {
				continue
			}
			n.SimilarityType = models.SimilaritySemantic
			results = append(results, n)
		}
	}

	SortMatches(results)
	if len(results) > limit {
		results = results[:limit]
	}
	span.SetAttributes(attribute.Int("matches", len(results)))
	return results, nil
}

// SortMatches orders matches by score desc, then occurrence count desc, then
// last seen desc.
func SortMatches(matches []*models.RelatedPattern) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}
		pi, pj := matches[i].Pattern, matches[j].Pattern
		if pi.OccurrenceCount != pj.OccurrenceCount {
			return pi.OccurrenceCount > pj.OccurrenceCount
		}
		return pi.LastSeen.After(pj.LastSeen)
	})
}
