package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/similarity"
	"errorshare/backend/pkg/models"
)

func (s *Server) handleSimilarPatterns(c echo.Context) error {
	p, err := s.findPattern(c, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = s.cfg.Similarity.DefaultLimit
	}

	framework := ""
	if p.Framework != nil {
		framework = *p.Framework
	}
	matches, err := s.matcher.Match(c.Request().Context(), similarity.Query{
		Signature:   p.Signature,
		Description: p.Description,
		Category:    p.Category,
		Language:    p.Language,
		Framework:   framework,
	}, limit)
	if err != nil {
		return s.fail(c, err)
	}
	if matches == nil {
		matches = []*models.RelatedPattern{}
	}
	return c.JSON(http.StatusOK, similarPatternsResponse{Patterns: matches})
}

func (s *Server) handleCreateRelationship(c echo.Context) error {
	var req relationshipRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	if req.FromPatternID == "" {
		return s.fail(c, apperrors.Validation("from_pattern_id", "required"))
	}
	if req.ToPatternID == "" {
		return s.fail(c, apperrors.Validation("to_pattern_id", "required"))
	}

	rel, err := s.registry.CreateRelationship(c.Request().Context(), &models.PatternRelationship{
		FromPatternID:    req.FromPatternID,
		ToPatternID:      req.ToPatternID,
		RelationshipType: req.RelationshipType,
		SimilarityScore:  req.SimilarityScore,
		Strength:         req.Strength,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, rel)
}

func (s *Server) handleRelatedTechnologies(c echo.Context) error {
	slug := c.Param("slug")
	related, err := s.registry.RelatedTechnologies(c.Request().Context(), slug)
	if err != nil {
		return s.fail(c, err)
	}
	if related == nil {
		related = []*models.RelatedTechnology{}
	}
	return c.JSON(http.StatusOK, relatedTechnologiesResponse{Technology: slug, Related: related})
}

// handleSolutionPortability reports where else a solution might apply: for
// each technology it applies to, the alternatives and migration targets one
// edge away in the reference graph.
func (s *Server) handleSolutionPortability(c echo.Context) error {
	ctx := c.Request().Context()
	sol, err := s.registry.GetSolution(ctx, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}

	targets := []portabilityTarget{}
	for _, slug := range sol.AppliesTo {
		related, err := s.registry.RelatedTechnologies(ctx, slug)
		if err != nil {
			return s.fail(c, err)
		}
		for _, r := range related {
			if r.RelationshipType != models.TechAlternative &&
				r.RelationshipType != models.TechMigrationTarget {
				continue
			}
			targets = append(targets, portabilityTarget{
				From:       slug,
				Via:        r.RelationshipType,
				Technology: r.Technology,
			})
		}
	}

	return c.JSON(http.StatusOK, solutionPortabilityResponse{
		SolutionID: sol.ID,
		AppliesTo:  sol.AppliesTo,
		Targets:    targets,
	})
}
