package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/auth"
	"errorshare/backend/internal/repository"
	"errorshare/backend/internal/similarity"
	"errorshare/backend/pkg/models"
)

func (s *Server) handleSubmitPattern(c echo.Context) error {
	var req submitPatternRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	if err := validatePatternRequest(&req); err != nil {
		return s.fail(c, err)
	}

	severity := req.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}

	instance := auth.InstanceFromContext(c)
	instanceID := ""
	if instance != nil {
		instanceID = instance.ID
	}

	ctx := c.Request().Context()
	stored, err := s.registry.UpsertPattern(ctx, &models.Pattern{
		Signature:   req.ErrorSignature,
		Category:    req.ErrorCategory,
		Language:    req.Language,
		Framework:   req.Framework,
		Description: req.Description,
		Tags:        req.Tags,
		Anonymized:  req.Anonymized,
		Severity:    severity,
		Metadata:    req.Metadata,
	}, instanceID)
	if err != nil {
		return s.fail(c, err)
	}

	// Similar patterns ride along on submission so the instance learns about
	// known relatives immediately.
	framework := ""
	if req.Framework != nil {
		framework = *req.Framework
	}
	matches, err := s.matcher.Match(ctx, similarity.Query{
		Signature:   stored.Signature,
		Description: stored.Description,
		Category:    stored.Category,
		Language:    stored.Language,
		Framework:   framework,
	}, s.cfg.Similarity.DefaultLimit)
	if err != nil {
		s.log.Warn("similar pattern lookup failed", "signature", stored.Signature, "error", err)
		matches = nil
	}

	summaries := make([]similarPatternSummary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, similarPatternSummary{
			PatternID:       m.Pattern.ID,
			ErrorSignature:  m.Pattern.Signature,
			SimilarityScore: m.SimilarityScore,
			SimilarityType:  m.SimilarityType,
		})
	}

	return c.JSON(http.StatusCreated, submitPatternResponse{
		PatternID:       stored.ID,
		OccurrenceCount: stored.OccurrenceCount,
		SimilarPatterns: summaries,
	})
}

func validatePatternRequest(req *submitPatternRequest) error {
	if !req.Anonymized {
		return apperrors.Validation("anonymized", "patterns must be anonymized before submission")
	}
	if strings.TrimSpace(req.ErrorSignature) == "" {
		return apperrors.Validation("error_signature", "required")
	}
	if strings.TrimSpace(req.ErrorCategory) == "" {
		return apperrors.Validation("error_category", "required")
	}
	if strings.TrimSpace(req.Language) == "" {
		return apperrors.Validation("language", "required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.Validation("description", "required")
	}
	if req.Severity != "" && !models.ValidSeverity(req.Severity) {
		return apperrors.Validation("severity", "must be one of low, medium, high, critical")
	}
	return nil
}

func (s *Server) handleListPatterns(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	patterns, total, err := s.registry.ListPatterns(c.Request().Context(), repository.PatternFilter{
		Language:  c.QueryParam("language"),
		Framework: c.QueryParam("framework"),
		Category:  c.QueryParam("category"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return s.fail(c, err)
	}
	if patterns == nil {
		patterns = []*models.Pattern{}
	}
	return c.JSON(http.StatusOK, listPatternsResponse{Patterns: patterns, Total: total})
}

func (s *Server) handleGetPattern(c echo.Context) error {
	p, err := s.findPattern(c, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handlePatternSolutions(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := s.findPattern(c, c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}

	solutions, err := s.registry.ListSolutionsForPattern(ctx, p.Signature)
	if err != nil {
		return s.fail(c, err)
	}
	s.ranker.Sort(solutions)

	summaries := make([]solutionSummary, 0, len(solutions))
	for _, sol := range solutions {
		summaries = append(summaries, solutionSummary{
			SolutionID:     sol.ID,
			Title:          sol.Title,
			Description:    sol.Description,
			CodeSnippet:    sol.CodeSnippet,
			SuccessRate:    sol.SuccessRate,
			Verified:       sol.Verified,
			Votes:          sol.Votes,
			HelpfulCount:   sol.HelpfulCount,
			UnhelpfulCount: sol.UnhelpfulCount,
		})
	}
	return c.JSON(http.StatusOK, patternSolutionsResponse{Pattern: p, Solutions: summaries})
}

// findPattern resolves a path parameter that may be either a pattern id or a
// signature. Signatures contain colons, ids never do.
func (s *Server) findPattern(c echo.Context, idOrSignature string) (*models.Pattern, error) {
	ctx := c.Request().Context()
	if strings.Contains(idOrSignature, ":") {
		return s.registry.GetPatternBySignature(ctx, idOrSignature)
	}
	return s.registry.GetPatternByID(ctx, idOrSignature)
}
