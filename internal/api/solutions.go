package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/auth"
	"errorshare/backend/pkg/models"
)

func (s *Server) handleSubmitSolution(c echo.Context) error {
	var req submitSolutionRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	if strings.TrimSpace(req.PatternSignature) == "" {
		return s.fail(c, apperrors.Validation("pattern_signature", "required"))
	}
	if strings.TrimSpace(req.SolutionTitle) == "" {
		return s.fail(c, apperrors.Validation("solution_title", "required"))
	}
	if strings.TrimSpace(req.SolutionDescription) == "" {
		return s.fail(c, apperrors.Validation("solution_description", "required"))
	}
	if req.SuccessRate != nil && (*req.SuccessRate < 0 || *req.SuccessRate > 1) {
		return s.fail(c, apperrors.Validation("success_rate", "must be in [0,1]"))
	}

	instance := auth.InstanceFromContext(c)
	instanceID := ""
	if instance != nil {
		instanceID = instance.ID
	}

	ctx := c.Request().Context()
	stored, err := s.registry.UpsertSolution(ctx, &models.Solution{
		PatternSignature: req.PatternSignature,
		Title:            req.SolutionTitle,
		Description:      req.SolutionDescription,
		CodeSnippet:      req.CodeSnippet,
		AppliesTo:        req.AppliesTo,
		Verified:         req.Verified,
	}, instanceID)
	if err != nil {
		return s.fail(c, err)
	}

	// Sibling solutions for the same pattern, best first, so the submitter
	// sees what the community already tried.
	alternatives, err := s.registry.ListSolutionsForPattern(ctx, stored.PatternSignature)
	if err != nil {
		return s.fail(c, err)
	}
	filtered := alternatives[:0]
	for _, alt := range alternatives {
		if alt.ID != stored.ID {
			filtered = append(filtered, alt)
		}
	}
	s.ranker.Sort(filtered)

	return c.JSON(http.StatusCreated, submitSolutionResponse{
		SolutionID:           stored.ID,
		LinkedPatterns:       []string{stored.PatternSignature},
		ConfidenceScore:      stored.ConfidenceScore,
		AlternativeSolutions: filtered,
	})
}

func (s *Server) handleFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	return s.recordFeedback(c, c.Param("id"), req)
}

// handleFeedbackBySolutionID serves the sync engine's flat push endpoint
// where the solution id travels in the body.
func (s *Server) handleFeedbackBySolutionID(c echo.Context) error {
	var req struct {
		feedbackRequest
		SolutionID string `json:"solution_id"`
	}
	if err := c.Bind(&req); err != nil {
		return s.fail(c, apperrors.Validation("body", "malformed JSON"))
	}
	return s.recordFeedback(c, req.SolutionID, req.feedbackRequest)
}

func (s *Server) recordFeedback(c echo.Context, solutionID string, req feedbackRequest) error {
	if strings.TrimSpace(solutionID) == "" {
		return s.fail(c, apperrors.Validation("solution_id", "required"))
	}

	instanceID := req.InstanceID
	if instanceID == "" {
		if instance := auth.InstanceFromContext(c); instance != nil {
			instanceID = instance.ID
		}
	}
	if instanceID == "" {
		return s.fail(c, apperrors.Validation("instance_id", "required"))
	}

	fb := &models.Feedback{
		SolutionID:            solutionID,
		InstanceID:            instanceID,
		WasHelpful:            req.WasHelpful,
		ResolutionTimeMinutes: req.ResolutionTimeMinutes,
		Comment:               req.Comment,
	}
	updated, err := s.registry.RecordFeedback(c.Request().Context(), fb, s.cfg.Ranking.PriorWeight)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusCreated, feedbackResponse{
		FeedbackID:      fb.ID,
		SolutionUpdated: true,
		NewSuccessRate:  updated.SuccessRate,
	})
}
