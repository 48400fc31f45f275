package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/pkg/models"
)

func TestPostgresRegistry(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatal(err)
	}

	registry := NewPostgresRegistry(pool)

	instance := &models.Instance{
		Name:       "workstation-1",
		IDEVersion: "1.42.0",
		APIKey:     "test-key-registry",
	}
	require.NoError(t, registry.RegisterInstance(ctx, instance))
	require.NotEmpty(t, instance.ID)
	assert.True(t, instance.IsActive)

	framework := "gin"
	pattern := &models.Pattern{
		Signature:   "runtime_error:nil_pointer:abc123def456",
		Category:    "runtime_error",
		Language:    "go",
		Framework:   &framework,
		Description: "runtime error invalid memory address or nil pointer dereference",
		Tags:        []string{"nil", "pointer"},
		Anonymized:  true,
		Severity:    models.SeverityHigh,
		Metadata:    &models.PatternMetadata{RuntimeVersion: "1.22", OSFamily: "linux"},
	}

	t.Run("UpsertPattern increments on duplicate signature", func(t *testing.T) {
		first, err := registry.UpsertPattern(ctx, pattern, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.OccurrenceCount)
		assert.NotEmpty(t, first.ID)
		require.NotNil(t, first.Metadata)
		assert.Equal(t, "1.22", first.Metadata.RuntimeVersion)

		second, err := registry.UpsertPattern(ctx, pattern, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(2), second.OccurrenceCount)
		assert.True(t, !second.LastSeen.Before(first.LastSeen))

		updated, err := registry.GetInstance(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.PatternsSubmitted)
	})

	t.Run("GetPatternBySignature returns ErrNotFound for unknown", func(t *testing.T) {
		_, err := registry.GetPatternBySignature(ctx, "no:such:signature")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("UpsertSolution rejects unknown pattern signature", func(t *testing.T) {
		_, err := registry.UpsertSolution(ctx, &models.Solution{
			PatternSignature: "no:such:signature",
			Title:            "orphan",
			Description:      "should be rejected",
		}, instance.ID)
		assert.ErrorIs(t, err, apperrors.ErrUnknownPattern)
	})

	var solution *models.Solution

	t.Run("UpsertSolution stores with neutral defaults", func(t *testing.T) {
		snippet := "if p == nil { return }"
		solution, err = registry.UpsertSolution(ctx, &models.Solution{
			PatternSignature: pattern.Signature,
			Title:            "guard the pointer",
			Description:      "check for nil before dereferencing",
			CodeSnippet:      &snippet,
			AppliesTo:        []string{"go"},
		}, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.5, solution.SuccessRate)
		assert.Equal(t, int64(0), solution.HelpfulCount)
		assert.False(t, solution.Verified)
	})

	t.Run("RecordFeedback recomputes smoothed success rate", func(t *testing.T) {
		outcomes := []bool{true, true, true, false}
		var updated *models.Solution
		for _, helpful := range outcomes {
			updated, err = registry.RecordFeedback(ctx, &models.Feedback{
				SolutionID: solution.ID,
				InstanceID: instance.ID,
				WasHelpful: helpful,
			}, 2.0)
			require.NoError(t, err)
		}

		assert.Equal(t, int64(3), updated.HelpfulCount)
		assert.Equal(t, int64(1), updated.UnhelpfulCount)
		assert.Equal(t, int64(3), updated.Votes)
		// (3 + 2*0.5) / (4 + 2)
		assert.InDelta(t, 4.0/6.0, updated.SuccessRate, 1e-9)

		after, err := registry.GetInstance(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), after.FeedbackGiven)
	})

	t.Run("RecordFeedback rejects unknown solution", func(t *testing.T) {
		_, err := registry.RecordFeedback(ctx, &models.Feedback{
			SolutionID: "00000000-0000-0000-0000-000000000000",
			InstanceID: instance.ID,
			WasHelpful: true,
		}, 2.0)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("CreateRelationship rejects self-loops and duplicates", func(t *testing.T) {
		stored, err := registry.GetPatternBySignature(ctx, pattern.Signature)
		require.NoError(t, err)

		_, err = registry.CreateRelationship(ctx, &models.PatternRelationship{
			FromPatternID:    stored.ID,
			ToPatternID:      stored.ID,
			RelationshipType: models.RelationshipSimilar,
			SimilarityScore:  0.9,
			Strength:         0.9,
		})
		assert.True(t, apperrors.IsValidation(err))

		other, err := registry.UpsertPattern(ctx, &models.Pattern{
			Signature:   "runtime_error:index_range:def456abc123",
			Category:    "runtime_error",
			Language:    "go",
			Description: "index out of range",
			Anonymized:  true,
			Severity:    models.SeverityMedium,
		}, instance.ID)
		require.NoError(t, err)

		edge := &models.PatternRelationship{
			FromPatternID:    stored.ID,
			ToPatternID:      other.ID,
			RelationshipType: models.RelationshipSemantic,
			SimilarityScore:  0.8,
			Strength:         0.7,
		}
		_, err = registry.CreateRelationship(ctx, edge)
		require.NoError(t, err)

		_, err = registry.CreateRelationship(ctx, &models.PatternRelationship{
			FromPatternID:    stored.ID,
			ToPatternID:      other.ID,
			RelationshipType: models.RelationshipSemantic,
			SimilarityScore:  0.8,
			Strength:         0.7,
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("SemanticNeighbors follows edges both directions", func(t *testing.T) {
		neighbors, err := registry.SemanticNeighbors(ctx, pattern.Signature)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "runtime_error:index_range:def456abc123", neighbors[0].Pattern.Signature)
		assert.Equal(t, models.SimilaritySemantic, neighbors[0].SimilarityType)

		// Reverse direction from the other endpoint.
		reverse, err := registry.SemanticNeighbors(ctx, "runtime_error:index_range:def456abc123")
		require.NoError(t, err)
		require.Len(t, reverse, 1)
		assert.Equal(t, pattern.Signature, reverse[0].Pattern.Signature)
	})

	t.Run("ListPatterns filters and reports total", func(t *testing.T) {
		patterns, total, err := registry.ListPatterns(ctx, PatternFilter{Language: "go", Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, patterns, 1)
		// Most frequent first.
		assert.Equal(t, pattern.Signature, patterns[0].Signature)

		_, total, err = registry.ListPatterns(ctx, PatternFilter{Language: "rust"})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("Technology graph round trip", func(t *testing.T) {
		for _, tech := range []*models.Technology{
			{Slug: "go", Name: "Go", Kind: models.TechnologyLanguage},
			{Slug: "gin", Name: "Gin", Kind: models.TechnologyFramework},
			{Slug: "echo", Name: "Echo", Kind: models.TechnologyFramework},
		} {
			_, err := registry.UpsertTechnology(ctx, tech)
			require.NoError(t, err)
		}

		require.NoError(t, registry.CreateTechnologyRelationship(ctx, &models.TechnologyRelationship{
			FromSlug: "gin", ToSlug: "go", RelationshipType: models.TechDependency,
		}))
		require.NoError(t, registry.CreateTechnologyRelationship(ctx, &models.TechnologyRelationship{
			FromSlug: "gin", ToSlug: "echo", RelationshipType: models.TechAlternative,
		}))

		related, err := registry.RelatedTechnologies(ctx, "gin")
		require.NoError(t, err)
		require.Len(t, related, 2)
	})

	t.Run("RecordSyncHistory bumps instance counters", func(t *testing.T) {
		require.NoError(t, registry.RecordSyncHistory(ctx, &models.SyncHistory{
			InstanceID:     instance.ID,
			PatternsSynced: 2,
			Status:         models.SyncSuccess,
			DurationMs:     120,
		}))

		after, err := registry.GetInstance(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), after.TotalSyncCount)
		require.NotNil(t, after.LastSyncAt)
	})

	t.Run("Stats aggregates", func(t *testing.T) {
		stats, err := registry.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalPatterns)
		assert.Equal(t, int64(1), stats.TotalSolutions)
		assert.Equal(t, int64(4), stats.TotalFeedback)
		assert.Equal(t, int64(1), stats.ActiveInstances)
		assert.Equal(t, int64(3), stats.TotalOccurrences)
	})

	t.Run("DeletePattern cascades to solutions", func(t *testing.T) {
		require.NoError(t, registry.DeletePattern(ctx, pattern.Signature))

		_, err := registry.GetSolution(ctx, solution.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		err = registry.DeletePattern(ctx, pattern.Signature)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("DeactivateInstance keeps the record", func(t *testing.T) {
		require.NoError(t, registry.DeactivateInstance(ctx, instance.ID))
		after, err := registry.GetInstance(ctx, instance.ID)
		require.NoError(t, err)
		assert.False(t, after.IsActive)
	})
}
