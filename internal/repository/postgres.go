package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/internal/ranking"
	"errorshare/backend/pkg/models"
)

// PostgresRegistry is the pgx implementation of Registry.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry creates a registry backed by the given pool.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Ping checks database connectivity.
func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

const patternColumns = `id, signature, category, language, framework, description, tags,
	occurrence_count, first_seen, last_seen, anonymized, severity,
	meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version`

func scanPattern(row pgx.Row) (*models.Pattern, error) {
	var p models.Pattern
	var runtimeVersion, osFamily, toolName, toolVersion *string
	err := row.Scan(
		&p.ID, &p.Signature, &p.Category, &p.Language, &p.Framework, &p.Description, &p.Tags,
		&p.OccurrenceCount, &p.FirstSeen, &p.LastSeen, &p.Anonymized, &p.Severity,
		&runtimeVersion, &osFamily, &toolName, &toolVersion,
	)
	if err != nil {
		return nil, err
	}
	if runtimeVersion != nil || osFamily != nil || toolName != nil || toolVersion != nil {
		p.Metadata = &models.PatternMetadata{
			RuntimeVersion: deref(runtimeVersion),
			OSFamily:       deref(osFamily),
			ToolName:       deref(toolName),
			ToolVersion:    deref(toolVersion),
		}
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func metaField(m *models.PatternMetadata, pick func(*models.PatternMetadata) string) *string {
	if m == nil {
		return nil
	}
	v := pick(m)
	if v == "" {
		return nil
	}
	return &v
}

// UpsertPattern inserts or increments in a single conditional statement so
// concurrent submissions of the same signature never lose an update.
func (r *PostgresRegistry) UpsertPattern(ctx context.Context, p *models.Pattern, instanceID string) (*models.Pattern, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO patterns (signature, category, language, framework, description, tags,
			anonymized, severity, meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (signature) DO UPDATE
			SET occurrence_count = patterns.occurrence_count + 1,
			    last_seen = now()
		RETURNING `+patternColumns,
		p.Signature, p.Category, p.Language, p.Framework, p.Description, tags(p.Tags),
		p.Anonymized, p.Severity,
		metaField(p.Metadata, func(m *models.PatternMetadata) string { return m.RuntimeVersion }),
		metaField(p.Metadata, func(m *models.PatternMetadata) string { return m.OSFamily }),
		metaField(p.Metadata, func(m *models.PatternMetadata) string { return m.ToolName }),
		metaField(p.Metadata, func(m *models.PatternMetadata) string { return m.ToolVersion }),
	)
	stored, err := scanPattern(row)
	if err != nil {
		return nil, mapPgError(err)
	}

	if instanceID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE instances SET patterns_submitted = patterns_submitted + 1 WHERE id = $1`,
			instanceID); err != nil {
			return nil, mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return stored, nil
}

// GetPatternBySignature retrieves one pattern by its unique signature.
func (r *PostgresRegistry) GetPatternBySignature(ctx context.Context, signature string) (*models.Pattern, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE signature = $1`, signature)
	p, err := scanPattern(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

// GetPatternByID retrieves one pattern by id.
func (r *PostgresRegistry) GetPatternByID(ctx context.Context, id string) (*models.Pattern, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE id = $1`, id)
	p, err := scanPattern(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

// ListPatterns returns patterns matching the filter ordered by occurrence
// count desc, then last seen desc, plus the unfiltered-by-limit total.
func (r *PostgresRegistry) ListPatterns(ctx context.Context, f PatternFilter) ([]*models.Pattern, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := ` WHERE ($1 = '' OR language = $1)
		AND ($2 = '' OR framework = $2)
		AND ($3 = '' OR category = $3)`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM patterns`+where,
		f.Language, f.Framework, f.Category).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+patternColumns+` FROM patterns`+where+`
		ORDER BY occurrence_count DESC, last_seen DESC
		LIMIT $4 OFFSET $5`,
		f.Language, f.Framework, f.Category, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, 0, mapPgError(err)
		}
		patterns = append(patterns, p)
	}
	return patterns, total, rows.Err()
}

// DeletePattern removes a pattern by signature; solutions cascade.
func (r *PostgresRegistry) DeletePattern(ctx context.Context, signature string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patterns WHERE signature = $1`, signature)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

const solutionColumns = `id, pattern_signature, title, description, code_snippet, success_rate,
	confidence_score, applies_to, verified, votes, helpful_count, unhelpful_count,
	created_at, updated_at`

func scanSolution(row pgx.Row) (*models.Solution, error) {
	var s models.Solution
	err := row.Scan(
		&s.ID, &s.PatternSignature, &s.Title, &s.Description, &s.CodeSnippet, &s.SuccessRate,
		&s.ConfidenceScore, &s.AppliesTo, &s.Verified, &s.Votes, &s.HelpfulCount, &s.UnhelpfulCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSolution inserts a solution for an existing pattern signature.
func (r *PostgresRegistry) UpsertSolution(ctx context.Context, s *models.Solution, instanceID string) (*models.Solution, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO solutions (pattern_signature, title, description, code_snippet, applies_to, verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+solutionColumns,
		s.PatternSignature, s.Title, s.Description, s.CodeSnippet, tags(s.AppliesTo), s.Verified)
	stored, err := scanSolution(row)
	if err != nil {
		return nil, mapPgError(err)
	}

	if instanceID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE instances SET solutions_submitted = solutions_submitted + 1 WHERE id = $1`,
			instanceID); err != nil {
			return nil, mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return stored, nil
}

// GetSolution retrieves one solution by id.
func (r *PostgresRegistry) GetSolution(ctx context.Context, id string) (*models.Solution, error) {
	row := r.db.QueryRow(ctx, `SELECT `+solutionColumns+` FROM solutions WHERE id = $1`, id)
	s, err := scanSolution(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return s, nil
}

// ListSolutionsForPattern returns all solutions for a pattern signature.
// Ranking is applied by the caller.
func (r *PostgresRegistry) ListSolutionsForPattern(ctx context.Context, signature string) ([]*models.Solution, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+solutionColumns+` FROM solutions WHERE pattern_signature = $1 ORDER BY created_at`,
		signature)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var solutions []*models.Solution
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		solutions = append(solutions, s)
	}
	return solutions, rows.Err()
}

// RecordFeedback inserts the feedback row, then recomputes the owning
// solution's helpful/unhelpful counts and smoothed success rate from the full
// feedback set. The insert and the recomputation share one transaction so
// concurrent feedback never corrupts the derived fields.
func (r *PostgresRegistry) RecordFeedback(ctx context.Context, f *models.Feedback, priorWeight float64) (*models.Solution, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer tx.Rollback(ctx)

	// Lock the solution row so two feedback inserts recompute serially.
	var solutionID string
	err = tx.QueryRow(ctx, `SELECT id FROM solutions WHERE id = $1 FOR UPDATE`, f.SolutionID).Scan(&solutionID)
	if err != nil {
		return nil, mapPgError(err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO feedback (solution_id, instance_id, was_helpful, resolution_time_minutes, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		f.SolutionID, f.InstanceID, f.WasHelpful, f.ResolutionTimeMinutes, f.Comment,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}

	var helpful, total int64
	err = tx.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE was_helpful), count(*)
		FROM feedback WHERE solution_id = $1`, f.SolutionID,
	).Scan(&helpful, &total)
	if err != nil {
		return nil, mapPgError(err)
	}

	rate := ranking.SmoothedRate(helpful, total, priorWeight)
	row := tx.QueryRow(ctx, `
		UPDATE solutions
		SET success_rate = $2,
		    helpful_count = $3,
		    unhelpful_count = $4,
		    votes = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+solutionColumns,
		f.SolutionID, rate, helpful, total-helpful)
	updated, err := scanSolution(row)
	if err != nil {
		return nil, mapPgError(err)
	}

	if f.InstanceID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE instances SET feedback_given = feedback_given + 1 WHERE id = $1`,
			f.InstanceID); err != nil {
			return nil, mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return updated, nil
}

// CreateRelationship adds a typed edge between two patterns.
func (r *PostgresRegistry) CreateRelationship(ctx context.Context, rel *models.PatternRelationship) (*models.PatternRelationship, error) {
	if rel.FromPatternID == rel.ToPatternID {
		return nil, apperrors.Validation("to_pattern_id", "must differ from from_pattern_id")
	}
	if !models.ValidRelationshipType(rel.RelationshipType) {
		return nil, apperrors.Validation("relationship_type", "unknown relationship type")
	}
	if rel.SimilarityScore < 0 || rel.SimilarityScore > 1 {
		return nil, apperrors.Validation("similarity_score", "must be in [0,1]")
	}
	if rel.Strength < 0 || rel.Strength > 1 {
		return nil, apperrors.Validation("strength", "must be in [0,1]")
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO pattern_relationships (from_pattern_id, to_pattern_id, relationship_type, similarity_score, strength)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		rel.FromPatternID, rel.ToPatternID, rel.RelationshipType, rel.SimilarityScore, rel.Strength,
	).Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return rel, nil
}

// SemanticNeighbors returns patterns linked to the given signature by a
// semantic edge, in either direction.
func (r *PostgresRegistry) SemanticNeighbors(ctx context.Context, signature string) ([]*models.RelatedPattern, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+qualified(patternColumns, "p")+`, rel.similarity_score
		FROM patterns q
		JOIN pattern_relationships rel
			ON (rel.from_pattern_id = q.id OR rel.to_pattern_id = q.id)
			AND rel.relationship_type = 'semantic'
		JOIN patterns p
			ON p.id = CASE WHEN rel.from_pattern_id = q.id THEN rel.to_pattern_id ELSE rel.from_pattern_id END
		WHERE q.signature = $1`, signature)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var neighbors []*models.RelatedPattern
	for rows.Next() {
		var p models.Pattern
		var runtimeVersion, osFamily, toolName, toolVersion *string
		var score float64
		err := rows.Scan(
			&p.ID, &p.Signature, &p.Category, &p.Language, &p.Framework, &p.Description, &p.Tags,
			&p.OccurrenceCount, &p.FirstSeen, &p.LastSeen, &p.Anonymized, &p.Severity,
			&runtimeVersion, &osFamily, &toolName, &toolVersion,
			&score,
		)
		if err != nil {
			return nil, mapPgError(err)
		}
		neighbors = append(neighbors, &models.RelatedPattern{
			Pattern:         &p,
			SimilarityScore: score,
			SimilarityType:  models.SimilaritySemantic,
			RelationshipVia: models.RelationshipSemantic,
		})
	}
	return neighbors, rows.Err()
}

// CandidatePatterns returns up to limit patterns for similarity scoring,
// most frequent first.
func (r *PostgresRegistry) CandidatePatterns(ctx context.Context, language, category string, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+patternColumns+` FROM patterns
		WHERE ($1 = '' OR language = $1) AND ($2 = '' OR category = $2)
		ORDER BY occurrence_count DESC, last_seen DESC
		LIMIT $3`, language, category, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UpsertTechnology inserts a technology node or refreshes its name/kind.
func (r *PostgresRegistry) UpsertTechnology(ctx context.Context, t *models.Technology) (*models.Technology, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO technologies (slug, name, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, kind = EXCLUDED.kind
		RETURNING id, created_at`,
		t.Slug, t.Name, t.Kind,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return t, nil
}

// CreateTechnologyRelationship adds a typed technology edge.
func (r *PostgresRegistry) CreateTechnologyRelationship(ctx context.Context, rel *models.TechnologyRelationship) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO technology_relationships (from_slug, to_slug, relationship_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (from_slug, to_slug, relationship_type) DO NOTHING`,
		rel.FromSlug, rel.ToSlug, rel.RelationshipType)
	return mapPgError(err)
}

// RelatedTechnologies returns the technologies reachable from slug by one
// outgoing edge, annotated with the edge type.
func (r *PostgresRegistry) RelatedTechnologies(ctx context.Context, slug string) ([]*models.RelatedTechnology, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.slug, t.name, t.kind, t.created_at, rel.relationship_type
		FROM technology_relationships rel
		JOIN technologies t ON t.slug = rel.to_slug
		WHERE rel.from_slug = $1
		ORDER BY rel.relationship_type, t.slug`, slug)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var related []*models.RelatedTechnology
	for rows.Next() {
		var t models.Technology
		var relType models.TechRelationshipType
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.Kind, &t.CreatedAt, &relType); err != nil {
			return nil, mapPgError(err)
		}
		related = append(related, &models.RelatedTechnology{Technology: &t, RelationshipType: relType})
	}
	return related, rows.Err()
}

// RegisterInstance creates a new instance record. Registration is
// deliberately non-idempotent: repeated calls with the same declared name
// create distinct instances.
func (r *PostgresRegistry) RegisterInstance(ctx context.Context, inst *models.Instance) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO instances (name, ide_version, instance_url, api_key, capabilities)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at, is_active`,
		inst.Name, inst.IDEVersion, inst.InstanceURL, inst.APIKey, tags(inst.Capabilities),
	).Scan(&inst.ID, &inst.RegisteredAt, &inst.IsActive)
	return mapPgError(err)
}

const instanceColumns = `id, name, ide_version, instance_url, api_key, capabilities,
	patterns_submitted, solutions_submitted, feedback_given,
	last_sync_at, total_sync_count, is_active, registered_at`

func scanInstance(row pgx.Row) (*models.Instance, error) {
	var inst models.Instance
	err := row.Scan(
		&inst.ID, &inst.Name, &inst.IDEVersion, &inst.InstanceURL, &inst.APIKey, &inst.Capabilities,
		&inst.PatternsSubmitted, &inst.SolutionsSubmitted, &inst.FeedbackGiven,
		&inst.LastSyncAt, &inst.TotalSyncCount, &inst.IsActive, &inst.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetInstanceByAPIKey resolves an API key to its instance.
func (r *PostgresRegistry) GetInstanceByAPIKey(ctx context.Context, key string) (*models.Instance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE api_key = $1`, key)
	inst, err := scanInstance(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return inst, nil
}

// GetInstance retrieves one instance by id.
func (r *PostgresRegistry) GetInstance(ctx context.Context, id string) (*models.Instance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return inst, nil
}

// DeactivateInstance marks an instance inactive.
func (r *PostgresRegistry) DeactivateInstance(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE instances SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// RecordSyncHistory appends one audit row and updates the instance's sync
// bookkeeping in the same transaction.
func (r *PostgresRegistry) RecordSyncHistory(ctx context.Context, h *models.SyncHistory) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO sync_history (instance_id, patterns_synced, solutions_synced, feedback_synced, status, duration_ms, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		h.InstanceID, h.PatternsSynced, h.SolutionsSynced, h.FeedbackSynced, h.Status, h.DurationMs, h.ErrorDetail,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE instances SET last_sync_at = now(), total_sync_count = total_sync_count + 1
		WHERE id = $1`, h.InstanceID); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

// Stats returns the aggregate registry counters.
func (r *PostgresRegistry) Stats(ctx context.Context) (*models.RegistryStats, error) {
	var s models.RegistryStats
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM patterns),
			(SELECT count(*) FROM solutions),
			(SELECT count(*) FROM feedback),
			(SELECT count(*) FROM instances),
			(SELECT count(*) FROM instances WHERE is_active),
			(SELECT coalesce(sum(occurrence_count), 0) FROM patterns),
			(SELECT count(*) FROM solutions WHERE verified),
			now()`,
	).Scan(
		&s.TotalPatterns, &s.TotalSolutions, &s.TotalFeedback,
		&s.TotalInstances, &s.ActiveInstances, &s.TotalOccurrences,
		&s.VerifiedSolutions, &s.GeneratedAt,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &s, nil
}

// tags guards against NULL array writes for nil slices.
func tags(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// qualified prefixes every column in a comma-separated list with an alias.
func qualified(columns, alias string) string {
	out := ""
	for i, c := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func splitColumns(columns string) []string {
	var cols []string
	cur := ""
	for _, r := range columns {
		switch r {
		case ',':
			cols = append(cols, cur)
			cur = ""
		case ' ', '\n', '\t':
			// drop whitespace between names
		default:
			cur += string(r)
		}
	}
	if cur != "" {
		cols = append(cols, cur)
	}
	return cols
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return apperrors.ErrUnknownPattern
		case "23505": // unique_violation
			return apperrors.ErrConflict
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", apperrors.Validation("request", pgErr.ConstraintName), err)
		}
	}
	return err
}
