package localstore

import (
	"context"

	"github.com/google/uuid"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/pkg/models"
)

// RecordFeedback queues a helpful/unhelpful vote against a solution. The
// solution may be a local one or a cached registry one; only local solution
// ids are validated.
func (s *Store) RecordFeedback(ctx context.Context, f *models.Feedback) (*models.Feedback, error) {
	local, err := s.GetLocalSolution(ctx, f.SolutionID)
	if err != nil {
		return nil, err
	}
	if local == nil {
		cached, err := s.cachedSolutionExists(ctx, f.SolutionID)
		if err != nil {
			return nil, err
		}
		if !cached {
			return nil, apperrors.ErrNotFound
		}
	}

	f.ID = uuid.New().String()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO feedback (id, solution_id, was_helpful, resolution_time_minutes, comment)
		VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.SolutionID, f.WasHelpful, f.ResolutionTimeMinutes, f.Comment)
	if err != nil {
		return nil, err
	}

	row := s.conn.QueryRowContext(ctx,
		`SELECT created_at FROM feedback WHERE id = ?`, f.ID)
	if err := row.Scan(&f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// UnsyncedFeedback returns up to limit feedback items awaiting a push,
// oldest first. Feedback referencing cached registry solutions lives outside
// the local solutions table, so no join is applied.
func (s *Store) UnsyncedFeedback(ctx context.Context, limit int) ([]*models.Feedback, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, solution_id, was_helpful, resolution_time_minutes, comment, created_at
		FROM feedback WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.SolutionID, &f.WasHelpful,
			&f.ResolutionTimeMinutes, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &f)
	}
	return items, rows.Err()
}

// MarkFeedbackSynced acknowledges a single pushed feedback item.
func (s *Store) MarkFeedbackSynced(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE feedback SET synced = 1 WHERE id = ?`, id)
	return err
}
