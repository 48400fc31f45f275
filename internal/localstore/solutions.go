package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"errorshare/backend/internal/apperrors"
	"errorshare/backend/pkg/models"
)

// RecordSolution stores a locally authored solution for a captured pattern.
// The id is generated here so the same record keeps its identity when pushed
// to the registry.
func (s *Store) RecordSolution(ctx context.Context, sol *models.Solution) (*models.Solution, error) {
	known, err := s.GetPattern(ctx, sol.PatternSignature)
	if err != nil {
		return nil, err
	}
	if known == nil {
		return nil, apperrors.ErrUnknownPattern
	}

	appliesJSON, err := json.Marshal(stringsOrEmpty(sol.AppliesTo))
	if err != nil {
		return nil, err
	}

	sol.ID = uuid.New().String()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO solutions (id, pattern_signature, title, description, code_snippet, applies_to, verified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sol.ID, sol.PatternSignature, sol.Title, sol.Description, sol.CodeSnippet,
		string(appliesJSON), sol.Verified)
	if err != nil {
		return nil, err
	}
	return s.GetLocalSolution(ctx, sol.ID)
}

// GetLocalSolution returns one locally authored solution, or nil when absent.
func (s *Store) GetLocalSolution(ctx context.Context, id string) (*models.Solution, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, pattern_signature, title, description, code_snippet, applies_to, verified, created_at
		FROM solutions WHERE id = ?`, id)
	sol, err := scanLocalSolution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sol, err
}

// SolutionsForPattern returns the locally authored solutions for a signature.
func (s *Store) SolutionsForPattern(ctx context.Context, signature string) ([]*models.Solution, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, pattern_signature, title, description, code_snippet, applies_to, verified, created_at
		FROM solutions WHERE pattern_signature = ? ORDER BY created_at`, signature)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []*models.Solution
	for rows.Next() {
		sol, err := scanLocalSolution(rows)
		if err != nil {
			return nil, err
		}
		solutions = append(solutions, sol)
	}
	return solutions, rows.Err()
}

// UnsyncedSolutions returns up to limit solutions awaiting a push, oldest
// first.
func (s *Store) UnsyncedSolutions(ctx context.Context, limit int) ([]*models.Solution, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, pattern_signature, title, description, code_snippet, applies_to, verified, created_at
		FROM solutions WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var solutions []*models.Solution
	for rows.Next() {
		sol, err := scanLocalSolution(rows)
		if err != nil {
			return nil, err
		}
		solutions = append(solutions, sol)
	}
	return solutions, rows.Err()
}

// MarkSolutionSynced acknowledges a single pushed solution.
func (s *Store) MarkSolutionSynced(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE solutions SET synced = 1 WHERE id = ?`, id)
	return err
}

func scanLocalSolution(row rowScanner) (*models.Solution, error) {
	var sol models.Solution
	var appliesJSON string
	var createdAt time.Time
	err := row.Scan(
		&sol.ID, &sol.PatternSignature, &sol.Title, &sol.Description, &sol.CodeSnippet,
		&appliesJSON, &sol.Verified, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(appliesJSON), &sol.AppliesTo); err != nil {
		return nil, err
	}
	sol.CreatedAt = createdAt
	sol.UpdatedAt = createdAt
	sol.SuccessRate = 0.5
	return &sol, nil
}
