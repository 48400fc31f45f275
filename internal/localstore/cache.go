package localstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"errorshare/backend/pkg/models"
)

// CacheKnownSolutions replaces the cached registry solutions for a pattern.
// The cache is what keeps find-similar useful while offline.
func (s *Store) CacheKnownSolutions(ctx context.Context, signature string, solutions []*models.Solution) error {
	payload, err := json.Marshal(solutions)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO known_solutions (pattern_signature, payload, cached_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`,
		signature, string(payload))
	return err
}

// KnownSolutions returns the cached registry solutions for a pattern, or nil
// when nothing has been cached.
func (s *Store) KnownSolutions(ctx context.Context, signature string) ([]*models.Solution, error) {
	var payload string
	err := s.conn.QueryRowContext(ctx,
		`SELECT payload FROM known_solutions WHERE pattern_signature = ?`, signature,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var solutions []*models.Solution
	if err := json.Unmarshal([]byte(payload), &solutions); err != nil {
		return nil, err
	}
	return solutions, nil
}

// cachedSolutionExists reports whether any cached registry solution carries
// the given id. The cache is small, one row per locally seen signature, so a
// scan is fine.
func (s *Store) cachedSolutionExists(ctx context.Context, solutionID string) (bool, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT payload FROM known_solutions`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return false, err
		}
		var solutions []*models.Solution
		if err := json.Unmarshal([]byte(payload), &solutions); err != nil {
			continue
		}
		for _, sol := range solutions {
			if sol.ID == solutionID {
				return true, nil
			}
		}
	}
	return false, rows.Err()
}

// SetSetting stores one instance-level setting such as the registry URL or
// the instance id issued at registration.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Setting returns one setting value, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Setting keys used by the agent.
const (
	SettingInstanceID   = "instance_id"
	SettingInstanceName = "instance_name"
	SettingAPIKey       = "api_key"
)
