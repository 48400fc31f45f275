package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"errorshare/backend/pkg/models"
)

// Capture records a local occurrence of a pattern. A new signature is
// inserted, a known one has its occurrence count incremented and last_seen
// refreshed. Either way the row is marked unsynced so the next sync cycle
// pushes it.
func (s *Store) Capture(ctx context.Context, p *models.Pattern) (*models.Pattern, error) {
	tagsJSON, err := json.Marshal(stringsOrEmpty(p.Tags))
	if err != nil {
		return nil, err
	}

	meta := p.Metadata
	if meta == nil {
		meta = &models.PatternMetadata{}
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO patterns (signature, category, language, framework, description, tags,
			severity, meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (signature) DO UPDATE SET
			occurrence_count = occurrence_count + 1,
			last_seen = CURRENT_TIMESTAMP,
			synced = 0`,
		p.Signature, p.Category, p.Language, p.Framework, p.Description, string(tagsJSON),
		p.Severity,
		nullable(meta.RuntimeVersion), nullable(meta.OSFamily),
		nullable(meta.ToolName), nullable(meta.ToolVersion))
	if err != nil {
		return nil, err
	}
	return s.GetPattern(ctx, p.Signature)
}

// GetPattern returns one local pattern, or nil when the signature is unknown.
func (s *Store) GetPattern(ctx context.Context, signature string) (*models.Pattern, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT signature, category, language, framework, description, tags,
			occurrence_count, first_seen, last_seen, severity,
			meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version
		FROM patterns WHERE signature = ?`, signature)
	p, err := scanLocalPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// ListPatterns returns all local patterns, most recently seen first.
func (s *Store) ListPatterns(ctx context.Context) ([]*models.Pattern, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT signature, category, language, framework, description, tags,
			occurrence_count, first_seen, last_seen, severity,
			meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version
		FROM patterns ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanLocalPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UnsyncedPatterns returns up to limit patterns awaiting a push, oldest first
// so the sync marker advances in capture order.
func (s *Store) UnsyncedPatterns(ctx context.Context, limit int) ([]*models.Pattern, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT signature, category, language, framework, description, tags,
			occurrence_count, first_seen, last_seen, severity,
			meta_runtime_version, meta_os_family, meta_tool_name, meta_tool_version
		FROM patterns WHERE synced = 0 ORDER BY last_seen LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanLocalPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// MarkPatternSynced acknowledges a single pushed pattern. Items are acked one
// at a time so a mid-batch failure never loses unpushed work.
func (s *Store) MarkPatternSynced(ctx context.Context, signature string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE patterns SET synced = 1 WHERE signature = ?`, signature)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocalPattern(row rowScanner) (*models.Pattern, error) {
	var p models.Pattern
	var tagsJSON string
	var firstSeen, lastSeen time.Time
	var runtimeVersion, osFamily, toolName, toolVersion sql.NullString
	err := row.Scan(
		&p.Signature, &p.Category, &p.Language, &p.Framework, &p.Description, &tagsJSON,
		&p.OccurrenceCount, &firstSeen, &lastSeen, &p.Severity,
		&runtimeVersion, &osFamily, &toolName, &toolVersion,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &p.Tags); err != nil {
		return nil, err
	}
	p.FirstSeen = firstSeen
	p.LastSeen = lastSeen
	p.Anonymized = true
	if runtimeVersion.Valid || osFamily.Valid || toolName.Valid || toolVersion.Valid {
		p.Metadata = &models.PatternMetadata{
			RuntimeVersion: runtimeVersion.String,
			OSFamily:       osFamily.String,
			ToolName:       toolName.String,
			ToolVersion:    toolVersion.String,
		}
	}
	return &p, nil
}

func stringsOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
