package models

import "time"

// Instance is one registered client of the registry. Instances are never
// deleted; they are deactivated instead.
type Instance struct {
	ID                 string     `json:"instance_id" db:"id"`
	Name               string     `json:"instance_name" db:"name"`
	IDEVersion         string     `json:"ide_version" db:"ide_version"`
	InstanceURL        *string    `json:"instance_url,omitempty" db:"instance_url"`
	APIKey             string     `json:"-" db:"api_key"`
	Capabilities       []string   `json:"capabilities,omitempty" db:"capabilities"`
	PatternsSubmitted  int64      `json:"patterns_submitted" db:"patterns_submitted"`
	SolutionsSubmitted int64      `json:"solutions_submitted" db:"solutions_submitted"`
	FeedbackGiven      int64      `json:"feedback_given" db:"feedback_given"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	TotalSyncCount     int64      `json:"total_sync_count" db:"total_sync_count"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	RegisteredAt       time.Time  `json:"registered_at" db:"registered_at"`
}

// SyncStatus is the outcome of one sync attempt.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// SyncHistory is an append-only audit record for one sync attempt.
type SyncHistory struct {
	ID              string     `json:"id" db:"id"`
	InstanceID      string     `json:"instance_id" db:"instance_id"`
	PatternsSynced  int        `json:"patterns_synced" db:"patterns_synced"`
	SolutionsSynced int        `json:"solutions_synced" db:"solutions_synced"`
	FeedbackSynced  int        `json:"feedback_synced" db:"feedback_synced"`
	Status          SyncStatus `json:"status" db:"status"`
	DurationMs      int64      `json:"duration_ms" db:"duration_ms"`
	ErrorDetail     *string    `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// RegistryStats are the aggregate counters served by GET /stats.
type RegistryStats struct {
	TotalPatterns     int64     `json:"total_patterns"`
	TotalSolutions    int64     `json:"total_solutions"`
	TotalFeedback     int64     `json:"total_feedback"`
	TotalInstances    int64     `json:"total_instances"`
	ActiveInstances   int64     `json:"active_instances"`
	TotalOccurrences  int64     `json:"total_occurrences"`
	VerifiedSolutions int64     `json:"verified_solutions"`
	GeneratedAt       time.Time `json:"generated_at"`
}
