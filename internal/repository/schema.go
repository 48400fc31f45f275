package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the registry DDL. EnsureSchema applies it on startup; every
// statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	signature TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL,
	language TEXT NOT NULL,
	framework TEXT,
	description TEXT NOT NULL,
	tags TEXT[] NOT NULL DEFAULT '{}',
	occurrence_count BIGINT NOT NULL DEFAULT 1,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
	anonymized BOOLEAN NOT NULL,
	severity TEXT NOT NULL DEFAULT 'medium'
		CHECK (severity IN ('low', 'medium', 'high', 'critical')),
	meta_runtime_version TEXT,
	meta_os_family TEXT,
	meta_tool_name TEXT,
	meta_tool_version TEXT
);

CREATE INDEX IF NOT EXISTS idx_patterns_language ON patterns (language);
CREATE INDEX IF NOT EXISTS idx_patterns_category ON patterns (category);
CREATE INDEX IF NOT EXISTS idx_patterns_occurrence ON patterns (occurrence_count DESC, last_seen DESC);

CREATE TABLE IF NOT EXISTS solutions (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	pattern_signature TEXT NOT NULL
		REFERENCES patterns (signature) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	code_snippet TEXT,
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0.5
		CHECK (success_rate >= 0 AND success_rate <= 1),
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0.5
		CHECK (confidence_score >= 0 AND confidence_score <= 1),
	applies_to TEXT[] NOT NULL DEFAULT '{}',
	verified BOOLEAN NOT NULL DEFAULT false,
	votes BIGINT NOT NULL DEFAULT 0,
	helpful_count BIGINT NOT NULL DEFAULT 0,
	unhelpful_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_solutions_pattern ON solutions (pattern_signature);

CREATE TABLE IF NOT EXISTS feedback (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	solution_id UUID NOT NULL REFERENCES solutions (id) ON DELETE CASCADE,
	instance_id UUID NOT NULL,
	was_helpful BOOLEAN NOT NULL,
	resolution_time_minutes INT,
	comment TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_solution ON feedback (solution_id);

CREATE TABLE IF NOT EXISTS pattern_relationships (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	from_pattern_id UUID NOT NULL REFERENCES patterns (id) ON DELETE CASCADE,
	to_pattern_id UUID NOT NULL REFERENCES patterns (id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL
		CHECK (relationship_type IN ('similar', 'leads_to', 'caused_by', 'semantic', 'alternative')),
	similarity_score DOUBLE PRECISION NOT NULL
		CHECK (similarity_score >= 0 AND similarity_score <= 1),
	strength DOUBLE PRECISION NOT NULL
		CHECK (strength >= 0 AND strength <= 1),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (from_pattern_id <> to_pattern_id),
	UNIQUE (from_pattern_id, to_pattern_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS technologies (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('language', 'framework', 'tool')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS technology_relationships (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	from_slug TEXT NOT NULL REFERENCES technologies (slug) ON DELETE CASCADE,
	to_slug TEXT NOT NULL REFERENCES technologies (slug) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL
		CHECK (relationship_type IN ('dependency', 'alternative', 'complementary', 'migration_target')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (from_slug, to_slug, relationship_type)
);

CREATE TABLE IF NOT EXISTS instances (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	ide_version TEXT NOT NULL,
	instance_url TEXT,
	api_key TEXT NOT NULL UNIQUE,
	capabilities TEXT[] NOT NULL DEFAULT '{}',
	patterns_submitted BIGINT NOT NULL DEFAULT 0,
	solutions_submitted BIGINT NOT NULL DEFAULT 0,
	feedback_given BIGINT NOT NULL DEFAULT 0,
	last_sync_at TIMESTAMPTZ,
	total_sync_count BIGINT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true,
	registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_history (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	instance_id UUID NOT NULL REFERENCES instances (id),
	patterns_synced INT NOT NULL DEFAULT 0,
	solutions_synced INT NOT NULL DEFAULT 0,
	feedback_synced INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK (status IN ('success', 'partial', 'failed')),
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error_detail TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sync_history_instance ON sync_history (instance_id, created_at DESC);
`

// EnsureSchema applies the registry DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
