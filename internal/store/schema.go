package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id                  UUID PRIMARY KEY,
		owner_id            TEXT NOT NULL,
		domain              TEXT NOT NULL,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		competitors         TEXT[] NOT NULL DEFAULT '{}',
		isolated            BOOLEAN NOT NULL DEFAULT FALSE,
		is_local_brand      BOOLEAN NOT NULL DEFAULT FALSE,
		location            TEXT NOT NULL DEFAULT '',
		analysis_session_id TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS brands_owner_normal_idx
		ON brands (owner_id) WHERE NOT isolated`,
	`CREATE TABLE IF NOT EXISTS categories (
		id                  UUID PRIMARY KEY,
		brand_id            UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		name                TEXT NOT NULL,
		analysis_session_id TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_brand_name_idx
		ON categories (brand_id, (lower(name)))`,
	`CREATE TABLE IF NOT EXISTS prompts (
		id                  UUID PRIMARY KEY,
		brand_id            UUID NOT NULL,
		category_id         UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		text                TEXT NOT NULL,
		analysis_session_id TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS prompts_session_idx ON prompts (analysis_session_id)`,
	`CREATE TABLE IF NOT EXISTS ai_responses (
		id                  UUID PRIMARY KEY,
		prompt_id           UUID NOT NULL,
		category_id         UUID NOT NULL,
		brand_id            UUID NOT NULL,
		user_id             TEXT NOT NULL DEFAULT '',
		text                TEXT NOT NULL,
		model               TEXT NOT NULL DEFAULT '',
		input_tokens        INTEGER NOT NULL DEFAULT 0,
		output_tokens       INTEGER NOT NULL DEFAULT 0,
		cost                DOUBLE PRECISION NOT NULL DEFAULT 0,
		analysis_session_id TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ai_responses_session_idx ON ai_responses (analysis_session_id)`,
	`CREATE INDEX IF NOT EXISTS ai_responses_brand_idx ON ai_responses (brand_id)`,
	`CREATE TABLE IF NOT EXISTS mentions (
		id                  UUID PRIMARY KEY,
		prompt_id           UUID NOT NULL,
		response_id         UUID NOT NULL,
		category_id         UUID NOT NULL,
		brand_id            UUID NOT NULL,
		company_name        TEXT NOT NULL,
		matched_text        TEXT NOT NULL DEFAULT '',
		confidence          DOUBLE PRECISION NOT NULL DEFAULT 1,
		analysis_session_id TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS mentions_response_company_idx
		ON mentions (response_id, company_name)`,
	`CREATE INDEX IF NOT EXISTS mentions_session_idx ON mentions (analysis_session_id)`,
	`CREATE TABLE IF NOT EXISTS citations (
		id                  UUID PRIMARY KEY,
		prompt_id           UUID NOT NULL,
		response_id         UUID NOT NULL,
		brand_id            UUID NOT NULL,
		url                 TEXT NOT NULL,
		domain              TEXT NOT NULL,
		is_primary          BOOLEAN NOT NULL DEFAULT FALSE,
		analysis_session_id TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS citations_response_url_idx ON citations (response_id, url)`,
	`CREATE INDEX IF NOT EXISTS citations_session_idx ON citations (analysis_session_id)`,
	`CREATE TABLE IF NOT EXISTS competitor_seeds (
		id                  UUID PRIMARY KEY,
		brand_id            UUID NOT NULL,
		name                TEXT NOT NULL,
		source              TEXT NOT NULL DEFAULT '',
		analysis_session_id TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS share_of_voice (
		id                  UUID PRIMARY KEY,
		brand_id            UUID NOT NULL,
		brand_name          TEXT NOT NULL,
		category_id         UUID,
		analysis_session_id TEXT NOT NULL DEFAULT '',
		competitors         TEXT[] NOT NULL DEFAULT '{}',
		total_mentions      INTEGER NOT NULL,
		total_responses     INTEGER NOT NULL,
		mention_counts      JSONB NOT NULL,
		share_of_voice      JSONB NOT NULL,
		brand_share         DOUBLE PRECISION NOT NULL,
		coverage            DOUBLE PRECISION NOT NULL,
		ai_visibility_score DOUBLE PRECISION NOT NULL,
		calculated_at       TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS share_of_voice_brand_idx ON share_of_voice (brand_id, calculated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS share_of_voice_session_idx ON share_of_voice (analysis_session_id, calculated_at DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
