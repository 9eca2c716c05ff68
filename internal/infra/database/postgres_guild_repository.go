package database

import (
	"context"
	"database/sql"
	"fmt" // For error wrapping

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/guild"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const guildSchema = `
CREATE TABLE IF NOT EXISTS guilds (
    id              BIGINT PRIMARY KEY,
    channel_id      BIGINT,
    post_hour       INT NOT NULL DEFAULT 8,
    post_minute     INT NOT NULL DEFAULT 0,
    gemini_api_key  TEXT NOT NULL DEFAULT '',
    last_post_date  VARCHAR(8),
    mention_mode    VARCHAR(16) NOT NULL DEFAULT 'none',
    mention_role_id BIGINT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type PostgresGuildRepository struct {
	db *sql.DB
}

func NewPostgresGuildRepository(db *sql.DB) *PostgresGuildRepository {
	return &PostgresGuildRepository{db: db}
}

// EnsureSchema creates the guilds table if it does not exist yet. Called once
// at startup so a fresh deployment needs no manual migration step.
func (r *PostgresGuildRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, guildSchema); err != nil {
		return fmt.Errorf("error ensuring guilds schema: %w", err)
	}
	return nil
}

func (r *PostgresGuildRepository) LoadAll(ctx context.Context) ([]*guild.Guild, error) {
	query := `SELECT id, channel_id, post_hour, post_minute, gemini_api_key, last_post_date, mention_mode, mention_role_id, created_at, updated_at
              FROM guilds ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error loading guild settings: %w", err)
	}
	defer rows.Close()

	guilds := make([]*guild.Guild, 0)
	for rows.Next() {
		g := &guild.Guild{}
		if err := rows.Scan(&g.ID, &g.ChannelID, &g.PostHour, &g.PostMinute, &g.GeminiAPIKey,
			&g.LastPostDate, &g.MentionMode, &g.MentionRoleID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning guild row: %w", err)
		}
		guilds = append(guilds, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guild rows: %w", err)
	}
	return guilds, nil
}

// SaveAll upserts the full guild set in one transaction. The registry calls
// this on every mutation, so the write must be all-or-nothing: a partial save
// would desync the in-memory view from the store.
func (r *PostgresGuildRepository) SaveAll(ctx context.Context, guilds []*guild.Guild) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for guild save: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO guilds (id, channel_id, post_hour, post_minute, gemini_api_key, last_post_date, mention_mode, mention_role_id, created_at, updated_at)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
                                         ON CONFLICT (id) DO UPDATE SET
                                             channel_id = EXCLUDED.channel_id,
                                             post_hour = EXCLUDED.post_hour,
                                             post_minute = EXCLUDED.post_minute,
                                             gemini_api_key = EXCLUDED.gemini_api_key,
                                             last_post_date = EXCLUDED.last_post_date,
                                             mention_mode = EXCLUDED.mention_mode,
                                             mention_role_id = EXCLUDED.mention_role_id,
                                             updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for guild save: %w", err)
	}
	defer stmt.Close()

	for _, g := range guilds {
		_, err := stmt.ExecContext(ctx, g.ID, g.ChannelID, g.PostHour, g.PostMinute,
			g.GeminiAPIKey, g.LastPostDate, g.MentionMode, g.MentionRoleID)
		if err != nil {
			return fmt.Errorf("error executing statement for guild save (guild %d): %w", g.ID, err)
		}
	}

	return txn.Commit()
}
