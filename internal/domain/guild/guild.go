package guild

import (
	"database/sql"
	"time"
)

// MentionMode controls who gets pinged when the daily horoscope is posted.
type MentionMode string

const (
	MentionNone     MentionMode = "none"
	MentionEveryone MentionMode = "everyone"
	MentionRole     MentionMode = "role"
)

// Guild holds the per-community posting settings.
// Corresponds to the 'guilds' table.
type Guild struct {
	ID            int64          // Chat the guild was configured from
	ChannelID     sql.NullInt64  // Destination chat for daily posts; unset until /setchannel
	PostHour      int            // 0-23, local wall clock
	PostMinute    int            // 0-59
	GeminiAPIKey  string         // Per-guild translation credential; empty until /setapikey
	LastPostDate  sql.NullString // YYYYMMDD of the last scheduled post; guards against double posting
	MentionMode   MentionMode
	MentionRoleID sql.NullInt64 // Only meaningful when MentionMode == MentionRole
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDefault returns the settings a guild starts with before any configuration
// command has run: post at 08:00, no destination, no credential, no mention.
func NewDefault(id int64) *Guild {
	return &Guild{
		ID:          id,
		PostHour:    8,
		PostMinute:  0,
		MentionMode: MentionNone,
	}
}

// Clone returns a copy so callers can hand out guild settings without
// exposing registry-owned state to mutation.
func (g *Guild) Clone() *Guild {
	c := *g
	return &c
}

// Configured reports whether the guild can be served by the scheduler:
// it needs both a destination chat and a translation credential.
func (g *Guild) Configured() bool {
	return g.ChannelID.Valid && g.GeminiAPIKey != ""
}
