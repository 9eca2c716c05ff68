// internal/app/guild_registry.go
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/guild"

	"github.com/sirupsen/logrus"
)

// GuildRegistry is the in-memory view of every guild's posting settings,
// synchronized with the settings store. The store is the durability boundary:
// Mutate applies a change to a copy, persists the full set, and only then
// commits the change to memory. A failed persist leaves the in-memory state
// untouched so the registry never claims a commit the store does not have.
type GuildRegistry struct {
	repo   guild.Repository
	logger *logrus.Entry

	// mu guards the map and is never held across a store write; saveMu
	// serializes whole mutations so two SaveAll calls cannot interleave
	// with different snapshots.
	mu     sync.Mutex
	saveMu sync.Mutex
	guilds map[int64]*guild.Guild
}

func NewGuildRegistry(repo guild.Repository, logger *logrus.Entry) *GuildRegistry {
	return &GuildRegistry{
		repo:   repo,
		logger: logger,
		guilds: make(map[int64]*guild.Guild),
	}
}

// Load replaces the in-memory view with the store's contents. Called once at
// process start, before the scheduler or any handler runs.
func (r *GuildRegistry) Load(ctx context.Context) error {
	loaded, err := r.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load guild settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.guilds = make(map[int64]*guild.Guild, len(loaded))
	for _, g := range loaded {
		r.guilds[g.ID] = g
	}
	r.logger.WithField("guild_count", len(loaded)).Info("Guild settings loaded")
	return nil
}

// Get returns a copy of the guild's settings, if the guild is known.
func (r *GuildRegistry) Get(id int64) (*guild.Guild, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guilds[id]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// GetOrCreateDefault returns the guild's settings, lazily creating and
// persisting a default record for a guild seen for the first time.
func (r *GuildRegistry) GetOrCreateDefault(ctx context.Context, id int64) (*guild.Guild, error) {
	if g, ok := r.Get(id); ok {
		return g, nil
	}
	return r.Mutate(ctx, id, func(*guild.Guild) {})
}

// Mutate applies fn to the guild's settings (creating defaults for an unknown
// guild) and persists the result synchronously before returning. The returned
// value is a copy of the committed state.
func (r *GuildRegistry) Mutate(ctx context.Context, id int64, fn func(*guild.Guild)) (*guild.Guild, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	target, ok := r.guilds[id]
	if !ok {
		target = guild.NewDefault(id)
	}
	updated := target.Clone()
	fn(updated)

	snapshot := make([]*guild.Guild, 0, len(r.guilds)+1)
	for gid, g := range r.guilds {
		if gid == id {
			continue
		}
		snapshot = append(snapshot, g)
	}
	snapshot = append(snapshot, updated)
	r.mu.Unlock()

	if err := r.repo.SaveAll(ctx, snapshot); err != nil {
		r.logger.WithError(err).WithField("guild_id", id).Error("Failed to persist guild settings; mutation discarded")
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	r.mu.Lock()
	r.guilds[id] = updated
	r.mu.Unlock()
	return updated.Clone(), nil
}

// Snapshot returns copies of every registered guild's settings, for the
// scheduler to evaluate without holding the registry lock.
func (r *GuildRegistry) Snapshot() []*guild.Guild {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*guild.Guild, 0, len(r.guilds))
	for _, g := range r.guilds {
		out = append(out, g.Clone())
	}
	return out
}
