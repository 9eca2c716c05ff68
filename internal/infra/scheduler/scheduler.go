package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/app"
	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/guild"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const dispatchTimeout = 2 * time.Minute

// PostScheduler evaluates every guild's configured post time on a fixed tick
// and triggers at most one dispatch per guild per calendar day. The day marker
// is persisted before the dispatch task is spawned, which closes the race
// between a slow dispatch and the next tick.
type PostScheduler struct {
	cronEngine *cron.Cron
	registry   *app.GuildRegistry
	dispatcher app.Dispatcher
	logger     *logrus.Entry
	tick       time.Duration

	now func() time.Time
	wg  sync.WaitGroup // tracks in-flight dispatch goroutines
}

func NewPostScheduler(
	registry *app.GuildRegistry,
	dispatcher app.Dispatcher,
	logger *logrus.Entry,
	tick time.Duration, // e.g. 30 * time.Second
) *PostScheduler {
	return &PostScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		tick:       tick,
		now:        time.Now,
	}
}

func (s *PostScheduler) Start() {
	s.logger.Info("Starting post scheduler...")

	_, err := s.cronEngine.AddFunc(fmt.Sprintf("@every %s", s.tick), func() {
		s.runTick(s.now())
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add scheduler tick job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.WithField("tick_interval", s.tick.String()).Info("Post scheduler started")
}

// runTick evaluates all guilds against a single captured "now" so no guild
// within the tick sees a torn clock reading.
func (s *PostScheduler) runTick(now time.Time) {
	today := now.Format(app.DayKeyFormat)

	for _, g := range s.registry.Snapshot() {
		if !g.Configured() {
			continue
		}
		if g.LastPostDate.Valid && g.LastPostDate.String == today {
			continue
		}
		// Exact minute match: a guild is eligible for one minute per day. A
		// missed tick during that minute means no post until the next day.
		if g.PostHour != now.Hour() || g.PostMinute != now.Minute() {
			continue
		}

		s.trigger(g, today)
	}
}

// trigger marks the guild as served for today and spawns the dispatch. The
// marker write is synchronous and must succeed first: if persistence fails
// the dispatch is aborted, since the marker is the sole duplicate guard and a
// post without a committed marker could repeat after a restart.
//
// Cron runs each tick activation in its own goroutine, so a tick slowed by
// the marker write can overlap the next one. The snapshot check in runTick is
// therefore only a fast path; the authoritative check-and-set happens inside
// Mutate, which serializes all mutations, so a second tick that raced past
// the snapshot still sees the committed marker here and backs off.
func (s *PostScheduler) trigger(g *guild.Guild, today string) {
	log := s.logger.WithFields(logrus.Fields{
		"guild_id":   g.ID,
		"channel_id": g.ChannelID.Int64,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alreadyMarked := false
	marked, err := s.registry.Mutate(ctx, g.ID, func(gg *guild.Guild) {
		if gg.LastPostDate.Valid && gg.LastPostDate.String == today {
			alreadyMarked = true
			return
		}
		gg.LastPostDate = sql.NullString{String: today, Valid: true}
	})
	if err != nil {
		log.WithError(err).Error("Could not persist last-post marker; skipping dispatch")
		return
	}
	if alreadyMarked {
		log.Debug("Guild already served today; concurrent tick backing off")
		return
	}

	log.Info("Post time matched; dispatching")
	s.wg.Add(1)
	go func(gg *guild.Guild) {
		defer s.wg.Done()
		dispatchCtx, cancelDispatch := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancelDispatch()
		if err := s.dispatcher.Dispatch(dispatchCtx, gg); err != nil {
			log.WithError(err).Error("Scheduled dispatch failed")
		}
	}(marked)
}

func (s *PostScheduler) Stop() {
	s.logger.Info("Stopping post scheduler...")
	ctx := s.cronEngine.Stop() // Stops new ticks, waits for a running tick.
	<-ctx.Done()
	s.wg.Wait() // Let in-flight dispatches finish.
	s.logger.Info("Post scheduler gracefully stopped")
}
