// internal/app/horoscope_service.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DayKeyFormat is the calendar-day cache key, in the process's local time.
// One global locale: every guild shares the same notion of "today".
const DayKeyFormat = "20060102"

// RankingProvider supplies the translated ranking for one guild and the
// current day. Extracted as an interface so the dispatcher can be tested with
// a fake pipeline.
type RankingProvider interface {
	GetOrCompute(ctx context.Context, guildID int64, apiKey string) ([]horoscope.RankedItem, error)
}

type cacheEntry struct {
	date  string
	items []horoscope.RankedItem
}

// HoroscopeService produces the day's translated ranking for a guild,
// memoizing the result until the day rolls over. Entries are replaced
// wholesale and never partially updated; failures are never cached, so the
// next request for the same day retries the full pipeline.
type HoroscopeService struct {
	fetcher    horoscope.Fetcher
	translator horoscope.Translator
	logger     *logrus.Entry

	mu    sync.Mutex // guards cache map access only, never held across a network call
	cache map[int64]cacheEntry

	// flight collapses concurrent pipeline runs for the same (guild, day),
	// e.g. a scheduled tick racing a manual /horoscope trigger.
	flight singleflight.Group

	now func() time.Time
}

func NewHoroscopeService(f horoscope.Fetcher, t horoscope.Translator, logger *logrus.Entry) *HoroscopeService {
	return &HoroscopeService{
		fetcher:    f,
		translator: t,
		logger:     logger,
		cache:      make(map[int64]cacheEntry),
		now:        time.Now,
	}
}

// GetOrCompute returns today's translated ranking for the guild, serving from
// cache when an entry stamped with today exists and running the fetch+translate
// pipeline otherwise. An entry stamped with any other day is a miss and is
// superseded on the next successful run.
func (s *HoroscopeService) GetOrCompute(ctx context.Context, guildID int64, apiKey string) ([]horoscope.RankedItem, error) {
	today := s.now().Format(DayKeyFormat)

	if items, ok := s.cached(guildID, today); ok {
		s.logger.WithField("guild_id", guildID).Debug("Serving cached ranking")
		return items, nil
	}

	flightKey := fmt.Sprintf("%d:%s", guildID, today)
	v, err, _ := s.flight.Do(flightKey, func() (interface{}, error) {
		// A dupe caller may land here after the winner stored the entry but
		// before singleflight forgot the key; re-check before going upstream.
		if items, ok := s.cached(guildID, today); ok {
			return items, nil
		}

		// The flight's outcome is shared with waiters from other triggers, so
		// the run must not die with the first caller's deadline. The HTTP
		// clients carry their own timeouts, which keeps the run bounded.
		items, err := s.produce(context.WithoutCancel(ctx), guildID, apiKey)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[guildID] = cacheEntry{date: today, items: items}
		s.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers get their own slice so the cached entry stays immutable.
	return append([]horoscope.RankedItem(nil), v.([]horoscope.RankedItem)...), nil
}

func (s *HoroscopeService) cached(guildID int64, today string) ([]horoscope.RankedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[guildID]
	if !ok || entry.date != today || len(entry.items) == 0 {
		return nil, false
	}
	return append([]horoscope.RankedItem(nil), entry.items...), true
}

// produce runs the full pipeline: source fetch, then translation with the
// guild's credential. Several seconds of sequential network calls plus
// retries, so callers must treat it as long-running.
func (s *HoroscopeService) produce(ctx context.Context, guildID int64, apiKey string) ([]horoscope.RankedItem, error) {
	log := s.logger.WithField("guild_id", guildID)
	log.Info("Producing today's ranking")

	raw, err := s.fetcher.FetchToday(ctx)
	if err != nil {
		log.WithError(err).Error("Source fetch failed")
		return nil, err
	}

	items, err := s.translator.Translate(ctx, raw, apiKey)
	if err != nil {
		log.WithError(err).Error("Translation failed")
		return nil, err
	}
	if len(items) == 0 {
		log.Error("Translation returned no items")
		return nil, fmt.Errorf("translation returned no items")
	}
	if len(items) < horoscope.ExpectedItemCount {
		log.WithField("item_count", len(items)).Warn("Fewer translated items than expected")
	}

	log.WithField("item_count", len(items)).Info("Ranking produced")
	return items, nil
}

// Warm pre-computes the day's ranking for a guild in the background so the
// first scheduled post is served from cache. Errors are logged, not surfaced.
func (s *HoroscopeService) Warm(ctx context.Context, guildID int64, apiKey string) {
	go func() {
		if _, err := s.GetOrCompute(ctx, guildID, apiKey); err != nil {
			s.logger.WithError(err).WithField("guild_id", guildID).Warn("Cache warm-up failed")
		}
	}()
}
