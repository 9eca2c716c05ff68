// internal/app/dispatch_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/guild"
	domainTelegram "github.com/KawaiiKelp/ohaasa-bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// Dispatcher executes one fetch→translate→publish run for a guild. The
// scheduler and the manual /horoscope command both go through it; only the
// scheduler updates the guild's last-post marker, so manual runs can repeat.
type Dispatcher interface {
	Dispatch(ctx context.Context, g *guild.Guild) error
}

type DispatchService struct {
	rankings  RankingProvider
	publisher domainTelegram.Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

func NewDispatchService(rankings RankingProvider, publisher domainTelegram.Publisher, logger *logrus.Entry) *DispatchService {
	return &DispatchService{
		rankings:  rankings,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch produces today's ranking for the guild and hands it to the
// publisher. Any pipeline failure is reported to the destination chat as a
// user-visible notice; retries already happened inside the translation
// client, so none are attempted here.
func (s *DispatchService) Dispatch(ctx context.Context, g *guild.Guild) error {
	log := s.logger.WithField("guild_id", g.ID)

	if !g.ChannelID.Valid {
		log.Warn("Dispatch requested for guild without a destination channel")
		return ErrDestinationUnresolvable
	}
	chatID := g.ChannelID.Int64
	mentionText := ResolveMentionText(g)

	items, err := s.rankings.GetOrCompute(ctx, g.ID, g.GeminiAPIKey)
	if err != nil {
		log.WithError(err).Error("Failed to produce today's ranking")
		if pubErr := s.publisher.PublishFailure(chatID, mentionText); pubErr != nil {
			log.WithError(pubErr).Error("Failed to deliver failure notice")
		}
		return err
	}

	if err := s.publisher.PublishRanking(chatID, s.now(), items, mentionText); err != nil {
		log.WithError(err).Error("Failed to publish ranking")
		return fmt.Errorf("failed to publish ranking for guild %d: %w", g.ID, err)
	}

	log.WithField("item_count", len(items)).Info("Ranking published")
	return nil
}

// ResolveMentionText turns the guild's announcement settings into the text
// prepended to the daily post: "@all" for everyone, an inline member mention
// for role mode, nothing otherwise.
func ResolveMentionText(g *guild.Guild) string {
	switch g.MentionMode {
	case guild.MentionEveryone:
		return "@all"
	case guild.MentionRole:
		if g.MentionRoleID.Valid {
			return fmt.Sprintf("[📣](tg://user?id=%d)", g.MentionRoleID.Int64)
		}
	}
	return ""
}
