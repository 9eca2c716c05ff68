package telegram

import (
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"
)

// Publisher renders and delivers the daily ranking to a guild's destination
// chat. It owns all formatting and message-length concerns; the application
// layer only supplies structured data and the resolved mention text.
type Publisher interface {
	// PublishRanking posts the translated ranking for postedAt to chatID,
	// prepending mentionText (may be empty) to the lead message.
	PublishRanking(chatID int64, postedAt time.Time, items []horoscope.RankedItem, mentionText string) error
	// PublishFailure posts a user-visible notice that today's ranking could
	// not be produced.
	PublishFailure(chatID int64, mentionText string) error
}
