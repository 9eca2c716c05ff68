// internal/infra/telegram/publisher.go
package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/horoscope"
	"github.com/KawaiiKelp/ohaasa-bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RankingPublisher renders the daily ranking and delivers it to a destination
// chat: a loading message that gets edited into the summary (top/bottom sign
// lists), then two detail messages posted as replies to the summary.
type RankingPublisher struct {
	bot     *telebot.Bot
	pageURL string // linked as the original source
	logger  *logrus.Entry
}

func NewRankingPublisher(b *telebot.Bot, cfg *config.AppConfig, logger *logrus.Entry) *RankingPublisher {
	return &RankingPublisher{
		bot:     b,
		pageURL: cfg.OhaasaPageURL,
		logger:  logger,
	}
}

var sendOpts = &telebot.SendOptions{
	ParseMode:             telebot.ModeMarkdown,
	DisableWebPagePreview: true,
}

// PublishRanking posts the translated ranking to chatID.
func (p *RankingPublisher) PublishRanking(chatID int64, postedAt time.Time, items []horoscope.RankedItem, mentionText string) error {
	chat := &telebot.Chat{ID: chatID}

	loadingText := "✨ *[오하아사 별자리 운세]* 데이터를 가져오는 중입니다..."
	if mentionText != "" {
		loadingText = mentionText + " " + loadingText
	}
	loadingMsg, err := p.bot.Send(chat, loadingText, sendOpts)
	if err != nil {
		return fmt.Errorf("failed to send loading message to chat %d: %w", chatID, err)
	}

	summary, err := p.bot.Edit(loadingMsg, formatSummary(postedAt, items, mentionText, p.pageURL), sendOpts)
	if err != nil {
		return fmt.Errorf("failed to edit summary into chat %d: %w", chatID, err)
	}

	// Detail messages go out as replies to the summary, keeping the long
	// descriptions out of the lead message.
	top, bottom := splitRanking(items)
	detailOpts := &telebot.SendOptions{
		ParseMode:             telebot.ModeMarkdown,
		DisableWebPagePreview: true,
		ReplyTo:               summary,
	}
	if _, err := p.bot.Send(chat, formatDetails("🥇 1위 ~ 6위 상세 운세", top), detailOpts); err != nil {
		return fmt.Errorf("failed to send top detail to chat %d: %w", chatID, err)
	}
	if len(bottom) > 0 {
		if _, err := p.bot.Send(chat, formatDetails("⬇️ 7위 ~ 12위 상세 운세", bottom), detailOpts); err != nil {
			return fmt.Errorf("failed to send bottom detail to chat %d: %w", chatID, err)
		}
	}

	p.logger.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"item_count": len(items),
	}).Info("Ranking delivered")
	return nil
}

// PublishFailure posts a user-visible notice that today's ranking could not
// be produced.
func (p *RankingPublisher) PublishFailure(chatID int64, mentionText string) error {
	text := "❌ 오늘자 운세 데이터를 불러오지 못했습니다. 잠시 후 다시 시도해 주세요."
	if mentionText != "" {
		text = mentionText + " " + text
	}
	if _, err := p.bot.Send(&telebot.Chat{ID: chatID}, text, sendOpts); err != nil {
		return fmt.Errorf("failed to send failure notice to chat %d: %w", chatID, err)
	}
	return nil
}

func splitRanking(items []horoscope.RankedItem) (top, bottom []horoscope.RankedItem) {
	mid := len(items)
	if mid > 6 {
		mid = 6
	}
	return items[:mid], items[mid:]
}

func formatSummary(postedAt time.Time, items []horoscope.RankedItem, mentionText, pageURL string) string {
	var b strings.Builder
	if mentionText != "" {
		b.WriteString(mentionText)
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("📅 *%s 오늘의 오하아사 별자리 랭킹*\n", formatKoreanDate(postedAt)))
	b.WriteString(fmt.Sprintf("[원문 출처: 아사히 방송 오하아사](%s)\n\n", pageURL))

	top, bottom := splitRanking(items)
	b.WriteString("🥇 *상위 랭킹 (1위 ~ 6위)*\n")
	b.WriteString(formatSignList(top))
	if len(bottom) > 0 {
		b.WriteString("\n⬇️ *하위 랭킹 (7위 ~ 12위)*\n")
		b.WriteString(formatSignList(bottom))
	}
	return b.String()
}

func formatSignList(items []horoscope.RankedItem) string {
	if len(items) == 0 {
		return "데이터 없음\n"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString(fmt.Sprintf("*%s* — %s\n", item.Rank, item.SignKO))
	}
	return b.String()
}

func formatDetails(title string, items []horoscope.RankedItem) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s*\n", title))
	for _, item := range items {
		b.WriteString(fmt.Sprintf("\n*%s %s*\n%s\n", item.Rank, item.SignKO, item.DescriptionKO))
	}
	return b.String()
}

func formatKoreanDate(t time.Time) string {
	return fmt.Sprintf("%d년 %02d월 %02d일", t.Year(), int(t.Month()), t.Day())
}
