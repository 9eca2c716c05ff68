package telegram

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/KawaiiKelp/ohaasa-bot/internal/app"
	"github.com/KawaiiKelp/ohaasa-bot/internal/domain/guild"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterGuildHandlers registers the per-guild configuration commands and the
// manual dispatch command. Configuration is gated to chat administrators; the
// manual /horoscope trigger is gated to the chat owner, matching who can
// verify posting without consuming the daily schedule.
func RegisterGuildHandlers(
	ctx context.Context,
	b *telebot.Bot,
	registry *app.GuildRegistry,
	dispatcher app.Dispatcher,
	baseLogger *logrus.Entry,
) {
	b.Handle("/setchannel", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/setchannel",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := requireGroupAdmin(b, c); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return err
		}

		chatID := c.Chat().ID
		_, err := registry.Mutate(ctx, chatID, func(g *guild.Guild) {
			g.ChannelID = sql.NullInt64{Int64: chatID, Valid: true}
		})
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to save destination channel")
			return c.Send("❌ 설정을 저장하지 못했습니다. 잠시 후 다시 시도해 주세요.")
		}

		handlerLogger.WithField("channel_id", chatID).Info("Destination channel configured")
		return c.Send("✅ 이제 이 채팅에 오하아사 운세를 게시합니다.")
	})

	b.Handle("/setapikey", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/setapikey",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := requireGroupAdmin(b, c); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return err
		}

		args := c.Args()
		if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
			return c.Send("사용법: /setapikey <Gemini API 키>")
		}
		apiKey := strings.TrimSpace(args[0])

		// The command message contains the secret; best effort removal.
		if err := b.Delete(c.Message()); err != nil {
			handlerLogger.WithError(err).Warn("Could not delete API key message")
		}

		_, err := registry.Mutate(ctx, c.Chat().ID, func(g *guild.Guild) {
			g.GeminiAPIKey = apiKey
		})
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to save API key")
			return c.Send("❌ 설정을 저장하지 못했습니다. 잠시 후 다시 시도해 주세요.")
		}

		handlerLogger.Info("API key configured")
		return c.Send("✅ Gemini API 키를 저장했습니다.")
	})

	b.Handle("/settime", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/settime",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := requireGroupAdmin(b, c); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return err
		}

		args := c.Args()
		if len(args) < 1 || len(args) > 2 {
			return c.Send("사용법: /settime <시(0-23)> [분(0-59)]")
		}

		hour, err := strconv.Atoi(args[0])
		if err != nil || hour < 0 || hour > 23 {
			return c.Send("오류: 시는 0에서 23 사이의 숫자여야 합니다.")
		}
		minute := 0
		if len(args) == 2 {
			minute, err = strconv.Atoi(args[1])
			if err != nil || minute < 0 || minute > 59 {
				return c.Send("오류: 분은 0에서 59 사이의 숫자여야 합니다.")
			}
		}

		_, err = registry.Mutate(ctx, c.Chat().ID, func(g *guild.Guild) {
			g.PostHour = hour
			g.PostMinute = minute
		})
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to save post time")
			return c.Send("❌ 설정을 저장하지 못했습니다. 잠시 후 다시 시도해 주세요.")
		}

		handlerLogger.WithFields(logrus.Fields{"post_hour": hour, "post_minute": minute}).Info("Post time configured")
		return c.Send(fmt.Sprintf("✅ 매일 *%02d:%02d* 에 자동으로 오하아사 운세를 게시합니다.\n시간 기준은 봇 서버의 로컬 시간입니다.", hour, minute),
			&telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/mention", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/mention",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := requireGroupAdmin(b, c); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return err
		}

		args := c.Args()
		if len(args) < 1 {
			return c.Send("사용법: /mention <none|everyone|role> [멤버 ID]")
		}

		mode := guild.MentionMode(strings.ToLower(args[0]))
		var roleID sql.NullInt64
		var reply string

		switch mode {
		case guild.MentionNone:
			reply = "✅ 이제 운세 게시 시 멘션을 하지 않습니다."
		case guild.MentionEveryone:
			reply = "✅ 이제 운세 게시 시 `@all` 을 멘션합니다."
		case guild.MentionRole:
			if len(args) != 2 {
				return c.Send("오류: role 모드에서는 멘션할 멤버 ID를 지정해야 합니다.")
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return c.Send("오류: 멤버 ID는 숫자여야 합니다.")
			}
			roleID = sql.NullInt64{Int64: id, Valid: true}
			reply = fmt.Sprintf("✅ 이제 운세 게시 시 멤버 %d 을(를) 멘션합니다.", id)
		default:
			return c.Send("오류: 멘션 방식은 none, everyone, role 중 하나여야 합니다.")
		}

		_, err := registry.Mutate(ctx, c.Chat().ID, func(g *guild.Guild) {
			g.MentionMode = mode
			g.MentionRoleID = roleID
		})
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to save mention settings")
			return c.Send("❌ 설정을 저장하지 못했습니다. 잠시 후 다시 시도해 주세요.")
		}

		handlerLogger.WithField("mention_mode", string(mode)).Info("Mention settings configured")
		return c.Send(reply, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/config", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/config",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		g, err := registry.GetOrCreateDefault(ctx, c.Chat().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to load guild settings")
			return c.Send("❌ 설정을 불러오지 못했습니다. 잠시 후 다시 시도해 주세요.")
		}

		return c.Send(formatConfigSummary(g), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/horoscope", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/horoscope",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if err := requireGroupOwner(b, c); err != nil {
			handlerLogger.Warn("Unauthorized access attempt")
			return err
		}

		g, ok := registry.Get(c.Chat().ID)
		if !ok || !g.ChannelID.Valid {
			return c.Send("❌ 게시 채팅이 설정되어 있지 않습니다. 먼저 /setchannel 을 실행해 주세요.")
		}
		if g.GeminiAPIKey == "" {
			return c.Send("❌ Gemini API 키가 설정되어 있지 않습니다. 먼저 /setapikey 를 실행해 주세요.")
		}

		// Manual trigger: repeatable on purpose, so the last-post marker is
		// left alone and only scheduled posts consume the daily slot.
		go func() {
			if err := dispatcher.Dispatch(ctx, g); err != nil {
				handlerLogger.WithError(err).Error("Manual dispatch failed")
			}
		}()

		handlerLogger.Info("Manual dispatch started")
		return c.Send("✅ 오늘의 오하아사 운세를 지금 게시합니다.")
	})
}

func formatConfigSummary(g *guild.Guild) string {
	channel := "아직 설정되지 않음 (`/setchannel`)"
	if g.ChannelID.Valid {
		channel = fmt.Sprintf("`%d`", g.ChannelID.Int64)
	}
	apiKey := "❌ 설정되지 않음 (`/setapikey`)"
	if g.GeminiAPIKey != "" {
		apiKey = "✅ 설정됨"
	}
	lastPost := "기록 없음"
	if g.LastPostDate.Valid {
		lastPost = g.LastPostDate.String
	}
	mention := "멘션 없음"
	switch g.MentionMode {
	case guild.MentionEveryone:
		mention = "@all"
	case guild.MentionRole:
		if g.MentionRoleID.Valid {
			mention = fmt.Sprintf("멤버 %d", g.MentionRoleID.Int64)
		}
	}

	var b strings.Builder
	b.WriteString("*오하아사 자동 게시 설정*\n\n")
	b.WriteString(fmt.Sprintf("게시 채팅: %s\n", channel))
	b.WriteString(fmt.Sprintf("자동 게시 시간: %02d:%02d\n", g.PostHour, g.PostMinute))
	b.WriteString(fmt.Sprintf("Gemini API 키: %s\n", apiKey))
	b.WriteString(fmt.Sprintf("멘션 설정: %s\n", mention))
	b.WriteString(fmt.Sprintf("마지막 자동 게시 날짜: %s\n", lastPost))
	return b.String()
}

// requireGroupAdmin allows chat creators and administrators in group chats.
func requireGroupAdmin(b *telebot.Bot, c telebot.Context) error {
	if c.Chat().Type == telebot.ChatPrivate {
		return c.Send("이 명령어는 그룹 채팅에서만 사용할 수 있습니다.")
	}
	admins, err := b.AdminsOf(c.Chat())
	if err != nil {
		return c.Send("❌ 권한을 확인하지 못했습니다. 잠시 후 다시 시도해 주세요.")
	}
	for _, member := range admins {
		if member.User != nil && member.User.ID == c.Sender().ID {
			return nil
		}
	}
	return c.Send("오류: 이 명령어는 채팅 관리자만 사용할 수 있습니다.")
}

// requireGroupOwner allows only the chat creator.
func requireGroupOwner(b *telebot.Bot, c telebot.Context) error {
	if c.Chat().Type == telebot.ChatPrivate {
		return c.Send("이 명령어는 그룹 채팅에서만 사용할 수 있습니다.")
	}
	admins, err := b.AdminsOf(c.Chat())
	if err != nil {
		return c.Send("❌ 권한을 확인하지 못했습니다. 잠시 후 다시 시도해 주세요.")
	}
	for _, member := range admins {
		if member.Role == telebot.Creator && member.User != nil && member.User.ID == c.Sender().ID {
			return nil
		}
	}
	return c.Send("오류: 이 명령어는 채팅 소유자만 사용할 수 있습니다.")
}
