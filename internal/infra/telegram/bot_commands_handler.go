// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands wires the generic /start and /help commands.
func RegisterBotCommands(b *telebot.Bot, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		return c.Send("안녕하세요! 🌙 저는 매일 오하아사 별자리 운세를 번역해서 게시하는 봇입니다.\n" +
			"그룹 채팅에 초대한 뒤 /help 로 설정 방법을 확인해 주세요.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /help command")

		var helpText strings.Builder
		helpText.WriteString("사용 가능한 명령어:\n\n")
		helpText.WriteString("`/setchannel`\n - 이 채팅을 운세 게시 대상으로 설정합니다. (관리자)\n\n")
		helpText.WriteString("`/setapikey <키>`\n - 이 채팅에서 사용할 Gemini API 키를 설정합니다. (관리자)\n\n")
		helpText.WriteString("`/settime <시> [분]`\n - 매일 자동 게시 시각을 설정합니다. 24시간 기준, 기본 08:00. (관리자)\n\n")
		helpText.WriteString("`/mention <none|everyone|role> [멤버 ID]`\n - 게시 시 멘션 방식을 설정합니다. (관리자)\n\n")
		helpText.WriteString("`/config`\n - 현재 설정을 확인합니다.\n\n")
		helpText.WriteString("`/horoscope`\n - 지금 바로 운세를 게시합니다. 자동 게시 일정에는 영향을 주지 않습니다. (소유자)\n\n")
		helpText.WriteString("`/help`\n - 이 도움말을 표시합니다.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
