package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers /start and /help. The bot only serves the administrator;
// members are reached by email.
func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send(fmt.Sprintf("Olá, %s! O bot de cobrança está ativo. Use /help para ver os comandos.", c.Sender().FirstName))
		}
		logCtx.Info("User is unknown")
		return c.Send("Este bot é de uso exclusivo da administração da cooperativa.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("Nenhum comando disponível para você.")
		}
		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Comandos da administração:\n\n")
	helpText.WriteString("`/delinquents`\n - Cooperados em atraso ou com vencimento nos próximos 7 dias.\n\n")
	helpText.WriteString("`/confirm_payment <ID> [AAAA-MM-DD]`\n - Confirmar um pagamento. Sem data, usa a data de hoje.\n\n")
	helpText.WriteString("`/run_dunning`\n - Executar agora a rodada de cobrança (lembretes, suspensões e reativações).\n\n")
	helpText.WriteString("`/test_email <email>`\n - Enviar um email de teste.\n\n")
	helpText.WriteString("`/welcome <ID do cooperado>`\n - Enviar o email de boas-vindas.\n\n")
	helpText.WriteString("`/help`\n - Mostrar esta mensagem.")
	return helpText.String()
}
