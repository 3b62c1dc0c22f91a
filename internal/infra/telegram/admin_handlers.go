package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"cooperative_billing/internal/app"
	idb "cooperative_billing/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers the admin commands and the inline confirm button.
// Every handler checks the sender before calling the service, which checks again.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/delinquents", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/delinquents",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		records, err := adminService.ListDelinquents(ctx, c.Sender().ID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to compute delinquency report")
			return c.Send(fmt.Sprintf("Erro ao gerar o relatório de inadimplência: %s", err.Error()))
		}
		handlerLogger.WithField("records", len(records)).Info("Delinquency report sent")

		text, markup := formatDelinquents(records)
		if markup == nil {
			return c.Send(text)
		}
		return c.Send(text, markup)
	})

	b.Handle("/confirm_payment", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/confirm_payment",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		paymentID, paidOn, err := parseConfirmArgs(c.Args())
		if err != nil {
			handlerLogger.WithError(err).Warn("Invalid command format")
			return c.Send("Formato inválido. Use: /confirm_payment <ID do pagamento> [AAAA-MM-DD]")
		}
		return c.Send(confirmPayment(ctx, adminService, c.Sender().ID, paymentID, paidOn, handlerLogger))
	})

	b.Handle(&telebot.Btn{Unique: confirmButtonUnique}, func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "confirm_button",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
		}

		paymentID, err := parseConfirmCallback(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: "Erro ao processar o botão."})
		}
		reply := confirmPayment(ctx, adminService, c.Sender().ID, paymentID, time.Time{}, handlerLogger)
		if err := c.Respond(&telebot.CallbackResponse{Text: "Processado."}); err != nil {
			handlerLogger.WithError(err).Warn("Failed to acknowledge callback")
		}
		return c.Send(reply)
	})

	b.Handle("/run_dunning", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/run_dunning",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		if err := c.Send("Iniciando rodada de cobrança..."); err != nil {
			handlerLogger.WithError(err).Warn("Failed to acknowledge command")
		}
		summary, err := adminService.RunDunning(ctx, c.Sender().ID)
		if summary == nil {
			handlerLogger.WithError(err).Error("Dunning run failed")
			return c.Send(fmt.Sprintf("Falha na rodada de cobrança: %v", err))
		}
		text := summary.String()
		if err != nil {
			handlerLogger.WithError(err).Warn("Dunning run finished with errors")
			text += fmt.Sprintf("\nErros: %v", err)
		}
		return c.Send(text)
	})

	b.Handle("/test_email", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/test_email",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Formato inválido. Use: /test_email <email>")
		}
		addr, err := mail.ParseAddress(args[0])
		if err != nil {
			return c.Send(fmt.Sprintf("Endereço de email inválido: %s", args[0]))
		}

		if err := adminService.SendTestNotification(ctx, c.Sender().ID, addr.Address); err != nil {
			handlerLogger.WithError(err).Error("Test notification failed")
			return c.Send(describeNotifierError(err))
		}
		handlerLogger.WithField("email", addr.Address).Info("Test notification sent")
		return c.Send(fmt.Sprintf("Email de teste enviado para %s.", addr.Address))
	})

	b.Handle("/welcome", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/welcome",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Formato inválido. Use: /welcome <ID do cooperado>")
		}
		memberID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Erro: o ID do cooperado deve ser um número.")
		}

		m, err := adminService.SendWelcome(ctx, c.Sender().ID, memberID)
		if err != nil {
			if errors.Is(err, idb.ErrMemberNotFound) {
				return c.Send(fmt.Sprintf("Cooperado %d não encontrado.", memberID))
			}
			handlerLogger.WithError(err).Error("Welcome notification failed")
			return c.Send(describeNotifierError(err))
		}
		return c.Send(fmt.Sprintf("Boas-vindas enviadas para %s (%s).", m.Name, m.Email))
	})
}

func confirmPayment(ctx context.Context, svc *app.AdminService, senderID, paymentID int64, paidOn time.Time, logger *logrus.Entry) string {
	logger = logger.WithField("payment_id", paymentID)
	p, err := svc.ConfirmPayment(ctx, senderID, paymentID, paidOn)
	switch {
	case err == nil:
		logger.Info("Payment confirmed by admin")
		return fmt.Sprintf("Pagamento #%d confirmado em %s (R$ %s).", p.ID, p.PaymentDate.Time.Format(time.DateOnly), p.Amount.StringFixed(2))
	case errors.Is(err, app.ErrAdminNotAuthorized):
		return msgUnauthorized
	case errors.Is(err, idb.ErrPaymentNotFound):
		logger.WithError(err).Warn("Payment to confirm not found")
		return fmt.Sprintf("Pagamento #%d não encontrado.", paymentID)
	case errors.Is(err, app.ErrPaymentAlreadyConfirmed):
		return fmt.Sprintf("Pagamento #%d já estava confirmado.", paymentID)
	case errors.Is(err, app.ErrPaymentBeforeEnrollment):
		return "Erro: a data de pagamento é anterior à adesão do cooperado."
	default:
		logger.WithError(err).Error("Failed to confirm payment")
		return fmt.Sprintf("Erro ao confirmar o pagamento: %s", err.Error())
	}
}

func describeNotifierError(err error) string {
	var cfgErr *app.ConfigurationError
	if errors.As(err, &cfgErr) {
		return "O envio de emails não está configurado (RESEND_API_KEY)."
	}
	return fmt.Sprintf("Falha no envio: %s", err.Error())
}
