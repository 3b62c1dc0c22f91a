package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cooperative_billing/internal/app"
	"cooperative_billing/internal/domain/billing"

	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Erro: você não tem permissão para executar este comando."
	// Telegram rejects messages above 4096 characters.
	maxMessageLen = 4000
	// confirmButtonUnique routes inline confirm buttons; the button payload is the payment ID.
	confirmButtonUnique = "confirm_payment"
)

// parseConfirmArgs parses "/confirm_payment <paymentID> [YYYY-MM-DD]". A missing date means today.
func parseConfirmArgs(args []string) (int64, time.Time, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, time.Time{}, fmt.Errorf("expected <paymentID> [YYYY-MM-DD], got %d arguments", len(args))
	}
	paymentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || paymentID <= 0 {
		return 0, time.Time{}, fmt.Errorf("invalid payment ID %q", args[0])
	}
	var paidOn time.Time
	if len(args) == 2 {
		paidOn, err = time.Parse(time.DateOnly, args[1])
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("invalid date %q", args[1])
		}
	}
	return paymentID, paidOn, nil
}

// parseConfirmCallback reads the payment ID carried by a confirm button.
func parseConfirmCallback(payload string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid payment ID in callback payload %q", payload)
	}
	return id, nil
}

func severityLabel(c billing.Classification) string {
	switch c.Severity() {
	case "due_soon":
		return "a vencer"
	case "initial":
		return "atraso inicial"
	case "urgent":
		return "atraso urgente"
	case "critical":
		return "atraso crítico"
	default:
		return "em dia"
	}
}

func formatRecord(r app.DelinquencyRecord) string {
	days := fmt.Sprintf("%d dias de atraso", r.Classification.Days)
	if !r.Classification.IsDelinquent() {
		days = fmt.Sprintf("vence em %d dias", r.Classification.Days)
	}
	payment := "ciclo ainda não registrado"
	if r.Payment.IsPersisted() {
		payment = fmt.Sprintf("pagamento #%d", r.Payment.ID)
	}
	return fmt.Sprintf("%s (%s), %s: R$ %s, vencimento %s, %s [%s]",
		r.Member.Name,
		r.Member.AssociateNumber,
		r.Plan.Name,
		r.Payment.Amount.StringFixed(2),
		r.DueDate.Format(time.DateOnly),
		days,
		severityLabel(r.Classification),
	) + "\n  " + payment
}

// formatDelinquents renders the report and an inline keyboard with one confirm button per
// stored payment. Output beyond maxMessageLen is cut with a note of how many were left out.
func formatDelinquents(records []app.DelinquencyRecord) (string, *telebot.ReplyMarkup) {
	if len(records) == 0 {
		return "Nenhum cooperado em atraso ou com vencimento próximo.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- Inadimplência (%d) ---\n", len(records))
	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	shown := 0
	for _, r := range records {
		line := formatRecord(r) + "\n"
		if b.Len()+len(line) > maxMessageLen {
			break
		}
		b.WriteString(line)
		shown++
		if r.Payment.IsPersisted() {
			label := fmt.Sprintf("Confirmar #%d (%s)", r.Payment.ID, r.Member.AssociateNumber)
			rows = append(rows, markup.Row(markup.Data(label, confirmButtonUnique, strconv.FormatInt(r.Payment.ID, 10))))
		}
	}
	if shown < len(records) {
		fmt.Fprintf(&b, "... e mais %d registros.\n", len(records)-shown)
	}
	if len(rows) == 0 {
		return b.String(), nil
	}
	markup.Inline(rows...)
	return b.String(), markup
}
