package email

import "cooperative_billing/internal/domain/notifier"

type emailTemplate struct {
	subject string
	html    string
}

const layoutStart = `<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
`

const layoutEnd = `
    <p>Em caso de dúvida, basta responder a este email.</p>
    <p>Atenciosamente,<br/>Tesouraria da Cooperativa</p>
</body>
</html>`

// emailTemplates holds the subject and HTML body of every event kind.
var emailTemplates = map[notifier.EventKind]emailTemplate{
	notifier.EventReminderInitial: {
		subject: "Lembrete: mensalidade com vencimento em {{.due_date}}",
		html: layoutStart + `    <p>Olá, {{.member_name}}!</p>
    {{if ne .days_overdue "0"}}<p>Identificamos que a mensalidade do plano <strong>{{.plan_name}}</strong>, no valor de <strong>R$ {{.amount}}</strong>, venceu em {{.due_date}} e está em aberto há {{.days_overdue}} dia(s).</p>
    {{else}}<p>A mensalidade do plano <strong>{{.plan_name}}</strong>, no valor de <strong>R$ {{.amount}}</strong>, vence em {{.due_date}} (em {{.days_until_due}} dia(s)).</p>{{end}}
    <p>Matrícula: {{.associate_number}}</p>
    <p>Se o pagamento já foi feito, por favor desconsidere esta mensagem.</p>` + layoutEnd,
	},
	notifier.EventReminderUrgent: {
		subject: "Urgente: mensalidade em atraso há {{.days_overdue}} dias",
		html: layoutStart + `    <p>Olá, {{.member_name}}.</p>
    <p>A mensalidade do plano <strong>{{.plan_name}}</strong>, no valor de <strong>R$ {{.amount}}</strong>, venceu em {{.due_date}} e segue em aberto há <strong>{{.days_overdue}} dias</strong>.</p>
    <p>Matrícula: {{.associate_number}}</p>
    <p>Pedimos que regularize a situação o quanto antes para evitar a suspensão da sua matrícula.</p>` + layoutEnd,
	},
	notifier.EventReminderCritical: {
		subject: "Aviso final: matrícula {{.associate_number}} sujeita a suspensão",
		html: layoutStart + `    <p>Olá, {{.member_name}}.</p>
    <p>A mensalidade do plano <strong>{{.plan_name}}</strong>, no valor de <strong>R$ {{.amount}}</strong>, está em atraso há <strong>{{.days_overdue}} dias</strong> (vencimento em {{.due_date}}).</p>
    <p>Matrículas com atraso crítico são suspensas e reativadas automaticamente após a confirmação do pagamento.</p>` + layoutEnd,
	},
	notifier.EventWelcome: {
		subject: "Bem-vindo(a) à cooperativa, {{.member_name}}!",
		html: layoutStart + `    <p>Olá, {{.member_name}}!</p>
    <p>Sua matrícula <strong>{{.associate_number}}</strong> está ativa.</p>
    {{with index . "plan_name"}}<p>Plano: <strong>{{.}}</strong>, mensalidade de R$ {{$.amount}} com vencimento todo dia {{$.billing_day}}.</p>{{end}}` + layoutEnd,
	},
	notifier.EventTest: {
		subject: "Email de teste da cobrança",
		html:    layoutStart + `    <p>Este é um email de teste enviado em {{.due_date}}. O envio de lembretes está funcionando.</p>` + layoutEnd,
	},
}
