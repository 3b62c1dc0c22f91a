package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"cooperative_billing/internal/domain/notifier"

	"github.com/sirupsen/logrus"
)

type compiledTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
}

// Notifier implements notifier.Notifier over email. Templates are parsed once; a variable
// missing from Variables is a render error, never a silently blank field.
type Notifier struct {
	sender      Sender
	enabled     bool
	fromAddress string
	templates   map[notifier.EventKind]compiledTemplate
	logger      *logrus.Entry
}

func NewNotifier(client *ResendClient, logger *logrus.Entry) *Notifier {
	return newNotifier(client, client.IsEnabled(), client.GetFromAddress(), logger)
}

func newNotifier(sender Sender, enabled bool, fromAddress string, logger *logrus.Entry) *Notifier {
	templates := make(map[notifier.EventKind]compiledTemplate, len(emailTemplates))
	for kind, t := range emailTemplates {
		templates[kind] = compiledTemplate{
			subject: texttemplate.Must(texttemplate.New(string(kind)).Option("missingkey=error").Parse(t.subject)),
			html:    htmltemplate.Must(htmltemplate.New(string(kind)).Option("missingkey=error").Parse(t.html)),
		}
	}
	return &Notifier{
		sender:      sender,
		enabled:     enabled,
		fromAddress: fromAddress,
		templates:   templates,
		logger:      logger.WithField("component", "email_notifier"),
	}
}

func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

func (n *Notifier) Send(ctx context.Context, kind notifier.EventKind, to notifier.Recipient, vars notifier.Variables) error {
	if !n.enabled {
		return fmt.Errorf("email notifier is disabled")
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", notifier.ErrUnknownEventKind, kind)
	}
	if strings.TrimSpace(to.Email) == "" {
		return fmt.Errorf("recipient %d has no email address", to.MemberID)
	}

	subject, html, err := n.render(kind, vars)
	if err != nil {
		n.logger.WithError(err).WithField("event_kind", kind).Error("Failed to render email")
		return err
	}

	messageID, err := n.sender.SendEmail(ctx, n.fromAddress, to.Email, subject, html)
	if err != nil {
		return err
	}
	n.logger.WithFields(logrus.Fields{
		"message_id": messageID,
		"member_id":  to.MemberID,
		"event_kind": kind,
	}).Debug("Email sent")
	return nil
}

func (n *Notifier) render(kind notifier.EventKind, vars notifier.Variables) (string, string, error) {
	t, ok := n.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", notifier.ErrUnknownEventKind, kind)
	}
	data := map[string]string(vars)
	if data == nil {
		data = map[string]string{}
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject for %s: %w", kind, err)
	}
	if err := t.html.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render body for %s: %w", kind, err)
	}
	return subject.String(), body.String(), nil
}
