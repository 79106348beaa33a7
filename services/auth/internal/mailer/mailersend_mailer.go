package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type MailerSendClient struct {
	client    *mailersend.Mailersend
	from      mailersend.From
	portalURL string
	enabled   bool
}

func NewMailerSend(cfg config.EmailConfig) *MailerSendClient {
	m := &MailerSendClient{
		enabled: cfg.MailerSendKey != "" && cfg.SMTPFrom != "",
		from: mailersend.From{
			Name:  cfg.FromName,
			Email: cfg.SMTPFrom,
		},
		portalURL: cfg.PortalURL,
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(cfg.MailerSendKey)
	}

	return m
}

func (m *MailerSendClient) SendCode(ctx context.Context, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	msg := composeCode(m.portalURL, toEmail, toName, code, channel, ttl)
	return m.sendEmail(ctx, toEmail, toName, msg)
}

func (m *MailerSendClient) sendEmail(ctx context.Context, toEmail, toName string, msg message) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	email.SetSubject(msg.Subject)

	if strings.TrimSpace(msg.Text) != "" {
		email.SetText(msg.Text)
	}
	if strings.TrimSpace(msg.HTML) != "" {
		email.SetHTML(msg.HTML)
	}

	_, err := m.client.Email.Send(ctx, email)
	return err
}
