package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type SMTPMailer struct {
	Host      string
	Port      int
	From      string
	FromName  string
	User      string
	Pass      string
	UseTLS    bool
	PortalURL string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		Host:      strings.TrimSpace(cfg.SMTPHost),
		Port:      cfg.SMTPPort,
		From:      strings.TrimSpace(cfg.SMTPFrom),
		FromName:  strings.TrimSpace(cfg.FromName),
		User:      strings.TrimSpace(cfg.SMTPUser),
		Pass:      strings.TrimSpace(cfg.SMTPPass),
		UseTLS:    cfg.SMTPUseTLS,
		PortalURL: cfg.PortalURL,
	}
}

func (s *SMTPMailer) SendCode(ctx context.Context, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := composeCode(s.PortalURL, toEmail, toName, code, channel, ttl)
	return s.sendEmail(toEmail, toName, msg.Subject, msg.Text, msg.HTML)
}

func (s *SMTPMailer) sendEmail(toEmail, toName, subject, text, html string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	var buf bytes.Buffer
	boundary := "mixed-boundary"

	fmt.Fprintf(&buf, "From: %s\r\n", (&mail.Address{Name: s.FromName, Address: s.From}).String())
	fmt.Fprintf(&buf, "To: %s\r\n", (&mail.Address{Name: toName, Address: toEmail}).String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	// Text part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	// HTML part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From, []string{toEmail}, buf.Bytes())
	}

	// Production SMTP with authentication
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// Try plain SMTP first (with STARTTLS if supported)
	if err := smtp.SendMail(addr, auth, s.From, []string{toEmail}, buf.Bytes()); err == nil {
		return nil
	}

	// Fallback to implicit TLS (port 465)
	if s.UseTLS {
		tlsCfg := &tls.Config{ServerName: s.Host, InsecureSkipVerify: false}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()
	
		c, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			return err
		}
		defer c.Quit()
	
		if s.User != "" {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	
		if err := c.Mail(s.From); err != nil {
			return err
		}
		if err := c.Rcpt(toEmail); err != nil {
			return err
		}
	
		w, err := c.Data()
		if err != nil {
			return err
		}
	
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	
		return w.Close()
	}

	return fmt.Errorf("smtp send failed")
}