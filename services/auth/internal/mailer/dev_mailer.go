package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/diagnosis/kabataan-portal/pkg/logger"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

// DevMailer prints mail to stdout instead of sending it.
type DevMailer struct {
	portalURL string
	out       io.Writer
}

func NewDevMailer(portalURL string) *DevMailer {
	return &DevMailer{portalURL: portalURL, out: os.Stdout}
}

func (d *DevMailer) SendCode(ctx context.Context, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) error {
	msg := composeCode(d.portalURL, toEmail, toName, code, channel, ttl)

	logger.InfoContext(ctx, "📧 [DEV MAIL] Code email",
		"identity", logger.HashIdentity(toEmail),
		"channel", string(channel),
	)

	fmt.Fprintf(d.out, "\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 %s EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		channelTitle(channel), toEmail, toName, msg.Subject, msg.Text)

	return nil
}

func channelTitle(c domain.Channel) string {
	if c == domain.ChannelReset {
		return "PASSWORD RESET"
	}
	return "VERIFICATION"
}
