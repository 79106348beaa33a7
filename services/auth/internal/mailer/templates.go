package mailer

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/diagnosis/kabataan-portal/services/auth/internal/domain"
)

type message struct {
	Subject string
	Text    string
	HTML    string
}

type codeEntryParams struct {
	Email   string `url:"email"`
	Channel string `url:"channel"`
}

// codeEntryLink points at the portal page where the code is typed in. The
// code itself is never put in the URL.
func codeEntryLink(portalURL, email string, channel domain.Channel) string {
	v, err := query.Values(codeEntryParams{Email: email, Channel: string(channel)})
	if err != nil {
		return portalURL
	}
	return strings.TrimRight(portalURL, "/") + "/enter-code?" + v.Encode()
}

func composeCode(portalURL, toEmail, toName, code string, channel domain.Channel, ttl time.Duration) message {
	if toName == "" {
		toName = toEmail
	}
	lifetime := describeTTL(ttl)
	link := codeEntryLink(portalURL, toEmail, channel)

	if channel == domain.ChannelReset {
		return message{
			Subject: "Reset your Kabataan Council Portal password",
			Text: fmt.Sprintf("Hi %s,\n\nYour password reset code is: %s\n\nEnter it at %s within %s.\n\nIf you did not ask to reset your password, ignore this email.",
				toName, code, link, lifetime),
			HTML: fmt.Sprintf(`
		<h2>Password reset</h2>
		<p>Hi %s,</p>
		<p>Your password reset code is: <strong style="font-size: 24px; color: #1E3A8A;">%s</strong></p>
		<p><a href="%s" style="background-color: #1E3A8A; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Enter code</a></p>
		<p>This code will expire in %s.</p>
		<p>If you did not ask to reset your password, ignore this email.</p>
	`, html.EscapeString(toName), code, html.EscapeString(link), lifetime),
		}
	}

	return message{
		Subject: "Your Kabataan Council Portal verification code",
		Text: fmt.Sprintf("Hi %s,\n\nYour verification code is: %s\n\nEnter it at %s within %s.",
			toName, code, link, lifetime),
		HTML: fmt.Sprintf(`
		<h2>Verify it's you</h2>
		<p>Hi %s,</p>
		<p>Your verification code is: <strong style="font-size: 24px; color: #1E3A8A;">%s</strong></p>
		<p><a href="%s" style="background-color: #1E3A8A; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Enter code</a></p>
		<p>This code will expire in %s.</p>
	`, html.EscapeString(toName), code, html.EscapeString(link), lifetime),
	}
}

// describeTTL renders a code lifetime for the email body, in minutes when it
// is a whole number of them.
func describeTTL(ttl time.Duration) string {
	if ttl <= 0 {
		ttl = domain.CodeTTL
	}
	if ttl%time.Minute == 0 {
		if m := int(ttl / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	secs := int((ttl + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d seconds", secs)
}
