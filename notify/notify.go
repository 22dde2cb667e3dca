package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

// ErrNotConfigured is returned by [SMTPNotifier] when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// PasswordResetMessage renders the reset email for name (or the address
// when name is empty).
func PasswordResetMessage(from, to, name, link string) Message {
	greeting := name
	if strings.TrimSpace(greeting) == "" {
		greeting = to
	}
	return Message{
		From:    from,
		To:      to,
		Subject: "Password reset for your account",
		Text: fmt.Sprintf("Hello %s,\n\nReset your password: %s\n\n"+
			"The link expires in 1 hour. If you didn't request this, you can ignore this email.\n",
			greeting, link),
		HTML: fmt.Sprintf("<p>Hello %s,</p>\n"+
			"<p>We received a request to reset your password. Click the link below to reset it (expires in 1 hour):</p>\n"+
			"<p><a href=\"%s\">%s</a></p>\n"+
			"<p>If you didn't request this, you can ignore this email.</p>\n",
			html.EscapeString(greeting), html.EscapeString(link), html.EscapeString(link)),
	}
}

// LogNotifier logs reset links instead of sending them.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(ctx context.Context, to, name, link string) error {
	log.Info(ctx).
		Str("to", to).
		Str("name", name).
		Str("link", link).
		Msg("password reset link")
	return nil
}

var _ binarystore.Notifier = LogNotifier{}

// Fallback sends through Primary and falls back to Secondary while
// Primary reports [ErrNotConfigured].
type Fallback struct {
	Primary   binarystore.Notifier
	Secondary binarystore.Notifier
}

func (f Fallback) SendPasswordReset(ctx context.Context, to, name, link string) error {
	err := f.Primary.SendPasswordReset(ctx, to, name, link)
	if errors.Is(err, ErrNotConfigured) && f.Secondary != nil {
		return f.Secondary.SendPasswordReset(ctx, to, name, link)
	}
	return err
}
