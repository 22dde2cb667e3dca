package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
)

// Settings resolves SMTP configuration by key. configstore.Store
// implements it.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool)
}

// SMTPConfig is the resolved SMTP configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Secure selects implicit TLS (usually port 465). Otherwise STARTTLS
	// is used when the server offers it.
	Secure bool
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends reset links by mail. Settings are read on every send
// so changes made in the admin portal apply without a restart.
type SMTPNotifier struct {
	settings    Settings
	defaultFrom string
	timeout     time.Duration
	send        sendFunc
	sendTLS     sendFunc
}

// NewSMTPNotifier returns a notifier reading smtp_* keys from settings.
// defaultFrom is used when smtp_from is unset.
func NewSMTPNotifier(settings Settings, defaultFrom string) *SMTPNotifier {
	n := &SMTPNotifier{
		settings:    settings,
		defaultFrom: defaultFrom,
		timeout:     10 * time.Second,
		send:        smtp.SendMail,
	}
	n.sendTLS = n.sendImplicitTLS
	return n
}

// Config resolves the current SMTP settings.
func (n *SMTPNotifier) Config(ctx context.Context) (SMTPConfig, error) {
	get := func(key string) string {
		v, _ := n.settings.Get(ctx, key)
		return strings.TrimSpace(v)
	}

	cfg := SMTPConfig{
		Host:     get("smtp_host"),
		Username: get("smtp_username"),
		Password: get("smtp_password"),
		From:     get("smtp_from"),
		Secure:   get("smtp_secure") == "true",
		Port:     587,
	}
	if cfg.Host == "" {
		return SMTPConfig{}, ErrNotConfigured
	}
	if p := get("smtp_port"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return SMTPConfig{}, fmt.Errorf("invalid smtp_port %q", p)
		}
		cfg.Port = port
	}
	if cfg.From == "" {
		cfg.From = n.defaultFrom
	}
	if cfg.From == "" {
		return SMTPConfig{}, fmt.Errorf("%w: smtp_from is empty", ErrNotConfigured)
	}
	return cfg, nil
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, to, name, link string) error {
	cfg, err := n.Config(ctx)
	if err != nil {
		return err
	}

	msg, err := PasswordResetMessage(cfg.From, to, name, link).Bytes()
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	send := n.send
	if cfg.Secure {
		send = n.sendTLS
	}
	if err := send(cfg.addr(), auth, cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	dialer := &net.Dialer{Timeout: n.timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Bytes renders m as a multipart/alternative RFC 5322 message.
func (m Message) Bytes() ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", m.Text},
		{"text/html; charset=UTF-8", m.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", m.From)
	fmt.Fprintf(&out, "To: %s\r\n", m.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&out, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

var _ binarystore.Notifier = (*SMTPNotifier)(nil)
