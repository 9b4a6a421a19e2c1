package mailx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"
)

// Encryption selects how the SMTP connection is secured.
type Encryption string

const (
	EncryptionStartTLS Encryption = "starttls"
	EncryptionSSL      Encryption = "ssl"
	EncryptionNone     Encryption = "none"
)

// ParseEncryption maps a config value onto an Encryption, defaulting to STARTTLS.
func ParseEncryption(s string) (Encryption, error) {
	switch Encryption(s) {
	case "", EncryptionStartTLS:
		return EncryptionStartTLS, nil
	case EncryptionSSL, EncryptionNone:
		return Encryption(s), nil
	default:
		return "", fmt.Errorf("mailx: unknown encryption %q", s)
	}
}

// SMTPConfig describes an SMTP relay.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	Encryption Encryption

	// Timeout bounds a whole delivery when ctx carries no deadline.
	Timeout time.Duration
}

// SMTPSender delivers mail through an SMTP relay, one connection per message.
type SMTPSender struct {
	cfg  SMTPConfig
	from mail.Address
	now  func() time.Time
}

// NewSMTPSender validates cfg and returns a sender for it.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mailx: smtp host is required")
	}
	addr, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mailx: invalid from address: %w", err)
	}
	if cfg.FromName != "" {
		addr.Name = cfg.FromName
	}
	if cfg.Encryption == "" {
		cfg.Encryption = EncryptionStartTLS
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, from: *addr, now: time.Now}, nil
}

// Send delivers msg. The connection deadline follows ctx.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	raw, err := build(s.from, msg, s.now())
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Abort the exchange if ctx is cancelled mid-conversation.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := s.deliver(conn, msg.To, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

// deliver runs the SMTP conversation on an established connection.
func (s *SMTPSender) deliver(conn net.Conn, to, raw string) error {
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if s.cfg.Encryption == EncryptionStartTLS {
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	return sendMessage(client, s.from.Address, to, raw)
}

func (s *SMTPSender) dial(ctx context.Context, addr string) (net.Conn, error) {
	if s.cfg.Encryption == EncryptionSSL {
		d := &tls.Dialer{Config: s.tlsConfig()}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
}

// sendMessage handles MAIL FROM, RCPT TO and DATA on an open client.
func sendMessage(client *smtp.Client, from, to, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
