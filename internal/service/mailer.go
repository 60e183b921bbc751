package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/google/uuid"
)

type VerificationEmail struct {
	To        string
	Token     string
	VerifyURL string
	ExpiresAt time.Time
	TokenTTL  time.Duration
}

type Mailer interface {
	SendVerificationEmail(ctx context.Context, email VerificationEmail) error
}

// SMTPMailer delivers verification mail over plain SMTP.
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		addr:     fmt.Sprintf("%s:%d", host, port),
		host:     host,
		username: username,
		password: password,
		from:     from,
	}
}

func (m *SMTPMailer) SendVerificationEmail(_ context.Context, email VerificationEmail) error {
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	msg := buildVerificationMessage(m.from, email)
	if err := smtp.SendMail(m.addr, auth, m.from, []string{email.To}, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func buildVerificationMessage(from string, email VerificationEmail) []byte {
	body := fmt.Sprintf("Hello,\r\n\r\n"+
		"Thank you for registering. Please click the link below to verify your email address:\r\n\r\n"+
		"%s\r\n\r\n"+
		"This link will expire in %d minutes.\r\n\r\n"+
		"If you did not create an account, please ignore this email.\r\n",
		email.VerifyURL, int(email.TokenTTL.Minutes()))

	msg := fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", email.To) +
		fmt.Sprintf("Message-ID: <%s@mailauth>\r\n", uuid.NewString()) +
		"Subject: Verify Your Email Address\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body
	return []byte(msg)
}

// LogMailer is the development mailer: it logs the verification link instead
// of delivering it.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email VerificationEmail) error {
	m.logger.InfoContext(ctx, "verification email issued",
		"to", email.To,
		"verify_url", email.VerifyURL,
		"expires_at", email.ExpiresAt,
	)
	return nil
}
