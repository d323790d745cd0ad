package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPMailer sends mail over plain SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

func NewSMTPMailer(host string, port int, username, password, from string, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger.Named("SMTPMailer"),
	}
}

// SendEmailConfirmation sends the confirmation code for a pending email
// channel.
func (s *SMTPMailer) SendEmailConfirmation(toEmail, toName, code string) error {
	subject := "Confirm your email address"
	body := fmt.Sprintf("Hello %s,\r\n\r\nYour confirmation code is: %s\r\n\r\nIf you did not request this, ignore this email.\r\n", toName, code)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", toEmail)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg.String())); err != nil {
		s.logger.Error("failed to send confirmation email",
			zap.String("toEmail", toEmail), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Info("confirmation email sent", zap.String("toEmail", toEmail))
	return nil
}
