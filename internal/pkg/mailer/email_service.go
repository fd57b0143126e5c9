package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/MKRushil/Pulse/internal/config"
)

type IEmailService interface {
	SendSecurityAlert(sessionID string, flagCount int, lastReason string) error
}

type emailService struct {
	dialer     *gomail.Dialer
	sender     string
	alertEmail string
}

func NewEmailService(cfg *config.Config) IEmailService {
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password)
	return &emailService{
		dialer:     dialer,
		sender:     cfg.SMTP.Email,
		alertEmail: cfg.SMTP.AlertEmail,
	}
}

// SendSecurityAlert notifies the operations mailbox when a session keeps
// tripping the input sanitizer past the configured threshold.
func (s *emailService) SendSecurityAlert(sessionID string, flagCount int, lastReason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.sender)
	m.SetHeader("To", s.alertEmail)
	m.SetHeader("Subject", fmt.Sprintf("[Pulse] Security flags on session %s", sessionID))

	body := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; color: #333;">
			<h2>Repeated security rejections</h2>
			<p>Session <b>%s</b> has been flagged <b>%d</b> times.</p>
			<p>Most recent reason: %s</p>
			<p>Review the audit log for the full history.</p>
		</body>
		</html>
	`, sessionID, flagCount, lastReason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send security alert: %w", err)
	}
	return nil
}
