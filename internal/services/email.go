package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/gorm"
)

// EmailService mails proposal authors when an evaluation completes.
type EmailService struct {
	db   *gorm.DB
	cfg  config.EmailConfig
	send func(cfg *config.EmailConfig, to []string, msg []byte) error
}

func NewEmailService(db *gorm.DB, cfg config.EmailConfig) *EmailService {
	return &EmailService{db: db, cfg: cfg, send: sendSMTP}
}

func (s *EmailService) Enabled() bool {
	return s.cfg.Enabled && s.cfg.Host != ""
}

func (s *EmailService) NotifyEvaluationCompleted(ctx context.Context, proposal *domain.Proposal, evaluation *domain.Evaluation) error {
	if !s.Enabled() {
		return nil
	}

	var recipients []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND email <> ''", proposal.Authors).
		Pluck("email", &recipients).Error; err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("[Governance] %s: %s %s", proposal.Title, evaluation.Title, evaluation.Result)
	msg := s.buildMessage(recipients, subject, buildEvaluationBody(proposal, evaluation))
	if err := s.send(&s.cfg, recipients, msg); err != nil {
		logger.Warnf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent evaluation notification to %v", recipients)
	return nil
}

func buildEvaluationBody(p *domain.Proposal, e *domain.Evaluation) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString("<h2>Proposal evaluation completed</h2>")
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")

	rows := []struct{ label, value string }{
		{"Proposal", p.Title},
		{"Step", fmt.Sprintf("%d. %s", e.Index+1, e.Title)},
		{"Result", string(e.Result)},
		{"Status", p.Status},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>",
			r.label, html.EscapeString(r.value)))
	}
	sb.WriteString("</table>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) buildMessage(to []string, subject, body string) []byte {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	var message strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return []byte(message.String())
}

func sendSMTP(cfg *config.EmailConfig, to []string, msg []byte) error {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if !cfg.UseTLS {
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
