package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/medtel/channel-analytics/internal/config"
	"github.com/medtel/channel-analytics/internal/models"
)

// Service handles sending run reports via the configured channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendRunReport sends a report via the configured notification channels.
// With no channel configured it is a silent no-op.
func (s *Service) SendRunReport(report *models.RunReport) error {
	var errors []string

	if s.config.WebhookURL != "" {
		if err := s.sendWebhook(report); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Info("Successfully sent run report to webhook")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Info("Successfully sent run report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *Service) sendWebhook(report *models.RunReport) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(report).
		Post(s.config.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

func (s *Service) sendEmail(report *models.RunReport) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", fmt.Sprintf("Channel Analytics Pipeline Report - %s",
		report.StartedAt.Format("2006-01-02")))
	m.SetBody("text/plain", buildEmailText(report))

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort,
		s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildEmailText(report *models.RunReport) string {
	var text strings.Builder

	text.WriteString("Channel Analytics Pipeline Report\n")
	text.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	text.WriteString(fmt.Sprintf("Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC")))
	text.WriteString(fmt.Sprintf("Duration: %s\n\n", report.Duration))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Channels scraped: %d\n", report.ChannelsScraped))
	text.WriteString(fmt.Sprintf("Channels failed: %d\n", report.ChannelsFailed))
	text.WriteString(fmt.Sprintf("Messages scraped: %d\n", report.MessagesScraped))
	text.WriteString(fmt.Sprintf("Rows loaded: %d\n", report.RowsLoaded))
	text.WriteString(fmt.Sprintf("Images analyzed: %d\n", report.ImagesDetected))

	if len(report.Errors) > 0 {
		text.WriteString("\nERRORS\n")
		text.WriteString("======\n")
		for i, e := range report.Errors {
			text.WriteString(fmt.Sprintf("%d. %s\n", i+1, e))
		}
	}

	text.WriteString("\n---\nThis report was generated automatically by the channel analytics pipeline.\n")
	return text.String()
}
