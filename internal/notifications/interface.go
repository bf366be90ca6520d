package notifications

import "github.com/medtel/channel-analytics/internal/models"

// Notifier defines the contract for sending pipeline run reports
type Notifier interface {
	SendRunReport(report *models.RunReport) error
}
