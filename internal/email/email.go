// Package email renders and delivers transactional mail. Domain modules
// never import it directly; the notification module drives it from domain
// events.
package email

import (
	"context"

	"claimtech_backend/platform/config"
)

// Sender delivers the application's transactional emails.
type Sender interface {
	SendEstimateEmail(ctx context.Context, toEmail, clientName, assessmentNumber string) error
	SendAppointmentEmail(ctx context.Context, toEmail, clientName, appointmentNumber, scheduledDate, location string) error
	SendReminderEmail(ctx context.Context, toEmail, clientName, appointmentNumber, scheduledDate, location string) error
}

// NewSender builds the configured sender. With email disabled it returns a
// no-op sender so callers never branch.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return &noopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

type noopSender struct{}

func (noopSender) SendEstimateEmail(context.Context, string, string, string) error {
	return nil
}

func (noopSender) SendAppointmentEmail(context.Context, string, string, string, string, string) error {
	return nil
}

func (noopSender) SendReminderEmail(context.Context, string, string, string, string, string) error {
	return nil
}
