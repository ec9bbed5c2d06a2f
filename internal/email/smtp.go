package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendEstimateEmail(ctx context.Context, toEmail, clientName, assessmentNumber string) error {
	content, err := renderEmailTemplate("estimate_sent.html", estimateEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your assessment estimate",
			Heading: "Your estimate is ready",
		},
		ClientName:       clientName,
		AssessmentNumber: assessmentNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectEstimateFmt, assessmentNumber), content)
}

func (s *SMTPSender) SendAppointmentEmail(ctx context.Context, toEmail, clientName, appointmentNumber, scheduledDate, location string) error {
	content, err := renderEmailTemplate("appointment_scheduled.html", appointmentEmailData{
		baseEmailData: baseEmailData{
			Title:   "Appointment scheduled",
			Heading: "Your appointment is booked",
		},
		ClientName:        clientName,
		AppointmentNumber: appointmentNumber,
		ScheduledDate:     scheduledDate,
		Location:          location,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectAppointmentFmt, appointmentNumber), content)
}

func (s *SMTPSender) SendReminderEmail(ctx context.Context, toEmail, clientName, appointmentNumber, scheduledDate, location string) error {
	content, err := renderEmailTemplate("appointment_reminder.html", appointmentEmailData{
		baseEmailData: baseEmailData{
			Title:   "Appointment reminder",
			Heading: "Your appointment is tomorrow",
		},
		ClientName:        clientName,
		AppointmentNumber: appointmentNumber,
		ScheduledDate:     scheduledDate,
		Location:          location,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectReminderFmt, appointmentNumber), content)
}
