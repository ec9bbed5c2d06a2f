package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	subjectEstimateFmt    = "Estimate ready for assessment %s"
	subjectAppointmentFmt = "Appointment %s scheduled"
	subjectReminderFmt    = "Reminder: appointment %s is tomorrow"
)

type baseEmailData struct {
	Title   string
	Heading string
}

type estimateEmailData struct {
	baseEmailData
	ClientName       string
	AssessmentNumber string
}

type appointmentEmailData struct {
	baseEmailData
	ClientName        string
	AppointmentNumber string
	ScheduledDate     string
	Location          string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
