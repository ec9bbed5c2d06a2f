package email

import (
	"strings"
	"testing"
)

func TestRenderEmailTemplates(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     any
		want     []string
	}{
		{
			name:     "estimate sent",
			template: "estimate_sent.html",
			data: estimateEmailData{
				baseEmailData:    baseEmailData{Title: "Estimate", Heading: "Your estimate is ready"},
				ClientName:       "N Dlamini",
				AssessmentNumber: "ASM-2026-014",
			},
			want: []string{"N Dlamini", "ASM-2026-014", "Your estimate is ready"},
		},
		{
			name:     "appointment scheduled",
			template: "appointment_scheduled.html",
			data: appointmentEmailData{
				baseEmailData:     baseEmailData{Title: "Appointment", Heading: "Your appointment is booked"},
				ClientName:        "S Naidoo",
				AppointmentNumber: "APT-2026-003",
				ScheduledDate:     "Monday, 14 September 2026 at 09:30",
				Location:          "12 Long St, Cape Town",
			},
			want: []string{"APT-2026-003", "12 Long St, Cape Town", "Monday, 14 September 2026 at 09:30"},
		},
		{
			name:     "appointment reminder",
			template: "appointment_reminder.html",
			data: appointmentEmailData{
				baseEmailData:     baseEmailData{Title: "Reminder", Heading: "Your appointment is tomorrow"},
				ClientName:        "P van Wyk",
				AppointmentNumber: "APT-2026-004",
				ScheduledDate:     "Tuesday, 15 September 2026 at 11:00",
				Location:          "workshop",
			},
			want: []string{"APT-2026-004", "tomorrow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderEmailTemplate(tt.template, tt.data)
			if err != nil {
				t.Fatalf("renderEmailTemplate(%s): %v", tt.template, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("rendered %s missing %q", tt.template, want)
				}
			}
		})
	}
}
