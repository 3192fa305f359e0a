package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"elms/internal/platform/email"
)

// LeaveMailer renders the leave workflow emails and hands them to a Sender.
type LeaveMailer struct {
	Sender email.Sender
	From   string
}

func NewLeaveMailer(sender email.Sender, from string) *LeaveMailer {
	return &LeaveMailer{Sender: sender, From: from}
}

func (m *LeaveMailer) SendApplicationSubmitted(ctx context.Context, approverEmail, applicantName, leaveTypeName string, start, end time.Time, applicationID string) error {
	if strings.TrimSpace(approverEmail) == "" {
		return nil
	}
	subject := fmt.Sprintf("Leave application from %s", applicantName)
	body := fmt.Sprintf(
		"%s has applied for %s from %s to %s.\n\nApplication: %s\nPlease review it in the leave portal.\n",
		applicantName, leaveTypeName, formatDate(start), formatDate(end), applicationID,
	)
	return m.Sender.Send(ctx, m.From, approverEmail, subject, body)
}

func (m *LeaveMailer) SendStatusChanged(ctx context.Context, applicantEmail, applicantName, newStatus, leaveTypeName string, start, end time.Time, reasonOrComments string) error {
	if strings.TrimSpace(applicantEmail) == "" {
		return nil
	}
	subject := fmt.Sprintf("Your leave application was %s", newStatus)
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", applicantName)
	fmt.Fprintf(&b, "Your %s application for %s to %s is now %s.\n", leaveTypeName, formatDate(start), formatDate(end), newStatus)
	if strings.TrimSpace(reasonOrComments) != "" {
		fmt.Fprintf(&b, "\nComments: %s\n", reasonOrComments)
	}
	return m.Sender.Send(ctx, m.From, applicantEmail, subject, b.String())
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
