package leave

import (
	"context"
	"time"

	"elms/internal/domain/audit"
	"elms/internal/domain/notifications"
	"elms/internal/platform/events"
)

// EventPayload is published to the outbox for every workflow transition.
type EventPayload struct {
	ApplicationID string    `json:"applicationId"`
	UserID        string    `json:"userId"`
	LeaveTypeID   string    `json:"leaveTypeId"`
	StartDate     string    `json:"startDate"`
	EndDate       string    `json:"endDate"`
	Days          string    `json:"days"`
	Status        string    `json:"status"`
	Level         int       `json:"level,omitempty"`
	ActorID       string    `json:"actorId"`
	Comments      string    `json:"comments,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// record writes the audit entry and the outbox event of one transition
// through the caller's transaction.
func (s *Service) record(ctx context.Context, tx TxRepo, eventType, actorID string, app Application, level int, comments string) error {
	payload := EventPayload{
		ApplicationID: app.ID,
		UserID:        app.UserID,
		LeaveTypeID:   app.LeaveTypeID,
		StartDate:     app.StartDate.Format(time.DateOnly),
		EndDate:       app.EndDate.Format(time.DateOnly),
		Days:          daysString(app.Days),
		Status:        app.Status,
		Level:         level,
		ActorID:       actorID,
		Comments:      comments,
		OccurredAt:    s.now().UTC(),
	}

	entry, err := audit.NewEntry(ctx, actorID, eventType, entityApplication, app.ID, payload)
	if err != nil {
		return err
	}
	if err := tx.Audit(ctx, entry); err != nil {
		return storageErr("audit", err)
	}

	event, err := events.NewEvent(s.topic, entityApplication, app.ID, eventType, payload)
	if err != nil {
		return err
	}
	return storageErr("outbox", tx.Publish(ctx, event))
}

func notify(ctx context.Context, tx TxRepo, userID, title, message, applicationID string) error {
	if userID == "" {
		return nil
	}
	return storageErr("notify", tx.Notify(ctx, notifications.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		RelatedTo: notifications.RelatedLeaveApplication,
		RelatedID: applicationID,
	}))
}
