package leave

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/notifications"
	"elms/internal/domain/settings"
	"elms/internal/platform/metrics"
)

// Submit validates a leave request, holds the requested days and opens the
// approval chain at level 1. Validation runs in order and the first failure
// is returned; nothing is written unless every check passes.
func (s *Service) Submit(ctx context.Context, actor access.ActorContext, in SubmitInput) (Application, error) {
	if !actor.Valid() || !s.access.Can(actor.Role, access.CapSubmit) {
		return Application{}, ErrForbidden
	}
	in.Reason = strings.TrimSpace(in.Reason)

	var (
		result Application
		after  []afterCommit
		stored string
	)
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		after = nil

		lt, err := tx.LeaveType(ctx, in.LeaveTypeID)
		if errors.Is(err, ErrNotFound) {
			return &ValidationError{Field: "leaveTypeId", Reason: "unknown leave type"}
		}
		if err != nil {
			return storageErr("load leave type", err)
		}
		if !lt.Active {
			return &ValidationError{Field: "leaveTypeId", Reason: "leave type is not active"}
		}
		if !lt.AppliesTo(actor.Role) {
			return &ValidationError{Field: "leaveTypeId", Reason: "leave type does not apply to your role"}
		}

		if err := s.validateDates(in); err != nil {
			return err
		}
		days, err := requestDays(in)
		if err != nil {
			return err
		}

		balance, err := GetAvailable(ctx, tx, actor.UserID, lt, in.StartDate.Year())
		if err != nil {
			return err
		}
		if days.GreaterThan(balance.Available()) {
			return &InsufficientBalanceError{Available: balance.Available(), Requested: days}
		}

		attachment := ""
		if lt.RequiresAttachment {
			cfg, err := tx.Settings(ctx)
			if err != nil {
				return storageErr("load settings", err)
			}
			if err := validateAttachment(in.Attachment, cfg); err != nil {
				return err
			}
			if s.attachments == nil {
				return &StorageError{Op: "store attachment", Err: errors.New("attachment storage is not configured")}
			}
			ref, err := s.attachments.Store(ctx, in.Attachment.FileName, in.Attachment.Data, cfg.AllowedAttachmentTypes, cfg.MaxAttachmentSize)
			if err != nil {
				return &AttachmentError{Reason: "attachment could not be stored", Err: err}
			}
			stored, attachment = ref, ref
		}

		applicant, err := tx.Person(ctx, actor.UserID)
		if err != nil {
			return storageErr("load applicant", err)
		}

		app, err := tx.CreateApplication(ctx, Application{
			UserID:       actor.UserID,
			LeaveTypeID:  lt.ID,
			StartDate:    dateOnly(in.StartDate),
			EndDate:      dateOnly(in.EndDate),
			Days:         days,
			Reason:       in.Reason,
			Attachment:   attachment,
			Status:       StatusPending,
			CurrentLevel: 1,
		})
		if err != nil {
			return storageErr("create application", err)
		}
		app.ApplicantName, app.LeaveTypeName = applicant.FullName, lt.Name

		if _, err := Hold(ctx, tx, balance, app.ID, days); err != nil {
			return err
		}

		headID, err := tx.DepartmentHead(ctx, applicant.DepartmentID)
		if err != nil {
			return storageErr("load department head", err)
		}
		if headID == actor.UserID {
			headID = ""
		}
		if headID == "" {
			s.log.Warn("no department head to address level 1 approval",
				zap.String("application_id", app.ID), zap.String("department_id", applicant.DepartmentID))
		}
		if _, err := tx.CreateApproval(ctx, Approval{ApplicationID: app.ID, ApproverID: headID, Level: 1}); err != nil {
			return storageErr("create approval", err)
		}

		if err := notify(ctx, tx, headID, notifications.TitleLeaveSubmitted,
			fmt.Sprintf("%s applied for %s days of %s from %s to %s.", applicant.FullName, daysString(days), lt.Name, formatDay(app.StartDate), formatDay(app.EndDate)), app.ID); err != nil {
			return err
		}
		if err := s.record(ctx, tx, EventSubmitted, actor.UserID, app, 0, ""); err != nil {
			return err
		}
		if headID != "" {
			head, err := tx.Person(ctx, headID)
			if err != nil {
				return storageErr("load department head", err)
			}
			after = append(after, s.mailSubmitted(head, applicant, lt, app))
		}

		result = app
		return nil
	})
	if err != nil {
		if stored != "" {
			s.warn("remove orphaned attachment failed", s.attachments.Remove(ctx, stored), zap.String("ref", stored))
		}
		return Application{}, err
	}

	s.recorder.RecordLeave(metrics.LeaveSubmitted)
	s.log.Info("leave application submitted",
		zap.String("application_id", result.ID),
		zap.String("user_id", actor.UserID),
		zap.String("days", daysString(result.Days)))
	for _, fn := range after {
		fn(ctx)
	}
	return result, nil
}

func (s *Service) validateDates(in SubmitInput) error {
	if in.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Reason: "is required"}
	}
	if in.EndDate.IsZero() {
		return &ValidationError{Field: "endDate", Reason: "is required"}
	}
	if dateOnly(in.EndDate).Before(dateOnly(in.StartDate)) {
		return &ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}
	if dateOnly(in.StartDate).Before(s.today()) {
		return &ValidationError{Field: "startDate", Reason: "must not be in the past"}
	}
	return nil
}

// requestDays returns the explicit day count, or derives it from the dates.
func requestDays(in SubmitInput) (decimal.Decimal, error) {
	if in.Days == nil {
		days, err := CalculateRequestDays(in.StartDate, in.EndDate, in.StartHalf, in.EndHalf)
		if err != nil {
			return decimal.Zero, &ValidationError{Field: "days", Reason: err.Error()}
		}
		return days, nil
	}
	days := *in.Days
	if !days.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "days", Reason: "must be greater than 0"}
	}
	if !IsHalfDayMultiple(days) {
		return decimal.Zero, &ValidationError{Field: "days", Reason: "must be a multiple of 0.5"}
	}
	span, err := CalculateDays(in.StartDate, in.EndDate)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "endDate", Reason: err.Error()}
	}
	if days.GreaterThan(span) {
		return decimal.Zero, &ValidationError{Field: "days", Reason: "exceeds the requested date range"}
	}
	return days, nil
}

func validateAttachment(up *Upload, cfg settings.Settings) error {
	if up == nil || len(up.Data) == 0 {
		return &AttachmentError{Reason: "an attachment is required for this leave type"}
	}
	if cfg.MaxAttachmentSize > 0 && int64(len(up.Data)) > cfg.MaxAttachmentSize {
		return &AttachmentError{Reason: fmt.Sprintf("attachment exceeds %d bytes", cfg.MaxAttachmentSize)}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.FileName), "."))
	for _, allowed := range cfg.AllowedAttachmentTypes {
		if ext != "" && strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return nil
		}
	}
	return &AttachmentError{Reason: "attachment type ." + ext + " is not allowed"}
}
