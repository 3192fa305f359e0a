package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/notifications"
	"elms/internal/platform/metrics"
)

// Approve records an approval at level. The last configured level approves
// the application and commits the held days; earlier levels hand the
// application to the next level's approver.
func (s *Service) Approve(ctx context.Context, actor access.ActorContext, applicationID string, level int, comments string) (Application, error) {
	return s.decide(ctx, actor, applicationID, level, comments, StatusApproved)
}

// Reject ends the chain at level and releases the held days. Approvals
// already given at earlier levels are kept as history.
func (s *Service) Reject(ctx context.Context, actor access.ActorContext, applicationID string, level int, comments string) (Application, error) {
	return s.decide(ctx, actor, applicationID, level, comments, StatusRejected)
}

type afterCommit func(ctx context.Context)

func (s *Service) decide(ctx context.Context, actor access.ActorContext, applicationID string, level int, comments, decision string) (Application, error) {
	if !actor.Valid() {
		return Application{}, ErrForbidden
	}
	comments = strings.TrimSpace(comments)

	var (
		result Application
		after  []afterCommit
		metric string
	)
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		after, metric = nil, ""

		app, err := tx.LockApplication(ctx, applicationID)
		if err != nil {
			return storageErr("lock application", err)
		}
		if app.Status != StatusPending {
			return invalidTransition(ErrNotPending)
		}
		if app.UserID == actor.UserID {
			return invalidTransition(ErrSelfApproval)
		}

		cfg, err := tx.Settings(ctx)
		if err != nil {
			return storageErr("load settings", err)
		}
		// Lowering the level count never strands an application that has
		// already advanced past it: its current level becomes the last one.
		levels := max(cfg.ApprovalLevels, app.CurrentLevel)
		if level < 1 || level > levels {
			return invalidTransition(ErrLevelOutOfRange)
		}

		approvals, err := tx.ListApprovals(ctx, app.ID)
		if err != nil {
			return storageErr("list approvals", err)
		}
		byLevel := make(map[int]Approval, len(approvals))
		for _, a := range approvals {
			byLevel[a.Level] = a
		}
		for k := 1; k < level; k++ {
			if earlier, ok := byLevel[k]; !ok || earlier.Status != StatusApproved {
				return invalidTransition(ErrOutOfOrder)
			}
		}
		row, exists := byLevel[level]
		if exists && row.Status != StatusPending {
			return invalidTransition(ErrAlreadyActed)
		}

		applicant, err := tx.Person(ctx, app.UserID)
		if err != nil {
			return storageErr("load applicant", err)
		}
		if !exists {
			row = Approval{ApplicationID: app.ID, Level: level}
		}
		if err := s.canActOnLevel(actor, row, applicant.DepartmentID); err != nil {
			return err
		}
		if !exists {
			if row, err = tx.CreateApproval(ctx, row); err != nil {
				return storageErr("create approval", err)
			}
		}

		acted, err := tx.ActOnApproval(ctx, row.ID, decision, actor.UserID, comments)
		if err != nil {
			return storageErr("act on approval", err)
		}
		if !acted {
			return invalidTransition(ErrAlreadyActed)
		}

		lt, err := tx.LeaveType(ctx, app.LeaveTypeID)
		if err != nil {
			return storageErr("load leave type", err)
		}
		app.ApplicantName, app.LeaveTypeName = applicant.FullName, lt.Name

		levelOneApprover := ""
		if level > 1 {
			first := byLevel[1]
			levelOneApprover = first.ActedBy
			if levelOneApprover == "" {
				levelOneApprover = first.ApproverID
			}
		}

		switch {
		case decision == StatusRejected:
			if err := s.finish(ctx, tx, &app, StatusRejected); err != nil {
				return err
			}
			if _, err := Release(ctx, tx, app.BalanceKey(), app.ID, app.Days); err != nil {
				return err
			}
			message := fmt.Sprintf("Your %s leave from %s to %s was rejected at level %d.", lt.Name, formatDay(app.StartDate), formatDay(app.EndDate), level)
			if comments != "" {
				message += " Reason: " + comments
			}
			if err := notify(ctx, tx, app.UserID, notifications.TitleLeaveRejected, message, app.ID); err != nil {
				return err
			}
			if levelOneApprover != "" && levelOneApprover != actor.UserID {
				if err := notify(ctx, tx, levelOneApprover, notifications.TitleLeaveRejected,
					fmt.Sprintf("The %s leave of %s you approved was rejected at level %d. %s", lt.Name, applicant.FullName, level, comments), app.ID); err != nil {
					return err
				}
			}
			if err := s.record(ctx, tx, EventRejected, actor.UserID, app, level, comments); err != nil {
				return err
			}
			after = append(after, s.mailStatus(applicant, StatusRejected, lt, app, comments))
			metric = metrics.LeaveRejected

		case level == levels:
			if err := s.finish(ctx, tx, &app, StatusApproved); err != nil {
				return err
			}
			if _, err := ReserveAndCommit(ctx, tx, app.BalanceKey(), app.ID, app.Days); err != nil {
				return err
			}
			message := fmt.Sprintf("Your %s leave from %s to %s has been approved.", lt.Name, formatDay(app.StartDate), formatDay(app.EndDate))
			if err := notify(ctx, tx, app.UserID, notifications.TitleLeaveApproved, message, app.ID); err != nil {
				return err
			}
			if levelOneApprover != "" && levelOneApprover != actor.UserID {
				if err := notify(ctx, tx, levelOneApprover, notifications.TitleLeaveApproved,
					fmt.Sprintf("The %s leave of %s you approved received final approval.", lt.Name, applicant.FullName), app.ID); err != nil {
					return err
				}
			}
			if err := s.record(ctx, tx, EventApproved, actor.UserID, app, level, comments); err != nil {
				return err
			}
			after = append(after, s.mailStatus(applicant, StatusApproved, lt, app, comments))
			metric = metrics.LeaveApproved

		default:
			next := level + 1
			approverID, err := tx.FirstActiveWithRoles(ctx, access.LevelRoles(next), app.UserID)
			if err != nil {
				return storageErr("find approver", err)
			}
			if approverID == "" {
				s.log.Warn("no approver holds the next level role", zap.String("application_id", app.ID), zap.Int("level", next))
			}
			if _, ok := byLevel[next]; !ok {
				if _, err := tx.CreateApproval(ctx, Approval{ApplicationID: app.ID, ApproverID: approverID, Level: next}); err != nil {
					return storageErr("create approval", err)
				}
			}
			if err := tx.SetCurrentLevel(ctx, app.ID, next); err != nil {
				return storageErr("advance level", err)
			}
			app.CurrentLevel = next
			if err := notify(ctx, tx, approverID, notifications.TitleLeaveLevelApproved,
				fmt.Sprintf("%s's %s leave from %s to %s awaits your level %d approval.", applicant.FullName, lt.Name, formatDay(app.StartDate), formatDay(app.EndDate), next), app.ID); err != nil {
				return err
			}
			if err := s.record(ctx, tx, EventLevelApproved, actor.UserID, app, level, comments); err != nil {
				return err
			}
			if approverID != "" {
				approver, err := tx.Person(ctx, approverID)
				if err != nil {
					return storageErr("load approver", err)
				}
				after = append(after, s.mailSubmitted(approver, applicant, lt, app))
			}
		}

		result = app
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	if metric != "" {
		s.recorder.RecordLeave(metric)
	}
	s.log.Info("leave decision recorded",
		zap.String("application_id", result.ID),
		zap.String("actor_id", actor.UserID),
		zap.String("decision", decision),
		zap.Int("level", level),
		zap.String("status", result.Status))
	for _, fn := range after {
		fn(ctx)
	}
	return result, nil
}

// Cancel withdraws a pending application. Only the applicant or an actor with
// override may cancel.
func (s *Service) Cancel(ctx context.Context, actor access.ActorContext, applicationID, reason string) (Application, error) {
	if !actor.Valid() {
		return Application{}, ErrForbidden
	}
	reason = strings.TrimSpace(reason)

	var (
		result Application
		after  []afterCommit
	)
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		after = nil

		app, err := tx.LockApplication(ctx, applicationID)
		if err != nil {
			return storageErr("lock application", err)
		}
		byOwner := app.UserID == actor.UserID
		if !byOwner && !s.access.Can(actor.Role, access.CapOverride) {
			return invalidTransition(ErrNotAuthorized)
		}
		if app.Status != StatusPending {
			return invalidTransition(ErrNotPending)
		}

		if err := s.finish(ctx, tx, &app, StatusCancelled); err != nil {
			return err
		}
		if _, err := Release(ctx, tx, app.BalanceKey(), app.ID, app.Days); err != nil {
			return err
		}

		applicant, err := tx.Person(ctx, app.UserID)
		if err != nil {
			return storageErr("load applicant", err)
		}
		lt, err := tx.LeaveType(ctx, app.LeaveTypeID)
		if err != nil {
			return storageErr("load leave type", err)
		}
		app.ApplicantName, app.LeaveTypeName = applicant.FullName, lt.Name

		approvals, err := tx.ListApprovals(ctx, app.ID)
		if err != nil {
			return storageErr("list approvals", err)
		}
		message := fmt.Sprintf("%s cancelled the %s leave from %s to %s.", applicant.FullName, lt.Name, formatDay(app.StartDate), formatDay(app.EndDate))
		for _, a := range approvals {
			if a.Status == StatusPending && a.ApproverID != actor.UserID {
				if err := notify(ctx, tx, a.ApproverID, notifications.TitleLeaveCancelled, message, app.ID); err != nil {
					return err
				}
			}
		}
		if !byOwner {
			if err := notify(ctx, tx, app.UserID, notifications.TitleLeaveCancelled,
				fmt.Sprintf("Your %s leave from %s to %s was cancelled. %s", lt.Name, formatDay(app.StartDate), formatDay(app.EndDate), reason), app.ID); err != nil {
				return err
			}
			after = append(after, s.mailStatus(applicant, StatusCancelled, lt, app, reason))
		}
		if err := s.record(ctx, tx, EventCancelled, actor.UserID, app, 0, reason); err != nil {
			return err
		}

		result = app
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	s.recorder.RecordLeave(metrics.LeaveCancelled)
	s.log.Info("leave application cancelled", zap.String("application_id", result.ID), zap.String("actor_id", actor.UserID))
	for _, fn := range after {
		fn(ctx)
	}
	return result, nil
}

// finish moves a pending application to a terminal status. The status guard
// makes a concurrent duplicate lose even without the row lock.
func (s *Service) finish(ctx context.Context, tx TxRepo, app *Application, status string) error {
	moved, err := tx.TransitionApplication(ctx, app.ID, StatusPending, status)
	if err != nil {
		return storageErr("update application", err)
	}
	if !moved {
		return invalidTransition(ErrNotPending)
	}
	now := s.now().UTC()
	app.Status = status
	app.DecidedAt = &now
	app.UpdatedAt = now
	return nil
}

func (s *Service) mailStatus(applicant Person, status string, lt LeaveType, app Application, note string) afterCommit {
	return func(ctx context.Context) {
		if s.mailer == nil || applicant.Email == "" {
			return
		}
		err := s.mailer.SendStatusChanged(ctx, applicant.Email, applicant.FullName, status, lt.Name, app.StartDate, app.EndDate, note)
		s.warn("status email failed", err, zap.String("application_id", app.ID), zap.String("status", status))
	}
}

func (s *Service) mailSubmitted(approver, applicant Person, lt LeaveType, app Application) afterCommit {
	return func(ctx context.Context) {
		if s.mailer == nil || approver.Email == "" {
			return
		}
		err := s.mailer.SendApplicationSubmitted(ctx, approver.Email, applicant.FullName, lt.Name, app.StartDate, app.EndDate, app.ID)
		s.warn("approval request email failed", err, zap.String("application_id", app.ID), zap.String("approver_id", approver.ID))
	}
}

func formatDay(t time.Time) string {
	return t.Format(time.DateOnly)
}
