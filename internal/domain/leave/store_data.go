package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"elms/internal/domain/audit"
	"elms/internal/domain/notifications"
	"elms/internal/domain/settings"
	"elms/internal/platform/events"
)

const applicationColumns = `a.id, a.user_id, a.leave_type_id, a.start_date, a.end_date, a.days, a.reason,
    COALESCE(a.attachment, ''), a.status, a.current_level, a.decided_at, a.created_at, a.updated_at`

const leaveTypeColumns = `id, name, description, max_days, requires_attachment, applicable_to, active, created_at`

func scanApplication(row pgx.Row, extra ...any) (Application, error) {
	var a Application
	dest := []any{&a.ID, &a.UserID, &a.LeaveTypeID, &a.StartDate, &a.EndDate, &a.Days, &a.Reason,
		&a.Attachment, &a.Status, &a.CurrentLevel, &a.DecidedAt, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Application{}, err
	}
	return a, nil
}

func scanLeaveType(row pgx.Row) (LeaveType, error) {
	var t LeaveType
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.MaxDays, &t.RequiresAttachment, &t.ApplicableTo, &t.Active, &t.CreatedAt); err != nil {
		return LeaveType{}, err
	}
	if t.ApplicableTo == nil {
		t.ApplicableTo = []string{}
	}
	return t, nil
}

func (s *Store) Settings(ctx context.Context) (settings.Settings, error) {
	if s.settings != nil {
		return s.settings.Within(ctx, s.DB)
	}
	return settings.NewStore(s.DB).Load(ctx)
}

func (s *Store) ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+leaveTypeColumns+`
    FROM leave_types
    WHERE $1 OR active
    ORDER BY name
  `, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaveType
	for rows.Next() {
		t, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) LeaveType(ctx context.Context, id string) (LeaveType, error) {
	t, err := scanLeaveType(s.DB.QueryRow(ctx, `
    SELECT `+leaveTypeColumns+`
    FROM leave_types
    WHERE id = $1
  `, id))
	if err != nil {
		return LeaveType{}, notFound(err)
	}
	return t, nil
}

func (s *Store) CreateLeaveType(ctx context.Context, input LeaveTypeInput) (LeaveType, error) {
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	t, err := scanLeaveType(s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (name, description, max_days, requires_attachment, applicable_to, active)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING `+leaveTypeColumns,
		input.Name, input.Description, input.MaxDays, input.RequiresAttachment, nonNil(input.ApplicableTo), active))
	if err != nil {
		if isUniqueViolation(err) {
			return LeaveType{}, &ValidationError{Field: "name", Reason: "leave type already exists"}
		}
		return LeaveType{}, err
	}
	return t, nil
}

func (s *Store) UpdateLeaveType(ctx context.Context, id string, input LeaveTypeInput) (LeaveType, error) {
	t, err := scanLeaveType(s.DB.QueryRow(ctx, `
    UPDATE leave_types
    SET name = $2, description = $3, max_days = $4, requires_attachment = $5,
        applicable_to = $6, active = COALESCE($7, active)
    WHERE id = $1
    RETURNING `+leaveTypeColumns,
		id, input.Name, input.Description, input.MaxDays, input.RequiresAttachment, nonNil(input.ApplicableTo), input.Active))
	if err != nil {
		if isUniqueViolation(err) {
			return LeaveType{}, &ValidationError{Field: "name", Reason: "leave type already exists"}
		}
		return LeaveType{}, notFound(err)
	}
	return t, nil
}

func (s *Store) Person(ctx context.Context, id string) (Person, error) {
	var p Person
	var status string
	if err := s.DB.QueryRow(ctx, `
    SELECT id, email, full_name, role, COALESCE(department_id::text, ''), status
    FROM users
    WHERE id = $1
  `, id).Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.DepartmentID, &status); err != nil {
		return Person{}, notFound(err)
	}
	p.Active = status == "active"
	return p, nil
}

func (s *Store) DepartmentHead(ctx context.Context, departmentID string) (string, error) {
	if departmentID == "" {
		return "", nil
	}
	var headID string
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(d.head_id::text, '')
    FROM departments d
    LEFT JOIN users u ON u.id = d.head_id
    WHERE d.id = $1 AND (d.head_id IS NULL OR u.status = 'active')
  `, departmentID).Scan(&headID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return headID, err
}

func (s *Store) FirstActiveWithRoles(ctx context.Context, roles []string, excludeUserID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id
    FROM users
    WHERE status = 'active' AND role = ANY($1::text[]) AND id::text <> $2
    ORDER BY array_position($1::text[], role), created_at
    LIMIT 1
  `, roles, excludeUserID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *Store) EnsureBalance(ctx context.Context, key BalanceKey, total decimal.Decimal) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (user_id, leave_type_id, year, total_days)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (user_id, leave_type_id, year) DO NOTHING
  `, key.UserID, key.LeaveTypeID, key.Year, total)
	return err
}

func (s *Store) LockBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	b := Balance{BalanceKey: key}
	if err := s.DB.QueryRow(ctx, `
    SELECT id, total_days, used_days, pending_days, updated_at
    FROM leave_balances
    WHERE user_id = $1 AND leave_type_id = $2 AND year = $3
    FOR UPDATE
  `, key.UserID, key.LeaveTypeID, key.Year).Scan(&b.ID, &b.TotalDays, &b.UsedDays, &b.PendingDays, &b.UpdatedAt); err != nil {
		return Balance{}, notFound(err)
	}
	return b, nil
}

func (s *Store) UpdateBalance(ctx context.Context, b Balance) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_balances
    SET used_days = $2, pending_days = $3, updated_at = now()
    WHERE id = $1
  `, b.ID, b.UsedDays, b.PendingDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AppendBalanceEntry(ctx context.Context, entry BalanceEntry) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balance_entries (balance_id, leave_application_id, kind, days)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (leave_application_id, kind) DO NOTHING
  `, entry.BalanceID, entry.ApplicationID, entry.Kind, entry.Days)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CreateApplication(ctx context.Context, app Application) (Application, error) {
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_applications (user_id, leave_type_id, start_date, end_date, days, reason, attachment, status, current_level)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id, created_at, updated_at
  `, app.UserID, app.LeaveTypeID, app.StartDate, app.EndDate, app.Days, app.Reason, nullIfEmpty(app.Attachment), app.Status, app.CurrentLevel).
		Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (s *Store) LockApplication(ctx context.Context, id string) (Application, error) {
	app, err := scanApplication(s.DB.QueryRow(ctx, `
    SELECT `+applicationColumns+`
    FROM leave_applications a
    WHERE a.id = $1
    FOR UPDATE
  `, id))
	if err != nil {
		return Application{}, notFound(err)
	}
	return app, nil
}

func (s *Store) TransitionApplication(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_applications
    SET status = $3, updated_at = now(), decided_at = now()
    WHERE id = $1 AND status = $2
  `, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetCurrentLevel(ctx context.Context, id string, level int) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE leave_applications SET current_level = $2, updated_at = now() WHERE id = $1
  `, id, level)
	return err
}

func (s *Store) ListApprovals(ctx context.Context, applicationID string) ([]Approval, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, leave_application_id, COALESCE(approver_id::text, ''), level, status, comments,
           COALESCE(acted_by::text, ''), acted_at, created_at
    FROM leave_approvals
    WHERE leave_application_id = $1
    ORDER BY level
  `, applicationID)
	if err != nil {
		return nil, notFound(err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.ApproverID, &a.Level, &a.Status, &a.Comments, &a.ActedBy, &a.ActedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateApproval(ctx context.Context, approval Approval) (Approval, error) {
	approval.Status = StatusPending
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_approvals (leave_application_id, approver_id, level, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id, created_at
  `, approval.ApplicationID, nullIfEmpty(approval.ApproverID), approval.Level, approval.Status).Scan(&approval.ID, &approval.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Approval{}, invalidTransition(ErrAlreadyActed)
		}
		return Approval{}, err
	}
	return approval, nil
}

func (s *Store) ActOnApproval(ctx context.Context, id, status, actedBy, comments string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_approvals
    SET status = $2, acted_by = $3, comments = $4, acted_at = now()
    WHERE id = $1 AND status = 'pending'
  `, id, status, actedBy, comments)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Notify(ctx context.Context, n notifications.Notification) error {
	return notifications.NewStore(s.DB).Create(ctx, n)
}

func (s *Store) Audit(ctx context.Context, entry audit.Entry) error {
	return audit.NewStore(s.DB).Record(ctx, entry)
}

func (s *Store) Publish(ctx context.Context, event events.OutboxEvent) error {
	return events.NewOutboxStore(s.DB).Create(ctx, event)
}

func (s *Store) GetApplication(ctx context.Context, id string) (Application, error) {
	var applicant, typeName string
	app, err := scanApplication(s.DB.QueryRow(ctx, `
    SELECT `+applicationColumns+`, u.full_name, lt.name
    FROM leave_applications a
    JOIN users u ON u.id = a.user_id
    JOIN leave_types lt ON lt.id = a.leave_type_id
    WHERE a.id = $1
  `, id), &applicant, &typeName)
	if err != nil {
		return Application{}, notFound(err)
	}
	app.ApplicantName, app.LeaveTypeName = applicant, typeName
	return app, nil
}

func (s *Store) ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error) {
	where, args := applicationWhere(filter)

	var result ApplicationList
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_applications a
    JOIN users u ON u.id = a.user_id
  `+where, args...).Scan(&result.Total); err != nil {
		return result, err
	}

	query := `
    SELECT ` + applicationColumns + `, u.full_name, lt.name
    FROM leave_applications a
    JOIN users u ON u.id = a.user_id
    JOIN leave_types lt ON lt.id = a.leave_type_id
  ` + where + fmt.Sprintf(" ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return result, err
	}
	defer rows.Close()

	result.Items = []Application{}
	for rows.Next() {
		var applicant, typeName string
		app, err := scanApplication(rows, &applicant, &typeName)
		if err != nil {
			return result, err
		}
		app.ApplicantName, app.LeaveTypeName = applicant, typeName
		result.Items = append(result.Items, app)
	}
	return result, rows.Err()
}

func applicationWhere(filter ApplicationFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.UserID != "" {
		add(" AND a.user_id::text = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add(" AND a.status = $%d", filter.Status)
	}
	if filter.LeaveTypeID != "" {
		add(" AND a.leave_type_id::text = $%d", filter.LeaveTypeID)
	}
	if filter.DepartmentID != "" {
		add(" AND u.department_id::text = $%d", filter.DepartmentID)
	}
	return where, args
}

func (s *Store) PendingApprovals(ctx context.Context, query PendingQuery) ([]PendingApproval, error) {
	levels := query.Levels
	if levels == nil {
		levels = []int{}
	}
	rows, err := s.DB.Query(ctx, `
    SELECT `+applicationColumns+`, u.full_name, lt.name, ap.level, ap.id
    FROM leave_approvals ap
    JOIN leave_applications a ON a.id = ap.leave_application_id
    JOIN users u ON u.id = a.user_id
    JOIN leave_types lt ON lt.id = a.leave_type_id
    WHERE ap.status = 'pending' AND a.status = 'pending' AND a.user_id::text <> $1
      AND ($2 OR COALESCE(ap.approver_id::text, '') = $1
           OR (ap.level = ANY($3::int[]) AND (ap.level <> 1 OR ($4 <> '' AND u.department_id::text = $4))))
    ORDER BY a.start_date, a.created_at
    LIMIT $5 OFFSET $6
  `, query.UserID, query.Override, levels, query.DepartmentID, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PendingApproval{}
	for rows.Next() {
		var applicant, typeName, approvalID string
		var level int
		app, err := scanApplication(rows, &applicant, &typeName, &level, &approvalID)
		if err != nil {
			return nil, err
		}
		app.ApplicantName, app.LeaveTypeName = applicant, typeName
		out = append(out, PendingApproval{Application: app, Level: level, ApprovalID: approvalID})
	}
	return out, rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
