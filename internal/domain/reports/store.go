package reports

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"elms/internal/platform/querier"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const leaveRowColumns = `
    SELECT a.id, a.user_id, u.full_name, u.email, COALESCE(d.name, ''), t.name,
           a.start_date, a.end_date, a.days, a.status, a.current_level, a.created_at, a.decided_at
    FROM leave_applications a
    JOIN users u ON u.id = a.user_id
    LEFT JOIN departments d ON d.id = u.department_id
    JOIN leave_types t ON t.id = a.leave_type_id
    WHERE 1 = 1
  `

// buildLeaveQuery keeps applications overlapping [From, To].
func buildLeaveQuery(base string, filter LeaveFilter) (string, []any) {
	query := base
	var args []any

	if filter.From != nil && !filter.From.IsZero() {
		query += " AND a.end_date >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil && !filter.To.IsZero() {
		query += " AND a.start_date <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.To)
	}
	if value := strings.TrimSpace(filter.DepartmentID); value != "" {
		query += " AND u.department_id::text = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND a.status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.LeaveTypeID); value != "" {
		query += " AND a.leave_type_id::text = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	return query, args
}

func (s *Store) LeaveRows(ctx context.Context, filter LeaveFilter) ([]LeaveRow, error) {
	query, args := buildLeaveQuery(leaveRowColumns, filter)
	query += " ORDER BY a.start_date, u.full_name"
	if filter.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaveRow{}
	for rows.Next() {
		var r LeaveRow
		if err := rows.Scan(&r.ApplicationID, &r.UserID, &r.ApplicantName, &r.ApplicantEmail, &r.DepartmentName,
			&r.LeaveTypeName, &r.StartDate, &r.EndDate, &r.Days, &r.Status, &r.CurrentLevel, &r.CreatedAt, &r.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByStatus ignores filter.Status so the breakdown covers every status.
func (s *Store) CountByStatus(ctx context.Context, filter LeaveFilter) (map[string]int, error) {
	filter.Status = ""
	query, args := buildLeaveQuery(leaveRowColumns, filter)
	rows, err := s.DB.Query(ctx, "SELECT status, COUNT(1) FROM ("+query+") report GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *Store) BalanceSummary(ctx context.Context, year int, departmentID string) ([]BalanceRow, error) {
	query := `
    SELECT b.user_id, u.full_name, COALESCE(d.name, ''), t.name, b.year,
           b.total_days, b.used_days, b.pending_days
    FROM leave_balances b
    JOIN users u ON u.id = b.user_id
    LEFT JOIN departments d ON d.id = u.department_id
    JOIN leave_types t ON t.id = b.leave_type_id
    WHERE b.year = $1
  `
	args := []any{year}
	if value := strings.TrimSpace(departmentID); value != "" {
		query += " AND u.department_id::text = $2"
		args = append(args, value)
	}
	query += " ORDER BY u.full_name, t.name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BalanceRow{}
	for rows.Next() {
		var r BalanceRow
		if err := rows.Scan(&r.UserID, &r.FullName, &r.DepartmentName, &r.LeaveTypeName, &r.Year,
			&r.TotalDays, &r.UsedDays, &r.PendingDays); err != nil {
			return nil, err
		}
		r.Available = r.TotalDays.Sub(r.UsedDays).Sub(r.PendingDays)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	query, args := buildJobRunsBaseQuery(filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []JobRun{}
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) JobRunByID(ctx context.Context, runID string) (JobRun, error) {
	run, err := scanJobRun(s.DB.QueryRow(ctx, `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE id::text = $1
  `, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRun{}, ErrNotFound
	}
	return run, err
}

func scanJobRun(row pgx.Row) (JobRun, error) {
	var (
		run        JobRun
		detailsRaw []byte
		completed  *time.Time
	)
	if err := row.Scan(&run.ID, &run.JobType, &run.Status, &detailsRaw, &run.StartedAt, &completed); err != nil {
		return JobRun{}, err
	}
	run.Details = decodeDetails(detailsRaw)
	run.CompletedAt = completed
	return run, nil
}

func buildJobRunsBaseQuery(filter JobRunFilter) (string, []any) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE 1 = 1
  `
	var args []any

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}

	return query, args
}

func decodeDetails(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	details := map[string]any{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{
			"raw": string(raw),
		}
	}
	return details
}
