package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"elms/internal/domain/audit"
	"elms/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// Repo is the PostgreSQL Repository.
type Repo struct {
	*Store
	db querier.TxBeginner
}

func NewRepo(db querier.TxBeginner) *Repo {
	return &Repo{Store: NewStore(db), db: db}
}

func (r *Repo) WithTx(ctx context.Context, fn func(tx TxRepo) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(NewStore(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const userColumns = `id, email, full_name, role, COALESCE(department_id::text, ''), status, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.DepartmentID, &u.Status, &u.CreatedAt)
	return u, mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = $1`, id))
}

func (s *Store) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    INSERT INTO users (email, full_name, password_hash, role, department_id, status)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING `+userColumns,
		user.Email, user.FullName, passwordHash, user.Role, nullIfEmpty(user.DepartmentID), user.Status))
}

func (s *Store) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (User, error) {
	departmentSet := input.DepartmentID != nil
	department := ""
	if departmentSet {
		department = *input.DepartmentID
	}
	return scanUser(s.DB.QueryRow(ctx, `
    UPDATE users SET
      full_name = COALESCE($2, full_name),
      role = COALESCE($3, role),
      department_id = CASE WHEN $4 THEN NULLIF($5, '')::uuid ELSE department_id END,
      status = COALESCE($6, status)
    WHERE id::text = $1
    RETURNING `+userColumns,
		id, input.FullName, input.Role, departmentSet, department, input.Status))
}

func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	where, args := userWhere(filter)

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.DB.Query(ctx, `SELECT `+userColumns+` FROM users`+where+
		fmt.Sprintf(" ORDER BY full_name LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func userWhere(filter UserFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.DepartmentID != "" {
		add("department_id::text = $%d", filter.DepartmentID)
	}
	if filter.Role != "" {
		add("role = $%d", filter.Role)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const departmentColumns = `id, name, COALESCE(head_id::text, ''), created_at`

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.HeadID, &d.CreatedAt)
	return d, mapErr(err)
}

func (s *Store) GetDepartment(ctx context.Context, id string) (Department, error) {
	return scanDepartment(s.DB.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id::text = $1`, id))
}

func (s *Store) CreateDepartment(ctx context.Context, name string) (Department, error) {
	return scanDepartment(s.DB.QueryRow(ctx, `
    INSERT INTO departments (name) VALUES ($1) RETURNING `+departmentColumns, name))
}

func (s *Store) SetDepartmentHead(ctx context.Context, departmentID, userID string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE departments SET head_id = $2 WHERE id::text = $1`, departmentID, nullIfEmpty(userID))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Audit(ctx context.Context, entry audit.Entry) error {
	return audit.NewStore(s.DB).Record(ctx, entry)
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503", "22P02":
			return &ValidationError{Field: "departmentId", Reason: "unknown department"}
		}
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
