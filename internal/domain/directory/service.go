package directory

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/audit"
	"elms/internal/domain/auth"
)

const (
	entityUser       = "user"
	entityDepartment = "department"
	minPasswordLen   = 8
)

// Service manages users and departments. Every write requires manage-directory.
type Service struct {
	repo   Repository
	access *access.Enforcer
	log    *zap.Logger
}

func NewService(repo Repository, enforcer *access.Enforcer, log *zap.Logger) *Service {
	return &Service{repo: repo, access: enforcer, log: log.Named("directory")}
}

func (s *Service) authorize(actor access.ActorContext) error {
	if !s.access.CanAny(actor.Role, access.CapManageDirectory, access.CapOverride) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, actor access.ActorContext, filter UserFilter) ([]User, int, error) {
	if err := s.authorize(actor); err != nil {
		return nil, 0, err
	}
	if filter.Role != "" {
		filter.Role = access.NormalizeRole(filter.Role)
	}
	return s.repo.ListUsers(ctx, filter)
}

func (s *Service) CreateUser(ctx context.Context, actor access.ActorContext, input CreateUserInput) (User, error) {
	if err := s.authorize(actor); err != nil {
		return User{}, err
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return User{}, &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if input.FullName == "" {
		return User{}, &ValidationError{Field: "fullName", Reason: "is required"}
	}
	if len(input.Password) < minPasswordLen {
		return User{}, &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	if !access.ValidRole(input.Role) {
		return User{}, &ValidationError{Field: "role", Reason: "unknown role"}
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	var created User
	err = s.repo.WithTx(ctx, func(tx TxRepo) error {
		if input.DepartmentID != "" {
			if _, err := tx.GetDepartment(ctx, input.DepartmentID); err != nil {
				return departmentErr(err)
			}
		}
		user, err := tx.CreateUser(ctx, User{
			Email:        input.Email,
			FullName:     input.FullName,
			Role:         access.NormalizeRole(input.Role),
			DepartmentID: input.DepartmentID,
			Status:       StatusActive,
		}, hash)
		if err != nil {
			return err
		}
		created = user
		return s.audit(ctx, tx, actor, audit.ActionUserCreated, entityUser, user.ID, user)
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user created", zap.String("user_id", created.ID), zap.String("role", created.Role))
	return created, nil
}

// UpdateUser changes role, department, name or status. Disabling a user who
// heads a department clears the head so level-1 approvals are not addressed to them.
func (s *Service) UpdateUser(ctx context.Context, actor access.ActorContext, id string, input UpdateUserInput) (User, error) {
	if err := s.authorize(actor); err != nil {
		return User{}, err
	}
	if input.Role != nil {
		if !access.ValidRole(*input.Role) {
			return User{}, &ValidationError{Field: "role", Reason: "unknown role"}
		}
		role := access.NormalizeRole(*input.Role)
		input.Role = &role
	}
	if input.Status != nil && *input.Status != StatusActive && *input.Status != StatusDisabled {
		return User{}, &ValidationError{Field: "status", Reason: "must be active or disabled"}
	}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return User{}, &ValidationError{Field: "fullName", Reason: "must not be empty"}
		}
		input.FullName = &name
	}

	var updated User
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		before, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if input.DepartmentID != nil && *input.DepartmentID != "" {
			if _, err := tx.GetDepartment(ctx, *input.DepartmentID); err != nil {
				return departmentErr(err)
			}
		}
		if input.Status != nil && *input.Status == StatusDisabled && id == actor.UserID {
			return &ValidationError{Field: "status", Reason: "cannot disable your own account"}
		}
		user, err := tx.UpdateUser(ctx, id, input)
		if err != nil {
			return err
		}
		if before.DepartmentID != "" && (user.Status != StatusActive || user.DepartmentID != before.DepartmentID) {
			dept, err := tx.GetDepartment(ctx, before.DepartmentID)
			if err != nil {
				return err
			}
			if dept.HeadID == user.ID {
				if err := tx.SetDepartmentHead(ctx, dept.ID, ""); err != nil {
					return err
				}
			}
		}
		updated = user
		return s.audit(ctx, tx, actor, audit.ActionUserUpdated, entityUser, user.ID, map[string]any{
			"before": before,
			"after":  user,
		})
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

func (s *Service) ListDepartments(ctx context.Context, actor access.ActorContext) ([]Department, error) {
	if !actor.Valid() {
		return nil, ErrForbidden
	}
	return s.repo.ListDepartments(ctx)
}

func (s *Service) CreateDepartment(ctx context.Context, actor access.ActorContext, name string) (Department, error) {
	if err := s.authorize(actor); err != nil {
		return Department{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, &ValidationError{Field: "name", Reason: "is required"}
	}

	var created Department
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		dept, err := tx.CreateDepartment(ctx, name)
		if err != nil {
			return err
		}
		created = dept
		return s.audit(ctx, tx, actor, audit.ActionDepartmentCreated, entityDepartment, dept.ID, dept)
	})
	if err != nil {
		return Department{}, err
	}
	return created, nil
}

// SetDepartmentHead appoints an active member of the department who holds the
// department_head role. An empty userID clears the head.
func (s *Service) SetDepartmentHead(ctx context.Context, actor access.ActorContext, departmentID, userID string) (Department, error) {
	if err := s.authorize(actor); err != nil {
		return Department{}, err
	}

	var result Department
	err := s.repo.WithTx(ctx, func(tx TxRepo) error {
		dept, err := tx.GetDepartment(ctx, departmentID)
		if err != nil {
			return err
		}
		if userID != "" {
			user, err := tx.GetUser(ctx, userID)
			if err != nil {
				return userErr(err)
			}
			switch {
			case user.Status != StatusActive:
				return &ValidationError{Field: "userId", Reason: "user is not active"}
			case user.DepartmentID != dept.ID:
				return &ValidationError{Field: "userId", Reason: "user is not a member of the department"}
			case user.Role != access.RoleDepartmentHead:
				return &ValidationError{Field: "userId", Reason: "user does not hold the department_head role"}
			}
		}
		if err := tx.SetDepartmentHead(ctx, dept.ID, userID); err != nil {
			return err
		}
		previous := dept.HeadID
		dept.HeadID = userID
		result = dept
		return s.audit(ctx, tx, actor, audit.ActionDepartmentHeadSet, entityDepartment, dept.ID, map[string]string{
			"previousHeadId": previous,
			"headId":         userID,
		})
	})
	if err != nil {
		return Department{}, err
	}
	return result, nil
}

func (s *Service) audit(ctx context.Context, tx TxRepo, actor access.ActorContext, action, entityType, entityID string, details any) error {
	entry, err := audit.NewEntry(ctx, actor.UserID, action, entityType, entityID, details)
	if err != nil {
		return err
	}
	return tx.Audit(ctx, entry)
}

func departmentErr(err error) error {
	if err == ErrNotFound {
		return &ValidationError{Field: "departmentId", Reason: "unknown department"}
	}
	return err
}

func userErr(err error) error {
	if err == ErrNotFound {
		return &ValidationError{Field: "userId", Reason: "unknown user"}
	}
	return err
}
