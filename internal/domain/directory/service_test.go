package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"elms/internal/domain/access"
	"elms/internal/domain/audit"
	"elms/internal/domain/auth"
	"elms/internal/domain/directory"
	"elms/internal/domain/directory/mock"
)

var (
	hrAdmin = access.ActorContext{UserID: "u-hr", Role: access.RoleHRAdmin}
	staff   = access.ActorContext{UserID: "u-staff", Role: access.RoleStaff}
)

func newService(t *testing.T) (*directory.Service, *mock.MockRepository, *mock.MockTxRepo) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	tx := mock.NewMockTxRepo(ctrl)
	repo.EXPECT().WithTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, fn func(directory.TxRepo) error) error {
		return fn(tx)
	}).AnyTimes()
	return directory.NewService(repo, access.MustDefault(), zap.NewNop()), repo, tx
}

func TestWritesRequireManageDirectory(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, staff, directory.CreateUserInput{})
	assert.ErrorIs(t, err, directory.ErrForbidden)
	_, err = svc.CreateDepartment(ctx, staff, "Physics")
	assert.ErrorIs(t, err, directory.ErrForbidden)
	_, err = svc.SetDepartmentHead(ctx, staff, "d1", "u1")
	assert.ErrorIs(t, err, directory.ErrForbidden)
	_, _, err = svc.ListUsers(ctx, staff, directory.UserFilter{})
	assert.ErrorIs(t, err, directory.ErrForbidden)
}

func TestCreateUser(t *testing.T) {
	svc, _, tx := newService(t)
	ctx := context.Background()

	tx.EXPECT().GetDepartment(ctx, "d1").Return(directory.Department{ID: "d1"}, nil)
	tx.EXPECT().CreateUser(ctx, gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u directory.User, hash string) (directory.User, error) {
		assert.Equal(t, "new@example.com", u.Email)
		assert.Equal(t, access.RoleDepartmentHead, u.Role)
		assert.Equal(t, directory.StatusActive, u.Status)
		assert.NoError(t, auth.CheckPassword(hash, "ChangeMe123!"))
		u.ID = "u-new"
		return u, nil
	})
	tx.EXPECT().Audit(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Entry) error {
		assert.Equal(t, audit.ActionUserCreated, e.Action)
		assert.Equal(t, "u-new", e.EntityID)
		assert.Equal(t, "u-hr", e.UserID)
		return nil
	})

	user, err := svc.CreateUser(ctx, hrAdmin, directory.CreateUserInput{
		Email:        " New@Example.com ",
		FullName:     "New Person",
		Password:     "ChangeMe123!",
		Role:         "head_of_department",
		DepartmentID: "d1",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-new", user.ID)
}

func TestCreateUserValidation(t *testing.T) {
	valid := directory.CreateUserInput{Email: "a@example.com", FullName: "A", Password: "longenough", Role: "staff"}
	tests := []struct {
		name   string
		mutate func(in *directory.CreateUserInput)
		field  string
	}{
		{name: "bad email", mutate: func(in *directory.CreateUserInput) { in.Email = "nope" }, field: "email"},
		{name: "missing name", mutate: func(in *directory.CreateUserInput) { in.FullName = " " }, field: "fullName"},
		{name: "short password", mutate: func(in *directory.CreateUserInput) { in.Password = "short" }, field: "password"},
		{name: "unknown role", mutate: func(in *directory.CreateUserInput) { in.Role = "janitor" }, field: "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t)
			in := valid
			tt.mutate(&in)
			_, err := svc.CreateUser(context.Background(), hrAdmin, in)
			var validation *directory.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestCreateUserUnknownDepartment(t *testing.T) {
	svc, _, tx := newService(t)
	tx.EXPECT().GetDepartment(gomock.Any(), "missing").Return(directory.Department{}, directory.ErrNotFound)

	_, err := svc.CreateUser(context.Background(), hrAdmin, directory.CreateUserInput{
		Email: "a@example.com", FullName: "A", Password: "longenough", Role: "staff", DepartmentID: "missing",
	})
	var validation *directory.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "departmentId", validation.Field)
}

func TestDisablingHeadClearsDepartmentHead(t *testing.T) {
	svc, _, tx := newService(t)
	ctx := context.Background()
	disabled := directory.StatusDisabled

	before := directory.User{ID: "u-head", Role: access.RoleDepartmentHead, DepartmentID: "d1", Status: directory.StatusActive}
	after := before
	after.Status = directory.StatusDisabled

	tx.EXPECT().GetUser(ctx, "u-head").Return(before, nil)
	tx.EXPECT().UpdateUser(ctx, "u-head", gomock.Any()).Return(after, nil)
	tx.EXPECT().GetDepartment(ctx, "d1").Return(directory.Department{ID: "d1", HeadID: "u-head"}, nil)
	tx.EXPECT().SetDepartmentHead(ctx, "d1", "").Return(nil)
	tx.EXPECT().Audit(ctx, gomock.Any()).Return(nil)

	user, err := svc.UpdateUser(ctx, hrAdmin, "u-head", directory.UpdateUserInput{Status: &disabled})
	require.NoError(t, err)
	assert.Equal(t, directory.StatusDisabled, user.Status)
}

func TestCannotDisableSelf(t *testing.T) {
	svc, _, tx := newService(t)
	disabled := directory.StatusDisabled
	tx.EXPECT().GetUser(gomock.Any(), "u-hr").Return(directory.User{ID: "u-hr", Status: directory.StatusActive}, nil)

	_, err := svc.UpdateUser(context.Background(), hrAdmin, "u-hr", directory.UpdateUserInput{Status: &disabled})
	var validation *directory.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "status", validation.Field)
}

func TestSetDepartmentHead(t *testing.T) {
	dept := directory.Department{ID: "d1", Name: "Physics"}
	tests := []struct {
		name    string
		user    directory.User
		wantErr bool
	}{
		{name: "member head", user: directory.User{ID: "u1", Role: access.RoleDepartmentHead, DepartmentID: "d1", Status: directory.StatusActive}},
		{name: "other department", user: directory.User{ID: "u1", Role: access.RoleDepartmentHead, DepartmentID: "d2", Status: directory.StatusActive}, wantErr: true},
		{name: "staff role", user: directory.User{ID: "u1", Role: access.RoleStaff, DepartmentID: "d1", Status: directory.StatusActive}, wantErr: true},
		{name: "disabled", user: directory.User{ID: "u1", Role: access.RoleDepartmentHead, DepartmentID: "d1", Status: directory.StatusDisabled}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, tx := newService(t)
			ctx := context.Background()
			tx.EXPECT().GetDepartment(ctx, "d1").Return(dept, nil)
			tx.EXPECT().GetUser(ctx, "u1").Return(tt.user, nil)
			if !tt.wantErr {
				tx.EXPECT().SetDepartmentHead(ctx, "d1", "u1").Return(nil)
				tx.EXPECT().Audit(ctx, gomock.Any()).Return(nil)
			}

			got, err := svc.SetDepartmentHead(ctx, hrAdmin, "d1", "u1")
			if tt.wantErr {
				var validation *directory.ValidationError
				assert.ErrorAs(t, err, &validation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", got.HeadID)
		})
	}
}

func TestListDepartmentsForAnyActor(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.EXPECT().ListDepartments(gomock.Any()).Return([]directory.Department{{ID: "d1"}}, nil)

	depts, err := svc.ListDepartments(context.Background(), staff)
	require.NoError(t, err)
	assert.Len(t, depts, 1)

	_, err = svc.ListDepartments(context.Background(), access.ActorContext{})
	assert.ErrorIs(t, err, directory.ErrForbidden)
}
