package leave

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"elms/internal/domain/access"
	"elms/internal/domain/notifications"
)

func TestSubmitValidation(t *testing.T) {
	base := SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   day("2025-06-10"),
		EndDate:     day("2025-06-12"),
		Days:        dp("2"),
	}
	tests := []struct {
		name   string
		mutate func(in *SubmitInput)
		field  string
	}{
		{name: "unknown type", mutate: func(in *SubmitInput) { in.LeaveTypeID = "nope" }, field: "leaveTypeId"},
		{name: "inactive type", mutate: func(in *SubmitInput) { in.LeaveTypeID = "retired" }, field: "leaveTypeId"},
		{name: "type for other roles", mutate: func(in *SubmitInput) { in.LeaveTypeID = "sabbatical" }, field: "leaveTypeId"},
		{name: "missing start", mutate: func(in *SubmitInput) { in.StartDate = day("0001-01-01") }, field: "startDate"},
		{name: "end before start", mutate: func(in *SubmitInput) { in.EndDate = day("2025-06-09") }, field: "endDate"},
		{name: "start in the past", mutate: func(in *SubmitInput) { in.StartDate = day("2025-05-30") }, field: "startDate"},
		{name: "explicit zero days", mutate: func(in *SubmitInput) { in.Days = dp("0") }, field: "days"},
		{name: "negative days", mutate: func(in *SubmitInput) { in.Days = dp("-1") }, field: "days"},
		{name: "not a half day multiple", mutate: func(in *SubmitInput) { in.Days = dp("1.3") }, field: "days"},
		{name: "more days than the range", mutate: func(in *SubmitInput) { in.Days = dp("3.5") }, field: "days"},
		{name: "half days cancel out", mutate: func(in *SubmitInput) {
			in.EndDate, in.Days, in.StartHalf, in.EndHalf = in.StartDate, nil, true, true
		}, field: "days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			in := base
			tt.mutate(&in)

			_, err := f.svc.Submit(context.Background(), f.staff, in)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)

			state := f.repo.snapshot()
			assert.Empty(t, state.apps)
			assert.Empty(t, state.balances)
		})
	}
}

func TestSubmitToday(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	app, err := f.svc.Submit(context.Background(), f.staff, SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   testToday,
		EndDate:     testToday,
	})
	require.NoError(t, err)
	assert.True(t, app.Days.Equal(d("1")))
}

func TestSubmitDerivesHalfDays(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	app, err := f.svc.Submit(context.Background(), f.staff, SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   day("2025-06-10"),
		EndDate:     day("2025-06-12"),
		StartHalf:   true,
	})
	require.NoError(t, err)
	assert.True(t, app.Days.Equal(d("2.5")), "days %s", app.Days)
	assert.True(t, f.balance("u-staff", "annual").PendingDays.Equal(d("2.5")))
}

func TestSubmitRequiresCapability(t *testing.T) {
	f := newFixture(t, 1)
	hr := access.ActorContext{UserID: "u-hr", Role: access.RoleHRAdmin}
	_, err := f.svc.Submit(context.Background(), hr, SubmitInput{LeaveTypeID: "annual"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Submit(context.Background(), access.ActorContext{}, SubmitInput{LeaveTypeID: "annual"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitInsufficientBalanceWritesNothing(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.Submit(context.Background(), f.staff, SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   day("2025-06-10"),
		EndDate:     day("2025-06-24"),
		Days:        dp("10.5"),
	})
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("10")))
	assert.True(t, insufficient.Requested.Equal(d("10.5")))

	state := f.repo.snapshot()
	assert.Empty(t, state.apps)
	assert.Empty(t, state.balances)
	assert.Empty(t, state.audits)
}

func TestSubmitSecondRequestSeesPendingDays(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	f.submit(t, "6")

	_, err := f.svc.Submit(context.Background(), f.staff, SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   day("2025-06-20"),
		EndDate:     day("2025-06-27"),
		Days:        dp("4.5"),
	})
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(d("4")))
}

func TestSubmitSideEffects(t *testing.T) {
	f := newFixture(t, 2)
	f.mailer.EXPECT().SendApplicationSubmitted(gomock.Any(), "head@example.com", "Sam Staff", "Annual", gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	app := f.submit(t, "3")
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, 1, app.CurrentLevel)
	assert.Equal(t, "Sam Staff", app.ApplicantName)
	assert.Equal(t, "Annual", app.LeaveTypeName)
	assert.Equal(t, "family trip", app.Reason)

	state := f.repo.snapshot()
	approvals, err := (&memTx{s: state}).ListApprovals(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "u-head", approvals[0].ApproverID)
	assert.Equal(t, StatusPending, approvals[0].Status)

	notes := state.notificationsFor("u-head")
	require.Len(t, notes, 1)
	assert.Equal(t, notifications.TitleLeaveSubmitted, notes[0].Title)
	assert.Equal(t, app.ID, notes[0].RelatedID)
	assert.Equal(t, []string{EventSubmitted}, state.auditActions())
	require.Len(t, state.outbox, 1)
	assert.Equal(t, app.ID, state.outbox[0].AggregateID)
}

func TestSubmitByDepartmentHeadLeavesLevelOneUnaddressed(t *testing.T) {
	f := newFixture(t, 1)
	app, err := f.svc.Submit(context.Background(), f.head, SubmitInput{
		LeaveTypeID: "annual",
		StartDate:   day("2025-06-10"),
		EndDate:     day("2025-06-10"),
	})
	require.NoError(t, err)

	state := f.repo.snapshot()
	approvals, _ := (&memTx{s: state}).ListApprovals(context.Background(), app.ID)
	require.Len(t, approvals, 1)
	assert.Empty(t, approvals[0].ApproverID)
	assert.Empty(t, state.notifications)

	_, err = f.svc.Approve(context.Background(), f.head, app.ID, 1, "")
	assertTransition(t, err, ErrSelfApproval)

	f.mailer.EXPECT().SendStatusChanged(gomock.Any(), "head@example.com", gomock.Any(), StatusApproved, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	approved, err := f.svc.Approve(context.Background(), f.admin, app.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
}

func TestSubmitAttachment(t *testing.T) {
	sick := func(up *Upload) SubmitInput {
		return SubmitInput{
			LeaveTypeID: "sick",
			StartDate:   day("2025-06-03"),
			EndDate:     day("2025-06-04"),
			Attachment:  up,
		}
	}

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, 1)
		_, err := f.svc.Submit(context.Background(), f.staff, sick(nil))
		var attachment *AttachmentError
		assert.ErrorAs(t, err, &attachment)
	})

	t.Run("extension not allowed", func(t *testing.T) {
		f := newFixture(t, 1)
		_, err := f.svc.Submit(context.Background(), f.staff, sick(&Upload{FileName: "note.exe", Data: []byte("MZ")}))
		var attachment *AttachmentError
		require.ErrorAs(t, err, &attachment)
		assert.Contains(t, attachment.Reason, ".exe")
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t, 1)
		f.repo.state.settings.MaxAttachmentSize = 4
		_, err := f.svc.Submit(context.Background(), f.staff, sick(&Upload{FileName: "note.pdf", Data: []byte("12345")}))
		var attachment *AttachmentError
		assert.ErrorAs(t, err, &attachment)
	})

	t.Run("stored", func(t *testing.T) {
		f := newFixture(t, 1)
		f.allowMail()
		data := []byte("%PDF-1.4")
		f.files.EXPECT().Store(gomock.Any(), "note.pdf", data, gomock.Any(), int64(2<<20)).Return("ref-1/note.pdf", nil)

		app, err := f.svc.Submit(context.Background(), f.staff, sick(&Upload{FileName: "note.pdf", Data: data}))
		require.NoError(t, err)
		assert.Equal(t, "ref-1/note.pdf", app.Attachment)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, 1)
		f.files.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))

		_, err := f.svc.Submit(context.Background(), f.staff, sick(&Upload{FileName: "note.pdf", Data: []byte("x")}))
		var attachment *AttachmentError
		require.ErrorAs(t, err, &attachment)
		assert.Equal(t, "attachment could not be stored", attachment.Reason)
		var storage *StorageError
		assert.False(t, errors.As(err, &storage))
		assert.Empty(t, f.repo.snapshot().apps)
	})

	t.Run("removed when the transaction fails", func(t *testing.T) {
		f := newFixture(t, 1)
		f.repo.failOn = "CreateApplication"
		f.files.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("ref-2/note.pdf", nil)
		f.files.EXPECT().Remove(gomock.Any(), "ref-2/note.pdf").Return(nil)

		_, err := f.svc.Submit(context.Background(), f.staff, sick(&Upload{FileName: "note.pdf", Data: []byte("x")}))
		assert.ErrorIs(t, err, errInjected)
	})

	t.Run("ignored when not required", func(t *testing.T) {
		f := newFixture(t, 1)
		f.allowMail()
		app, err := f.svc.Submit(context.Background(), f.staff, SubmitInput{
			LeaveTypeID: "annual",
			StartDate:   day("2025-06-03"),
			EndDate:     day("2025-06-03"),
			Attachment:  &Upload{FileName: "note.exe", Data: []byte("MZ")},
		})
		require.NoError(t, err)
		assert.Empty(t, app.Attachment)
	})
}

func TestAttachmentDownload(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	ctx := context.Background()
	f.files.EXPECT().Store(gomock.Any(), "note.pdf", gomock.Any(), gomock.Any(), gomock.Any()).Return("ref-3/note.pdf", nil)
	app, err := f.svc.Submit(ctx, f.staff, SubmitInput{
		LeaveTypeID: "sick",
		StartDate:   day("2025-06-03"),
		EndDate:     day("2025-06-04"),
		Attachment:  &Upload{FileName: "note.pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)

	f.files.EXPECT().Open(gomock.Any(), "ref-3/note.pdf").Return([]byte("%PDF"), nil).Times(2)
	file, err := f.svc.Attachment(ctx, f.staff, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "note.pdf", file.FileName)
	assert.Equal(t, []byte("%PDF"), file.Data)

	_, err = f.svc.Attachment(ctx, f.head, app.ID)
	require.NoError(t, err, "the addressed approver may download")

	colleague := access.ActorContext{UserID: "u-colleague", Role: access.RoleStaff, DepartmentID: "dept-a"}
	_, err = f.svc.Attachment(ctx, colleague, app.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	plain := f.submit(t, "1")
	_, err = f.svc.Attachment(ctx, f.staff, plain.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	f.files.EXPECT().Open(gomock.Any(), "ref-3/note.pdf").Return(nil, fs.ErrNotExist)
	_, err = f.svc.Attachment(ctx, f.staff, app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaveTypeManagement(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	hr := access.ActorContext{UserID: "u-hr", Role: access.RoleHRAdmin}

	_, err := f.svc.CreateType(ctx, f.staff, LeaveTypeInput{Name: "Study", MaxDays: d("5")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateType(ctx, hr, LeaveTypeInput{Name: "Study", MaxDays: d("5"), ApplicableTo: []string{"janitor"}})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "applicableTo", validation.Field)

	created, err := f.svc.CreateType(ctx, hr, LeaveTypeInput{Name: " Study ", MaxDays: d("5"), ApplicableTo: []string{"Head_Of_Department", "staff"}})
	require.NoError(t, err)
	assert.Equal(t, "Study", created.Name)
	assert.True(t, created.Active)
	assert.Equal(t, []string{access.RoleDepartmentHead, access.RoleStaff}, created.ApplicableTo)

	_, err = f.svc.CreateType(ctx, hr, LeaveTypeInput{Name: "Study", MaxDays: d("5")})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "name", validation.Field)

	inactive := false
	updated, err := f.svc.UpdateType(ctx, hr, created.ID, LeaveTypeInput{Name: "Study", MaxDays: d("7.5"), Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	staffTypes, err := f.svc.ListTypes(ctx, f.staff)
	require.NoError(t, err)
	for _, lt := range staffTypes {
		assert.True(t, lt.Active)
	}
	hrTypes, err := f.svc.ListTypes(ctx, hr)
	require.NoError(t, err)
	assert.Greater(t, len(hrTypes), len(staffTypes))

	assert.Equal(t, []string{"leave_type.created", "leave_type.updated"}, f.repo.snapshot().auditActions())
}

func TestBalances(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	f.submit(t, "2")

	balances, err := f.svc.Balances(context.Background(), f.staff, 2025)
	require.NoError(t, err)
	require.Len(t, balances, 2, "annual and sick apply to staff")
	byType := map[string]Balance{}
	for _, b := range balances {
		byType[b.LeaveTypeID] = b
	}
	assert.True(t, byType["annual"].Available().Equal(d("8")))
	assert.True(t, byType["sick"].Available().Equal(d("5")))
	assert.Equal(t, "Sick", byType["sick"].LeaveTypeName)
}

func TestListApplicationsScope(t *testing.T) {
	f := newFixture(t, 1)
	f.allowMail()
	ctx := context.Background()
	f.submit(t, "1")
	_, err := f.svc.Submit(ctx, f.director, SubmitInput{LeaveTypeID: "annual", StartDate: day("2025-06-10"), EndDate: day("2025-06-10")})
	require.NoError(t, err)

	own, err := f.svc.ListApplications(ctx, f.staff, ApplicationFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, own.Total)

	dept, err := f.svc.ListApplications(ctx, f.head, ApplicationFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dept.Total, "head sees their department only")

	all, err := f.svc.ListApplications(ctx, f.admin, ApplicationFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)
}
