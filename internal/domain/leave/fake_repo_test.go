package leave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"elms/internal/domain/audit"
	"elms/internal/domain/notifications"
	"elms/internal/domain/settings"
	"elms/internal/platform/events"
)

var errInjected = errors.New("injected failure")

type memState struct {
	settings      settings.Settings
	types         map[string]LeaveType
	people        map[string]Person
	order         []string
	heads         map[string]string
	balances      map[BalanceKey]Balance
	entries       map[string]BalanceEntry
	apps          map[string]Application
	approvals     map[string]Approval
	notifications []notifications.Notification
	audits        []audit.Entry
	outbox        []events.OutboxEvent
	seq           int
}

func (s *memState) clone() *memState {
	c := *s
	c.types = cloneMap(s.types)
	c.people = cloneMap(s.people)
	c.order = append([]string(nil), s.order...)
	c.heads = cloneMap(s.heads)
	c.balances = cloneMap(s.balances)
	c.entries = cloneMap(s.entries)
	c.apps = cloneMap(s.apps)
	c.approvals = cloneMap(s.approvals)
	c.notifications = append([]notifications.Notification(nil), s.notifications...)
	c.audits = append([]audit.Entry(nil), s.audits...)
	c.outbox = append([]events.OutboxEvent(nil), s.outbox...)
	return &c
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// memRepo is a Repository whose transactions run one at a time on a copy of
// the state, which stands in for row locks and rollback.
type memRepo struct {
	mu     sync.Mutex
	state  *memState
	failOn string
}

func newMemRepo() *memRepo {
	return &memRepo{state: &memState{
		settings:  settings.Defaults(),
		types:     map[string]LeaveType{},
		people:    map[string]Person{},
		heads:     map[string]string{},
		balances:  map[BalanceKey]Balance{},
		entries:   map[string]BalanceEntry{},
		apps:      map[string]Application{},
		approvals: map[string]Approval{},
	}}
}

func (r *memRepo) addPerson(p Person) {
	p.Active = true
	r.state.people[p.ID] = p
	r.state.order = append(r.state.order, p.ID)
}

func (r *memRepo) snapshot() *memState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *memRepo) WithTx(ctx context.Context, fn func(tx TxRepo) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	if err := fn(&memTx{s: work, failOn: r.failOn}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memRepo) ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{s: r.state}).ListTypes(ctx, includeInactive)
}

func (r *memRepo) GetApplication(ctx context.Context, id string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.state.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	app.ApplicantName = r.state.people[app.UserID].FullName
	app.LeaveTypeName = r.state.types[app.LeaveTypeID].Name
	return app, nil
}

func (r *memRepo) ListApprovals(ctx context.Context, applicationID string) ([]Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{s: r.state}).ListApprovals(ctx, applicationID)
}

func (r *memRepo) ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ApplicationList{Items: []Application{}}
	for _, app := range r.state.apps {
		if filter.UserID != "" && app.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != "" && r.state.people[app.UserID].DepartmentID != filter.DepartmentID {
			continue
		}
		out.Items = append(out.Items, app)
	}
	out.Total = len(out.Items)
	return out, nil
}

func (r *memRepo) PendingApprovals(ctx context.Context, q PendingQuery) ([]PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []PendingApproval{}
	for _, row := range r.state.approvals {
		app := r.state.apps[row.ApplicationID]
		if row.Status != StatusPending || app.Status != StatusPending || app.UserID == q.UserID {
			continue
		}
		match := q.Override || row.ApproverID == q.UserID
		for _, level := range q.Levels {
			if level == row.Level && (level != 1 || (q.DepartmentID != "" && r.state.people[app.UserID].DepartmentID == q.DepartmentID)) {
				match = true
			}
		}
		if match {
			out = append(out, PendingApproval{Application: app, Level: row.Level, ApprovalID: row.ID})
		}
	}
	return out, nil
}

func (r *memRepo) Person(ctx context.Context, id string) (Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memTx{s: r.state}).Person(ctx, id)
}

type memTx struct {
	s      *memState
	failOn string
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) nextID(prefix string) string {
	t.s.seq++
	return fmt.Sprintf("%s-%d", prefix, t.s.seq)
}

func (t *memTx) Settings(ctx context.Context) (settings.Settings, error) {
	return t.s.settings, t.fail("Settings")
}

func (t *memTx) ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error) {
	var out []LeaveType
	for _, lt := range t.s.types {
		if includeInactive || lt.Active {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) LeaveType(ctx context.Context, id string) (LeaveType, error) {
	lt, ok := t.s.types[id]
	if !ok {
		return LeaveType{}, ErrNotFound
	}
	return lt, nil
}

func (t *memTx) CreateLeaveType(ctx context.Context, input LeaveTypeInput) (LeaveType, error) {
	for _, existing := range t.s.types {
		if existing.Name == input.Name {
			return LeaveType{}, &ValidationError{Field: "name", Reason: "leave type already exists"}
		}
	}
	lt := LeaveType{ID: t.nextID("lt"), Name: input.Name, Description: input.Description, MaxDays: input.MaxDays,
		RequiresAttachment: input.RequiresAttachment, ApplicableTo: input.ApplicableTo, Active: input.Active == nil || *input.Active}
	t.s.types[lt.ID] = lt
	return lt, nil
}

func (t *memTx) UpdateLeaveType(ctx context.Context, id string, input LeaveTypeInput) (LeaveType, error) {
	lt, ok := t.s.types[id]
	if !ok {
		return LeaveType{}, ErrNotFound
	}
	lt.Name, lt.Description, lt.MaxDays = input.Name, input.Description, input.MaxDays
	lt.RequiresAttachment, lt.ApplicableTo = input.RequiresAttachment, input.ApplicableTo
	if input.Active != nil {
		lt.Active = *input.Active
	}
	t.s.types[id] = lt
	return lt, nil
}

func (t *memTx) Person(ctx context.Context, id string) (Person, error) {
	p, ok := t.s.people[id]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) DepartmentHead(ctx context.Context, departmentID string) (string, error) {
	return t.s.heads[departmentID], nil
}

func (t *memTx) FirstActiveWithRoles(ctx context.Context, roles []string, excludeUserID string) (string, error) {
	for _, role := range roles {
		for _, id := range t.s.order {
			p := t.s.people[id]
			if p.Active && p.Role == role && p.ID != excludeUserID {
				return p.ID, nil
			}
		}
	}
	return "", nil
}

func (t *memTx) EnsureBalance(ctx context.Context, key BalanceKey, total decimal.Decimal) error {
	if err := t.fail("EnsureBalance"); err != nil {
		return err
	}
	if _, ok := t.s.balances[key]; !ok {
		t.s.balances[key] = Balance{ID: t.nextID("bal"), BalanceKey: key, TotalDays: total}
	}
	return nil
}

func (t *memTx) LockBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	b, ok := t.s.balances[key]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return b, nil
}

func (t *memTx) UpdateBalance(ctx context.Context, b Balance) error {
	if _, ok := t.s.balances[b.BalanceKey]; !ok {
		return ErrNotFound
	}
	t.s.balances[b.BalanceKey] = b
	return nil
}

func (t *memTx) AppendBalanceEntry(ctx context.Context, entry BalanceEntry) (bool, error) {
	key := entry.ApplicationID + "/" + entry.Kind
	if _, ok := t.s.entries[key]; ok {
		return false, nil
	}
	t.s.entries[key] = entry
	return true, nil
}

func (t *memTx) CreateApplication(ctx context.Context, app Application) (Application, error) {
	if err := t.fail("CreateApplication"); err != nil {
		return Application{}, err
	}
	app.ID = t.nextID("app")
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	t.s.apps[app.ID] = app
	return app, nil
}

func (t *memTx) LockApplication(ctx context.Context, id string) (Application, error) {
	app, ok := t.s.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (t *memTx) TransitionApplication(ctx context.Context, id, from, to string) (bool, error) {
	app, ok := t.s.apps[id]
	if !ok || app.Status != from {
		return false, nil
	}
	app.Status = to
	t.s.apps[id] = app
	return true, nil
}

func (t *memTx) SetCurrentLevel(ctx context.Context, id string, level int) error {
	app := t.s.apps[id]
	app.CurrentLevel = level
	t.s.apps[id] = app
	return nil
}

func (t *memTx) ListApprovals(ctx context.Context, applicationID string) ([]Approval, error) {
	var out []Approval
	for _, a := range t.s.approvals {
		if a.ApplicationID == applicationID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (t *memTx) CreateApproval(ctx context.Context, approval Approval) (Approval, error) {
	for _, existing := range t.s.approvals {
		if existing.ApplicationID == approval.ApplicationID && existing.Level == approval.Level {
			return Approval{}, invalidTransition(ErrAlreadyActed)
		}
	}
	approval.ID = t.nextID("apr")
	approval.Status = StatusPending
	t.s.approvals[approval.ID] = approval
	return approval, nil
}

func (t *memTx) ActOnApproval(ctx context.Context, id, status, actedBy, comments string) (bool, error) {
	a, ok := t.s.approvals[id]
	if !ok || a.Status != StatusPending {
		return false, nil
	}
	now := time.Now()
	a.Status, a.ActedBy, a.Comments, a.ActedAt = status, actedBy, comments, &now
	t.s.approvals[id] = a
	return true, nil
}

func (t *memTx) Notify(ctx context.Context, n notifications.Notification) error {
	t.s.notifications = append(t.s.notifications, n)
	return nil
}

func (t *memTx) Audit(ctx context.Context, entry audit.Entry) error {
	t.s.audits = append(t.s.audits, entry)
	return nil
}

func (t *memTx) Publish(ctx context.Context, event events.OutboxEvent) error {
	if err := t.fail("Publish"); err != nil {
		return err
	}
	t.s.outbox = append(t.s.outbox, event)
	return nil
}

func (s *memState) notificationsFor(userID string) []notifications.Notification {
	var out []notifications.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memState) auditActions() []string {
	var out []string
	for _, e := range s.audits {
		out = append(out, e.Action)
	}
	return out
}
