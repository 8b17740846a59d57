package support

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms/internal/core/apperror"
	"lms/internal/core/entity"
	"lms/internal/core/id"
	"lms/internal/core/numerator"
	"lms/internal/core/security"
	"lms/internal/domain"
	"lms/internal/domain/domaintest"
)

type memTickets struct {
	*domaintest.MemRepo[*Ticket]
}

func (m memTickets) ListOverdue(ctx context.Context, v security.Visibility, now time.Time, limit int) ([]*Ticket, error) {
	rows := m.Find(func(t *Ticket) bool {
		visible := v.All || (v.BranchID != nil && t.BranchID != nil && *t.BranchID == *v.BranchID)
		return visible && t.Status.Pending() && t.SLA(now).Breached()
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].FirstResponseDueAt.Before(*rows[j].FirstResponseDueAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memMessages struct {
	mu   sync.Mutex
	rows []*Message
}

func (m *memMessages) Append(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *msg
	m.rows = append(m.rows, &v)
	return nil
}

func (m *memMessages) ListByTicket(ctx context.Context, ticketID id.ID, includeInternal bool) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Message{}
	for _, msg := range m.rows {
		if msg.TicketID == ticketID && (includeInternal || !msg.Internal) {
			v := *msg
			out = append(out, &v)
		}
	}
	return out, nil
}

type fixture struct {
	svc      *Service
	messages *memMessages
	now      time.Time
	org      id.ID
	branch   id.ID
	student  id.ID
	agent    id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{org: id.New(), branch: id.New(), student: id.New(), agent: id.New(), now: openedAt, messages: &memMessages{}}

	gen := numerator.NewMemoryGenerator()
	_, err := gen.Provision(context.Background(),
		numerator.Scope{Type: numerator.TypeTicket, OrganizationID: &f.org},
		numerator.DefaultConfig("TKT-"))
	require.NoError(t, err)

	repo := memTickets{domaintest.NewMemRepo("tickets", func(t *Ticket) *Ticket { v := *t; return &v })}
	f.svc = NewService(repo, f.messages, gen, domaintest.InlineTx{}, func() time.Time { return f.now })
	return f
}

func (f *fixture) as(user id.ID, branch id.ID) context.Context {
	return security.WithScope(context.Background(),
		security.NewBranchScope(user.String(), &f.org, &branch, false))
}

func (f *fixture) open(t *testing.T, p Priority) *Ticket {
	t.Helper()
	tk, err := f.svc.Open(f.as(f.student, f.branch), OpenInput{Subject: "Cannot download certificate", Priority: p})
	require.NoError(t, err)
	return tk
}

func TestService_OpenNumbersTickets(t *testing.T) {
	f := newFixture(t)

	first := f.open(t, PriorityHigh)
	assert.Equal(t, "TKT-000001", first.TicketNo)
	assert.Equal(t, f.branch, *first.BranchID)
	assert.Equal(t, f.student, first.ReporterID)
	assert.Equal(t, StatusOpen, first.Status)
	assert.Equal(t, openedAt.Add(time.Hour), *first.FirstResponseDueAt)

	ref := entity.Ref{Kind: entity.RefCourse, ID: id.New()}
	second, err := f.svc.Open(f.as(f.agent, f.branch), OpenInput{Subject: "Refund call", Channel: ChannelPhone, ReporterID: &f.student, Target: &ref})
	require.NoError(t, err)
	assert.Equal(t, "TKT-000002", second.TicketNo)
	assert.Equal(t, f.student, second.ReporterID)
	target, ok := second.Target()
	require.True(t, ok)
	assert.Equal(t, ref, target)

	noBranch := security.WithScope(context.Background(), security.NewBranchScope(f.student.String(), &f.org, nil, false))
	_, err = f.svc.Open(noBranch, OpenInput{Subject: "Hello"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = f.svc.Open(f.as(f.student, f.branch), OpenInput{Subject: " "})
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))
}

func TestService_ThreadVisibility(t *testing.T) {
	f := newFixture(t)
	tk := f.open(t, PriorityNormal)
	student, agent := f.as(f.student, f.branch), f.as(f.agent, f.branch)

	_, err := f.svc.Reply(student, tk.ID, "my own note", true, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = f.svc.Reply(agent, tk.ID, "customer paid twice", true, true)
	require.NoError(t, err)
	f.now = openedAt.Add(time.Hour)
	_, err = f.svc.Reply(agent, tk.ID, "Which order number?", false, true)
	require.NoError(t, err)

	got, err := f.svc.Get(student, tk.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingOnUser, got.Status)
	assert.Equal(t, openedAt.Add(time.Hour), *got.FirstResponseAt)

	public, err := f.svc.Messages(student, tk.ID, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Which order number?", public[0].Body)

	all, err := f.svc.Messages(agent, tk.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.Reply(student, tk.ID, "ORD-000042", false, false)
	require.NoError(t, err)
	got, _ = f.svc.Get(student, tk.ID, false)
	assert.Equal(t, StatusWaitingOnSupport, got.Status)

	classmate := f.as(id.New(), f.branch)
	_, err = f.svc.Get(classmate, tk.ID, false)
	assert.True(t, apperror.IsNotFound(err), "other students do not see the ticket")
	_, err = f.svc.Reply(classmate, tk.ID, "me too", false, false)
	assert.True(t, apperror.IsNotFound(err))

	elsewhere := f.as(f.agent, id.New())
	_, err = f.svc.Get(elsewhere, tk.ID, true)
	assert.True(t, apperror.HasCode(err, apperror.CodeBranchScope))
}

func TestService_DeskWorkflow(t *testing.T) {
	f := newFixture(t)
	tk := f.open(t, PriorityLow)
	agent := f.as(f.agent, f.branch)

	assigned, err := f.svc.Assign(agent, tk.ID, &f.agent)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, assigned.Status)
	assert.Equal(t, f.agent, *assigned.AssigneeID)

	urgent, err := f.svc.SetPriority(agent, tk.ID, PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, openedAt.Add(4*time.Hour), *urgent.ResolutionDueAt)

	f.now = openedAt.Add(2 * time.Hour)
	resolved, err := f.svc.Transition(agent, tk.ID, StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, f.now, *resolved.ResolvedAt)

	_, err = f.svc.Transition(agent, tk.ID, StatusWaitingOnUser)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	reopened, err := f.svc.Reopen(f.as(f.student, f.branch), tk.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, reopened.Status)

	thread, err := f.svc.Messages(agent, tk.ID, true)
	require.NoError(t, err)
	kinds := make([]MessageKind, 0, len(thread))
	for _, m := range thread {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []MessageKind{MessageSystem, MessageSystem, MessageSystem, MessageSystem}, kinds)

	public, err := f.svc.Messages(f.as(f.student, f.branch), tk.ID, false)
	require.NoError(t, err)
	assert.Len(t, public, 2, "assignment and priority lines stay internal")
}

func TestService_ListMineAndOverdue(t *testing.T) {
	f := newFixture(t)
	urgent := f.open(t, PriorityUrgent)
	f.open(t, PriorityLow)
	_, err := f.svc.Open(f.as(id.New(), f.branch), OpenInput{Subject: "Someone else"})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(f.as(f.student, f.branch), domain.DefaultListFilter())
	require.NoError(t, err)
	assert.EqualValues(t, 2, mine.TotalCount)

	f.now = openedAt.Add(time.Hour)
	overdue, err := f.svc.Overdue(f.as(f.agent, f.branch), 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, urgent.ID, overdue[0].ID)

	overdue, err = f.svc.Overdue(f.as(f.agent, id.New()), 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}
