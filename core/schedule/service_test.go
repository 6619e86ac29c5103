package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhouse/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fakeRepo struct {
	mu         sync.Mutex
	sessions   map[string]Session
	parentTeam map[string][]string
	contacts   map[string][]Contact
	teamErr    map[string]error
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:   make(map[string]Session),
		parentTeam: make(map[string][]string),
		contacts:   make(map[string][]Contact),
		teamErr:    make(map[string]error),
	}
}

func (r *fakeRepo) CreateSession(_ context.Context, s Session) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeRepo) GetSession(_ context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) CancelSession(_ context.Context, id string) (Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false, ErrNotFound
	}
	if s.Cancel {
		return s, false, nil
	}
	s.Cancel = true
	r.sessions[id] = s
	return s, true, nil
}

func (r *fakeRepo) QuerySessionsByTeam(_ context.Context, teamID string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.teamErr[teamID]; err != nil {
		return nil, err
	}
	var out []Session
	for _, s := range r.sessions {
		if s.TeamID == teamID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) QueryParentTeamIDs(_ context.Context, parentID string) ([]string, error) {
	return r.parentTeam[parentID], nil
}

func (r *fakeRepo) QueryTeamContacts(_ context.Context, teamID string) ([]Contact, error) {
	return r.contacts[teamID], nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
	fail map[string]bool // by recipient address
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = m.Send(context.Background(), msg)
	}
}

func (m *fakeMailer) Send(_ context.Context, msg *core.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.To[0].Address] {
		return errors.New("smtp: mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

const (
	sessionA = "6f1c1f52-7a53-4bb4-9d07-2a1f0e4f6b01"
	sessionB = "6f1c1f52-7a53-4bb4-9d07-2a1f0e4f6b02"
	sessionC = "6f1c1f52-7a53-4bb4-9d07-2a1f0e4f6b03"
)

func newTestService(repo *fakeRepo, mailer *fakeMailer) *Service {
	return NewService(repo, mailer, nopLogger{}, &core.Config{Server: core.ServerConfig{CalendarConcurrency: 2}})
}

func TestService_ParentCalendar(t *testing.T) {
	repo := newFakeRepo()
	repo.sessions[sessionA] = Session{ID: sessionA, TeamID: "tigers", StartDate: NewDate(2025, 9, 1), EndDate: NewDate(2025, 9, 14), StartTime: NewTimeOfDay(17, 0, 0), DaysOfWeek: "Monday"}
	repo.sessions[sessionB] = Session{ID: sessionB, TeamID: "lions", StartDate: NewDate(2025, 9, 1), EndDate: NewDate(2025, 9, 14), StartTime: NewTimeOfDay(16, 0, 0), DaysOfWeek: "Monday,Thursday"}
	repo.sessions[sessionC] = Session{ID: sessionC, TeamID: "bears", StartDate: NewDate(2025, 9, 1), EndDate: NewDate(2025, 9, 14), DaysOfWeek: "Friday"}
	repo.parentTeam["parent-1"] = []string{"tigers", "lions"}
	svc := newTestService(repo, &fakeMailer{})

	t.Run("merges teams in date order", func(t *testing.T) {
		occs, err := svc.ParentCalendar(context.Background(), "parent-1", nil)
		require.NoError(t, err)

		var got []string
		for _, o := range occs {
			got = append(got, o.Date.String()+" "+o.TeamID)
		}
		assert.Equal(t, []string{
			"2025-09-01 lions", "2025-09-01 tigers",
			"2025-09-04 lions",
			"2025-09-08 lions", "2025-09-08 tigers",
			"2025-09-11 lions",
		}, got)
	})

	t.Run("no teams", func(t *testing.T) {
		occs, err := svc.ParentCalendar(context.Background(), "parent-2", nil)
		require.NoError(t, err)
		assert.NotNil(t, occs)
		assert.Empty(t, occs)
	})

	t.Run("month without sessions", func(t *testing.T) {
		occs, err := svc.ParentCalendar(context.Background(), "parent-1", &Month{Year: 2025, Month: time.October})
		require.NoError(t, err)
		assert.Empty(t, occs)
	})

	t.Run("team lookup failure", func(t *testing.T) {
		repo.teamErr["lions"] = errors.New("connection reset")
		defer delete(repo.teamErr, "lions")

		_, err := svc.ParentCalendar(context.Background(), "parent-1", nil)
		assert.Error(t, err)
	})
}

func TestService_CancelSession(t *testing.T) {
	repo := newFakeRepo()
	repo.sessions[sessionA] = Session{ID: sessionA, TeamID: "tigers", TeamName: "Tigers", StartDate: NewDate(2025, 9, 1), EndDate: NewDate(2025, 9, 30), DaysOfWeek: "Monday"}
	repo.contacts["tigers"] = []Contact{
		{EnrollmentID: "e1", StudentName: "Ava", ParentName: "Jane", ParentEmail: "jane@test.cd"},
		{EnrollmentID: "e2", StudentName: "Leo", ParentName: "Omar", ParentEmail: "omar@test.cd"},
		{EnrollmentID: "e3", StudentName: "Mia", ParentName: "Kim", ParentEmail: ""},
	}
	mailer := &fakeMailer{fail: map[string]bool{"omar@test.cd": true}}
	svc := newTestService(repo, mailer)

	s, summary, err := svc.CancelSession(context.Background(), sessionA)
	require.NoError(t, err)
	assert.True(t, s.Cancel)
	assert.Equal(t, core.BatchSummary{Sent: 1, Failed: 1, Skipped: 1}, summary)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "session_cancelled", mailer.sent[0].TemplateName)
	assert.Equal(t, "jane@test.cd", mailer.sent[0].To[0].Address)

	occs, err := svc.Occurrences(context.Background(), sessionA, nil)
	require.NoError(t, err)
	assert.Empty(t, occs)

	// a second cancellation notifies nobody
	_, summary, err = svc.CancelSession(context.Background(), sessionA)
	require.NoError(t, err)
	assert.Zero(t, summary.Total())
	assert.Len(t, mailer.sent, 1)

	_, _, err = svc.CancelSession(context.Background(), "not-a-uuid")
	assert.True(t, core.IsNotFound(err))
}

func TestService_CancelSession_concurrent(t *testing.T) {
	repo := newFakeRepo()
	repo.sessions[sessionA] = Session{ID: sessionA, TeamID: "tigers", TeamName: "Tigers", StartDate: NewDate(2025, 9, 1), EndDate: NewDate(2025, 9, 30), DaysOfWeek: "Monday"}
	repo.contacts["tigers"] = []Contact{
		{EnrollmentID: "e1", StudentName: "Ava", ParentName: "Jane", ParentEmail: "jane@test.cd"},
		{EnrollmentID: "e2", StudentName: "Leo", ParentName: "Omar", ParentEmail: "omar@test.cd"},
	}
	mailer := &fakeMailer{}
	svc := newTestService(repo, mailer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CancelSession(context.Background(), sessionA)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, mailer.sent, 2, "each parent is notified once")
}

func TestService_CancelSession_unknown(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeMailer{})
	_, _, err := svc.CancelSession(context.Background(), sessionB)
	assert.True(t, core.IsNotFound(err))
}

func TestService_CreateSession(t *testing.T) {
	validate, _ := newValidate()
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeMailer{})

	ns := NewSession{
		TeamID:     sessionB,
		StartDate:  "2025-09-01",
		EndDate:    "2025-09-30",
		StartTime:  "17:30",
		EndTime:    "19:00",
		DaysOfWeek: []string{"wednesday", " Monday", "WEDNESDAY"},
	}
	require.NoError(t, ns.Validate(validate))

	s, err := svc.CreateSession(context.Background(), ns)
	require.NoError(t, err)
	assert.Equal(t, "Wednesday,Monday", s.DaysOfWeek)
	assert.Equal(t, NewDate(2025, 9, 1), s.StartDate)
	assert.Equal(t, NewTimeOfDay(17, 30, 0), s.StartTime)

	got, err := svc.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}
