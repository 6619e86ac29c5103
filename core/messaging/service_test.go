package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/services/events"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type receipt struct{ messageID, parentID string }

// fakeRepo computes unread state the way the SQL repository does: coach messages without a receipt.
type fakeRepo struct {
	mu       sync.Mutex
	coaches  map[string]string          // team -> coach
	parents  map[string]map[string]bool // team -> parents
	messages []Message
	receipts map[receipt]time.Time
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		coaches:  make(map[string]string),
		parents:  make(map[string]map[string]bool),
		receipts: make(map[receipt]time.Time),
	}
}

func (r *fakeRepo) GetTeamCoachID(_ context.Context, teamID string) (string, error) {
	coach, ok := r.coaches[teamID]
	if !ok {
		return "", ErrTeamNotFound
	}
	return coach, nil
}

func (r *fakeRepo) HasStudentOnTeam(_ context.Context, teamID, parentID string) (bool, error) {
	return r.parents[teamID][parentID], nil
}

func (r *fakeRepo) CreateMessage(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *fakeRepo) unread(m Message, parentID string) bool {
	_, read := r.receipts[receipt{m.ID, parentID}]
	return m.SenderRole == SenderCoach && m.ParentID == parentID && !read
}

func (r *fakeRepo) QueryConversation(_ context.Context, teamID, coachID, parentID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.TeamID == teamID && m.CoachID == coachID && m.ParentID == parentID {
			_, m.Read = r.receipts[receipt{m.ID, parentID}]
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) QueryUnreadCounts(_ context.Context, parentID string) ([]UnreadCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[[2]string]int)
	for _, m := range r.messages {
		if r.unread(m, parentID) {
			counts[[2]string{m.TeamID, m.CoachID}]++
		}
	}
	var out []UnreadCount
	for k, n := range counts {
		out = append(out, UnreadCount{TeamID: k[0], CoachID: k[1], Count: n})
	}
	return out, nil
}

func (r *fakeRepo) CountUnread(_ context.Context, teamID, coachID, parentID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, m := range r.messages {
		if m.TeamID == teamID && m.CoachID == coachID && r.unread(m, parentID) {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) MarkAsRead(_ context.Context, teamID, coachID, parentID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, m := range r.messages {
		if m.TeamID == teamID && m.CoachID == coachID && r.unread(m, parentID) {
			r.receipts[receipt{m.ID, parentID}] = at
			n++
		}
	}
	return n, nil
}

const (
	team1   = "0a5d2f0e-3b8e-4c8f-9a51-7d4a1c9f0001"
	team2   = "0a5d2f0e-3b8e-4c8f-9a51-7d4a1c9f0002"
	coach1  = "1b6e3f1f-4c9f-4d90-8b62-8e5b2d0a0001"
	coach2  = "1b6e3f1f-4c9f-4d90-8b62-8e5b2d0a0002"
	parent1 = "2c7f4020-5da0-4ea1-9c73-9f6c3e1b0001"
	parent2 = "2c7f4020-5da0-4ea1-9c73-9f6c3e1b0002"
)

func newTestService() (*fakeRepo, *events.MemoryBus, *Service) {
	repo := newFakeRepo()
	repo.coaches[team1] = coach1
	repo.coaches[team2] = coach2
	for _, team := range []string{team1, team2} {
		repo.parents[team] = map[string]bool{parent1: true, parent2: true}
	}
	bus := events.NewMemoryBus()
	return repo, bus, NewService(repo, bus, nopLogger{})
}

func send(t *testing.T, svc *Service, team, coach, parent, role string) Message {
	t.Helper()
	m, err := svc.Send(context.Background(), NewMessage{TeamID: team, CoachID: coach, ParentID: parent, SenderRole: role, Body: "hello"})
	require.NoError(t, err)
	return m
}

func TestAggregate(t *testing.T) {
	s := Aggregate([]UnreadCount{
		{TeamID: "b", CoachID: "c", Count: 2},
		{TeamID: "a", CoachID: "c", Count: 0},
		{TeamID: "a", CoachID: "d", Count: 3},
	})
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, []UnreadCount{{TeamID: "a", CoachID: "d", Count: 3}, {TeamID: "b", CoachID: "c", Count: 2}}, s.Conversations)

	empty := Aggregate(nil)
	assert.Zero(t, empty.Total)
	assert.NotNil(t, empty.Conversations)
}

func TestBadge(t *testing.T) {
	s := Summary{Total: 4}
	assert.Equal(t, 4, Badge(s, false))
	assert.Zero(t, Badge(s, true))
	assert.Equal(t, 4, s.Total)
}

func TestService_UnreadSummary(t *testing.T) {
	_, _, svc := newTestService()
	send(t, svc, team1, coach1, parent1, SenderCoach)
	send(t, svc, team1, coach1, parent1, SenderCoach)
	send(t, svc, team1, coach1, parent1, SenderParent)
	send(t, svc, team2, coach2, parent1, SenderCoach)
	send(t, svc, team2, coach2, parent2, SenderCoach)

	s, err := svc.UnreadSummary(context.Background(), parent1)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, []UnreadCount{
		{TeamID: team1, CoachID: coach1, Count: 2},
		{TeamID: team2, CoachID: coach2, Count: 1},
	}, s.Conversations)

	n, err := svc.UnreadCount(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_MarkAsRead(t *testing.T) {
	_, bus, svc := newTestService()
	send(t, svc, team1, coach1, parent1, SenderCoach)
	send(t, svc, team1, coach1, parent1, SenderCoach)
	send(t, svc, team2, coach2, parent1, SenderCoach)

	var receipts []Event
	_, err := bus.Subscribe(Subject(EventReceiptCreated, parent1), func(data []byte) {
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		receipts = append(receipts, evt)
	})
	require.NoError(t, err)

	n, err := svc.MarkAsRead(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, receipts, 1)
	assert.Equal(t, EventReceiptCreated, receipts[0].Type)
	assert.Equal(t, team1, receipts[0].TeamID)

	count, err := svc.UnreadCount(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	assert.Zero(t, count)

	s, err := svc.UnreadSummary(context.Background(), parent1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Total)

	// idempotent
	n, err = svc.MarkAsRead(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, receipts, 1)

	msgs, err := svc.Conversation(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Read)
}

func TestService_Send(t *testing.T) {
	_, bus, svc := newTestService()

	var created []Event
	_, err := bus.Subscribe(Subject(EventMessageCreated, "*"), func(data []byte) {
		var evt Event
		_ = json.Unmarshal(data, &evt)
		created = append(created, evt)
	})
	require.NoError(t, err)

	m := send(t, svc, team1, coach1, parent1, SenderCoach)
	send(t, svc, team1, coach1, parent1, SenderParent)
	require.Len(t, created, 1)
	assert.Equal(t, m.ID, created[0].MessageID)
	assert.Equal(t, parent1, created[0].ParentID)

	_, err = svc.Send(context.Background(), NewMessage{TeamID: team1, CoachID: coach2, ParentID: parent1, SenderRole: SenderCoach, Body: "hi"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coach_id", verr.Fields[0].Field)

	_, err = svc.Send(context.Background(), NewMessage{TeamID: parent1, CoachID: coach1, ParentID: parent1, SenderRole: SenderCoach, Body: "hi"})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Send_teamMembership(t *testing.T) {
	repo, _, svc := newTestService()
	delete(repo.parents[team2], parent1)
	outsider := "2c7f4020-5da0-4ea1-9c73-9f6c3e1b0009"

	tests := []struct {
		name      string
		nm        NewMessage
		wantField string
	}{
		{name: "coach writing to a parent of another team",
			nm:        NewMessage{TeamID: team1, CoachID: coach1, ParentID: outsider, SenderRole: SenderCoach, Body: "hi"},
			wantField: "parent_id"},
		{name: "parent writing to a team without their student",
			nm:        NewMessage{TeamID: team2, CoachID: coach2, ParentID: parent1, SenderRole: SenderParent, Body: "hi"},
			wantField: "team_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), tc.nm)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ErrNotTeamParent, verr.Err)
			assert.Equal(t, tc.wantField, verr.Fields[0].Field)
		})
	}
	assert.Empty(t, repo.messages)
}

func TestService_Watch(t *testing.T) {
	_, bus, svc := newTestService()
	send(t, svc, team1, coach1, parent1, SenderCoach)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Summary, 10)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, parent1, func(s Summary) { updates <- s })
	}()

	next := func() Summary {
		select {
		case s := <-updates:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no summary received")
			return Summary{}
		}
	}

	assert.Equal(t, 1, next().Total)
	require.Eventually(t, func() bool { return bus.Subscribers() == 2 }, time.Second, 10*time.Millisecond)

	send(t, svc, team2, coach2, parent1, SenderCoach)
	assert.Equal(t, 2, next().Total)

	_, err := svc.MarkAsRead(context.Background(), team1, coach1, parent1)
	require.NoError(t, err)
	assert.Equal(t, 1, next().Total)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Zero(t, bus.Subscribers())
}
