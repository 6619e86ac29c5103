package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/clubhouse/core/messaging"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *DB) *messagingRepository {
	return &messagingRepository{db: db}
}

// unread reports whether m is a coach message its parent has not read. Callers hold the lock.
func (db *DB) unread(m messaging.Message) bool {
	return m.SenderRole == messaging.SenderCoach && !db.reads[readKey{messageID: m.ID, parentID: m.ParentID}]
}

func (repo *messagingRepository) GetTeamCoachID(_ context.Context, teamID string) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teams[teamID]; ok {
		return t.CoachID, nil
	}
	return "", messaging.ErrTeamNotFound
}

func (repo *messagingRepository) HasStudentOnTeam(_ context.Context, teamID, parentID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.TeamID == teamID && repo.db.students[e.StudentID].ParentID == parentID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *messagingRepository) CreateMessage(_ context.Context, m messaging.Message) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.Read = false
	repo.db.messages = append(repo.db.messages, m)
	return m, nil
}

func (repo *messagingRepository) QueryConversation(_ context.Context, teamID, coachID, parentID string) ([]messaging.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var msgs []messaging.Message
	for _, m := range repo.db.messages {
		if m.TeamID != teamID || m.CoachID != coachID || m.ParentID != parentID {
			continue
		}
		m.Read = repo.db.reads[readKey{messageID: m.ID, parentID: m.ParentID}]
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (repo *messagingRepository) QueryUnreadCounts(_ context.Context, parentID string) ([]messaging.UnreadCount, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	type conv struct{ teamID, coachID string }
	counts := make(map[conv]int)
	for _, m := range repo.db.messages {
		if m.ParentID == parentID && repo.db.unread(m) {
			counts[conv{m.TeamID, m.CoachID}]++
		}
	}

	rows := make([]messaging.UnreadCount, 0, len(counts))
	for c, n := range counts {
		rows = append(rows, messaging.UnreadCount{TeamID: c.teamID, CoachID: c.coachID, Count: n})
	}
	return rows, nil
}

func (repo *messagingRepository) CountUnread(_ context.Context, teamID, coachID, parentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, m := range repo.db.messages {
		if m.TeamID == teamID && m.CoachID == coachID && m.ParentID == parentID && repo.db.unread(m) {
			n++
		}
	}
	return n, nil
}

func (repo *messagingRepository) MarkAsRead(_ context.Context, teamID, coachID, parentID string, _ time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, m := range repo.db.messages {
		if m.TeamID == teamID && m.CoachID == coachID && m.ParentID == parentID && repo.db.unread(m) {
			repo.db.reads[readKey{messageID: m.ID, parentID: m.ParentID}] = true
			n++
		}
	}
	return n, nil
}
