package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
)

type reminderRepository struct {
	db *DB
}

var _ reminder.Repository = (*reminderRepository)(nil) // interface compliance check

func NewReminderRepository(db *DB) *reminderRepository {
	return &reminderRepository{db: db}
}

func (repo *reminderRepository) QueryUpcomingSessions(_ context.Context, from, to schedule.Date) ([]schedule.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sessions []schedule.Session
	for _, s := range repo.db.sessions {
		if s.Cancel || s.StartDate.Before(from) || s.StartDate.After(to) {
			continue
		}
		sessions = append(sessions, repo.db.session(s))
	}
	sortSessions(sessions)
	return sessions, nil
}

func (repo *reminderRepository) QueryRecipients(_ context.Context, teamID string) ([]reminder.Recipient, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	team := repo.db.teams[teamID]
	var recipients []reminder.Recipient
	for _, e := range repo.db.activeEnrollments(teamID) {
		st := repo.db.students[e.StudentID]
		parent, ok := repo.db.users[st.ParentID]
		if !ok {
			continue
		}
		recipients = append(recipients, reminder.Recipient{
			EnrollmentID: e.ID,
			StudentName:  st.FullName(),
			ParentName:   parent.Name,
			ParentEmail:  parent.Email,
			TeamName:     team.Name,
			SchoolName:   repo.db.schools[team.SchoolID].Name,
		})
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].EnrollmentID < recipients[j].EnrollmentID })
	return recipients, nil
}

func (repo *reminderRepository) QuerySentEnrollmentIDs(_ context.Context, sessionID string, t reminder.Type) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ids []string
	for key := range repo.db.reminders {
		if key.sessionID == sessionID && key.typ == t {
			ids = append(ids, key.enrollmentID)
		}
	}
	return ids, nil
}

func (repo *reminderRepository) Reserve(_ context.Context, rec reminder.Record) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := reminderKey{sessionID: rec.SessionID, enrollmentID: rec.EnrollmentID, typ: rec.Type}
	if _, ok := repo.db.reminders[key]; ok {
		return reminder.ErrAlreadySent
	}
	repo.db.reminders[key] = rec
	return nil
}

func (repo *reminderRepository) Release(_ context.Context, rec reminder.Record) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.reminders, reminderKey{sessionID: rec.SessionID, enrollmentID: rec.EnrollmentID, typ: rec.Type})
	return nil
}
