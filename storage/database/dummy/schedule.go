package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/schedule"
)

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{db: db}
}

// session fills the joined columns of a stored session. Callers hold the lock.
func (db *DB) session(s schedule.Session) schedule.Session {
	s.TeamName = db.teams[s.TeamID].Name
	return s
}

func (repo *scheduleRepository) CreateSession(_ context.Context, s schedule.Session) (schedule.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.teams[s.TeamID]; !ok {
		return schedule.Session{}, program.ErrTeamNotFound
	}
	repo.db.sessions[s.ID] = s
	return repo.db.session(s), nil
}

func (repo *scheduleRepository) GetSession(_ context.Context, id string) (schedule.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.sessions[id]; ok {
		return repo.db.session(s), nil
	}
	return schedule.Session{}, schedule.ErrNotFound
}

func (repo *scheduleRepository) CancelSession(_ context.Context, id string) (schedule.Session, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.sessions[id]
	if !ok {
		return schedule.Session{}, false, schedule.ErrNotFound
	}
	if s.Cancel {
		return repo.db.session(s), false, nil
	}
	s.Cancel = true
	repo.db.sessions[id] = s
	return repo.db.session(s), true, nil
}

func (repo *scheduleRepository) QuerySessionsByTeam(_ context.Context, teamID string) ([]schedule.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]schedule.Session, 0)
	for _, s := range repo.db.sessions {
		if s.TeamID == teamID {
			sessions = append(sessions, repo.db.session(s))
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func sortSessions(sessions []schedule.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
}

func (repo *scheduleRepository) QueryParentTeamIDs(_ context.Context, parentID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, e := range repo.db.enrollments {
		if !e.IsActive || repo.db.students[e.StudentID].ParentID != parentID || seen[e.TeamID] {
			continue
		}
		seen[e.TeamID] = true
		ids = append(ids, e.TeamID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *scheduleRepository) QueryTeamContacts(_ context.Context, teamID string) ([]schedule.Contact, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contacts []schedule.Contact
	for _, e := range repo.db.activeEnrollments(teamID) {
		st := repo.db.students[e.StudentID]
		var parentName, parentEmail string
		if parent, ok := repo.db.users[st.ParentID]; ok {
			parentName, parentEmail = parent.Name, parent.Email
		}
		contacts = append(contacts, schedule.Contact{
			EnrollmentID: e.ID,
			StudentName:  st.FullName(),
			ParentName:   parentName,
			ParentEmail:  parentEmail,
		})
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].StudentName < contacts[j].StudentName })
	return contacts, nil
}
