package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/clubhouse/core/program"
)

type programRepository struct {
	db *DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) CreateSchool(_ context.Context, school program.School) (program.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.schools {
		if s.Name == school.Name {
			return program.School{}, program.ErrSchoolExists
		}
	}
	repo.db.schools[school.ID] = school
	return school, nil
}

func (repo *programRepository) GetSchool(_ context.Context, id string) (program.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.schools[id]; ok {
		return s, nil
	}
	return program.School{}, program.ErrSchoolNotFound
}

func (repo *programRepository) CreateTeam(_ context.Context, team program.Team) (program.Team, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	school, ok := repo.db.schools[team.SchoolID]
	if !ok {
		return program.Team{}, program.ErrSchoolNotFound
	}
	team.SchoolName = school.Name
	repo.db.teams[team.ID] = team
	return team, nil
}

func (repo *programRepository) GetTeam(_ context.Context, id string) (program.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.teams[id]; ok {
		return t, nil
	}
	return program.Team{}, program.ErrTeamNotFound
}

func (repo *programRepository) QueryTeams(_ context.Context, coachID string) ([]program.Team, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teams := make([]program.Team, 0)
	for _, t := range repo.db.teams {
		if coachID == "" || t.CoachID == coachID {
			teams = append(teams, t)
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].SchoolName != teams[j].SchoolName {
			return teams[i].SchoolName < teams[j].SchoolName
		}
		return teams[i].Name < teams[j].Name
	})
	return teams, nil
}

func (repo *programRepository) CreateStudent(_ context.Context, student program.Student) (program.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.students[student.ID] = student
	return student, nil
}

func (repo *programRepository) GetStudent(_ context.Context, id string) (program.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return program.Student{}, program.ErrStudentNotFound
}

func (repo *programRepository) QueryStudentsByParent(_ context.Context, parentID string) ([]program.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]program.Student, 0)
	for _, s := range repo.db.students {
		if s.ParentID == parentID {
			students = append(students, s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].FullName() < students[j].FullName() })
	return students, nil
}

func (repo *programRepository) CreateEnrollment(_ context.Context, e program.Enrollment) (program.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.enrollments[e.ID] = e
	return e, nil
}

func (repo *programRepository) SetEnrollmentActive(_ context.Context, id string, active bool, at time.Time) (program.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	e, ok := repo.db.enrollments[id]
	if !ok {
		return program.Enrollment{}, program.ErrEnrollmentNotFound
	}
	e.IsActive = active
	e.UpdatedAt = at
	repo.db.enrollments[id] = e
	return e, nil
}
