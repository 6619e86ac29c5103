package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/program"
)

const teamSelect = `
	SELECT t.id, t.school_id, s.name AS school_name, t.coach_id, t.name, t.created_at
	FROM teams t JOIN schools s ON s.id = t.school_id`

type programRepository struct {
	exec core.DBExecutor
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(exec core.DBExecutor) *programRepository {
	return &programRepository{exec: exec}
}

func (repo programRepository) CreateSchool(ctx context.Context, school program.School) (program.School, error) {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO schools (id, name, created_at) VALUES ($1, $2, $3)",
		school.ID, school.Name, school.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return program.School{}, program.ErrSchoolExists
		}
		return program.School{}, errors.Wrap(err, "inserting school")
	}
	return school, nil
}

func (repo programRepository) GetSchool(ctx context.Context, id string) (program.School, error) {
	var school program.School
	err := repo.exec.GetContext(ctx, &school, "SELECT id, name, created_at FROM schools WHERE id = $1", id)
	if err != nil {
		return program.School{}, trapNoRowsErr(err, program.ErrSchoolNotFound, "finding school")
	}
	return school, nil
}

func (repo programRepository) CreateTeam(ctx context.Context, team program.Team) (program.Team, error) {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO teams (id, school_id, coach_id, name, created_at) VALUES ($1, $2, $3, $4, $5)",
		team.ID, team.SchoolID, team.CoachID, team.Name, team.CreatedAt)
	if err != nil {
		return program.Team{}, errors.Wrap(err, "inserting team")
	}
	return team, nil
}

func (repo programRepository) GetTeam(ctx context.Context, id string) (program.Team, error) {
	var team program.Team
	if err := repo.exec.GetContext(ctx, &team, teamSelect+" WHERE t.id = $1", id); err != nil {
		return program.Team{}, trapNoRowsErr(err, program.ErrTeamNotFound, "finding team")
	}
	return team, nil
}

func (repo programRepository) QueryTeams(ctx context.Context, coachID string) ([]program.Team, error) {
	teams := make([]program.Team, 0)
	var err error
	if coachID == "" {
		err = repo.exec.SelectContext(ctx, &teams, teamSelect+" ORDER BY s.name, t.name")
	} else {
		err = repo.exec.SelectContext(ctx, &teams, teamSelect+" WHERE t.coach_id = $1 ORDER BY s.name, t.name", coachID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	return teams, nil
}

func (repo programRepository) CreateStudent(ctx context.Context, student program.Student) (program.Student, error) {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO students (id, parent_id, first_name, last_name, created_at) VALUES ($1, $2, $3, $4, $5)",
		student.ID, student.ParentID, student.FirstName, student.LastName, student.CreatedAt)
	if err != nil {
		return program.Student{}, errors.Wrap(err, "inserting student")
	}
	return student, nil
}

func (repo programRepository) GetStudent(ctx context.Context, id string) (program.Student, error) {
	var student program.Student
	err := repo.exec.GetContext(ctx, &student,
		"SELECT id, parent_id, first_name, last_name, created_at FROM students WHERE id = $1", id)
	if err != nil {
		return program.Student{}, trapNoRowsErr(err, program.ErrStudentNotFound, "finding student")
	}
	return student, nil
}

func (repo programRepository) QueryStudentsByParent(ctx context.Context, parentID string) ([]program.Student, error) {
	students := make([]program.Student, 0)
	err := repo.exec.SelectContext(ctx, &students, `
		SELECT id, parent_id, first_name, last_name, created_at FROM students
		WHERE parent_id = $1 ORDER BY first_name, last_name`, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo programRepository) CreateEnrollment(ctx context.Context, e program.Enrollment) (program.Enrollment, error) {
	_, err := repo.exec.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, team_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.StudentID, e.TeamID, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return program.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo programRepository) SetEnrollmentActive(ctx context.Context, id string, active bool, at time.Time) (program.Enrollment, error) {
	var e program.Enrollment
	err := repo.exec.GetContext(ctx, &e, `
		UPDATE enrollments SET is_active = $1, updated_at = $2 WHERE id = $3
		RETURNING id, student_id, team_id, is_active, created_at, updated_at`,
		active, at, id)
	if err != nil {
		return program.Enrollment{}, trapNoRowsErr(err, program.ErrEnrollmentNotFound, "updating enrollment")
	}
	return e, nil
}
