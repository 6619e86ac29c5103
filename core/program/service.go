package program

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

var (
	// errors
	ErrSchoolNotFound     = core.NewNotFoundError(errors.New("school not found"))
	ErrTeamNotFound       = core.NewNotFoundError(errors.New("team not found"))
	ErrStudentNotFound    = core.NewNotFoundError(errors.New("student not found"))
	ErrEnrollmentNotFound = core.NewNotFoundError(errors.New("enrollment not found"))
	ErrSchoolExists       = errors.New("a school with this name already exists")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, school School) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		CreateTeam(ctx context.Context, team Team) (Team, error)
		GetTeam(ctx context.Context, id string) (Team, error)
		// QueryTeams returns every team when coachID is empty.
		QueryTeams(ctx context.Context, coachID string) ([]Team, error)
		CreateStudent(ctx context.Context, student Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudentsByParent(ctx context.Context, parentID string) ([]Student, error)
		CreateEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error)
		SetEnrollmentActive(ctx context.Context, id string, active bool, at time.Time) (Enrollment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	school, err := svc.repo.CreateSchool(ctx, School{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Cause(err) == ErrSchoolExists {
		return School{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return school, err
}

func (svc *Service) CreateTeam(ctx context.Context, nt NewTeam) (Team, error) {
	school, err := svc.repo.GetSchool(ctx, nt.SchoolID)
	if err != nil {
		if err == ErrSchoolNotFound {
			return Team{}, core.NewValidationError(err, core.FieldError{Field: "school_id", Error: err.Error()})
		}
		return Team{}, errors.Wrap(err, "getting school")
	}
	return svc.repo.CreateTeam(ctx, Team{
		ID:         uuid.NewString(),
		SchoolID:   school.ID,
		SchoolName: school.Name,
		CoachID:    nt.CoachID,
		Name:       nt.Name,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *Service) GetTeam(ctx context.Context, id string) (Team, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Team{}, ErrTeamNotFound
	}
	return svc.repo.GetTeam(ctx, id)
}

func (svc *Service) QueryTeams(ctx context.Context, coachID string) ([]Team, error) {
	return svc.repo.QueryTeams(ctx, coachID)
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	return svc.repo.CreateStudent(ctx, Student{
		ID:        uuid.NewString(),
		ParentID:  ns.ParentID,
		FirstName: ns.FirstName,
		LastName:  ns.LastName,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) QueryStudents(ctx context.Context, parentID string) ([]Student, error) {
	return svc.repo.QueryStudentsByParent(ctx, parentID)
}

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetStudent(ctx, ne.StudentID); err != nil {
		if err == ErrStudentNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "getting student")
	}
	if _, err := svc.repo.GetTeam(ctx, ne.TeamID); err != nil {
		if err == ErrTeamNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "team_id", Error: err.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "getting team")
	}

	now := time.Now().UTC()
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        uuid.NewString(),
		StudentID: ne.StudentID,
		TeamID:    ne.TeamID,
		IsActive:  ne.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// SetEnrollmentActive flips the enrollment status, e.g. once the registration payment is confirmed.
func (svc *Service) SetEnrollmentActive(ctx context.Context, id string, active bool) (Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	return svc.repo.SetEnrollmentActive(ctx, id, active, time.Now().UTC())
}
