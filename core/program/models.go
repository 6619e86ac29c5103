package program

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/clubhouse/core"
)

type School struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Team struct {
	ID         string    `json:"id" db:"id"`
	SchoolID   string    `json:"school_id" db:"school_id"`
	SchoolName string    `json:"school_name" db:"school_name"`
	CoachID    string    `json:"coach_id" db:"coach_id"`
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Student struct {
	ID        string    `json:"id" db:"id"`
	ParentID  string    `json:"parent_id" db:"parent_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (s Student) FullName() string {
	return core.CleanString(s.FirstName + " " + s.LastName)
}

// Enrollment links a Student to a Team. It becomes active once registration is complete and paid.
type Enrollment struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	TeamID    string    `json:"team_id" db:"team_id"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type NewSchool struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type NewTeam struct {
	SchoolID string `json:"school_id" validate:"required,uuid"`
	CoachID  string `json:"coach_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required,max=200"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}

type NewStudent struct {
	ParentID  string `json:"parent_id" validate:"required,uuid"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	return validate.Struct(ns)
}

type NewEnrollment struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	TeamID    string `json:"team_id" validate:"required,uuid"`
	IsActive  bool   `json:"is_active"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}
