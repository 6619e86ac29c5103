package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

// Session is a recurring practice slot of a team.
type Session struct {
	ID         string    `json:"id" db:"id"`
	TeamID     string    `json:"team_id" db:"team_id"`
	TeamName   string    `json:"team_name" db:"team_name"`
	StartDate  Date      `json:"start_date" db:"start_date"`
	EndDate    Date      `json:"end_date" db:"end_date"`
	StartTime  TimeOfDay `json:"start_time" db:"start_time"`
	EndTime    TimeOfDay `json:"end_time" db:"end_time"`
	DaysOfWeek string    `json:"days_of_week" db:"days_of_week"`
	Cancel     bool      `json:"cancel" db:"cancel"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// StartsAt returns the instant the session's first day starts, in loc.
// ok is false for sessions without a time of day.
func (s Session) StartsAt(loc *time.Location) (at time.Time, ok bool) {
	if !s.StartTime.Valid {
		return time.Time{}, false
	}
	return s.StartTime.On(s.StartDate, loc), true
}

// Occurrence is one concrete calendar date of a Session.
type Occurrence struct {
	SessionID string `json:"session_id"`
	TeamID    string `json:"team_id"`
	TeamName  string `json:"team_name,omitempty"`
	Date      Date   `json:"date"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Contact is a parent to notify about a team's schedule, through one active enrollment.
type Contact struct {
	EnrollmentID string `json:"enrollment_id" db:"enrollment_id"`
	StudentName  string `json:"student_name" db:"student_name"`
	ParentName   string `json:"parent_name" db:"parent_name"`
	ParentEmail  string `json:"parent_email" db:"parent_email"`
}

type NewSession struct {
	TeamID     string   `json:"team_id" validate:"required,uuid"`
	StartDate  string   `json:"start_date" validate:"required,date"`
	EndDate    string   `json:"end_date" validate:"required,date"`
	StartTime  string   `json:"start_time" validate:"omitempty,timeofday"`
	EndTime    string   `json:"end_time" validate:"omitempty,timeofday"`
	DaysOfWeek []string `json:"days_of_week" validate:"required,min=1,dive,required"`

	startDate Date
	endDate   Date
	startTime TimeOfDay
	endTime   TimeOfDay
	days      []time.Weekday
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.StartDate = core.CleanString(ns.StartDate)
	ns.EndDate = core.CleanString(ns.EndDate)
	ns.StartTime = core.CleanString(ns.StartTime)
	ns.EndTime = core.CleanString(ns.EndTime)
	for i, d := range ns.DaysOfWeek {
		ns.DaysOfWeek[i] = core.CleanString(d)
	}

	if err := validate.Struct(ns); err != nil {
		return err
	}

	var err error
	if ns.startDate, err = ParseDate(ns.StartDate); err != nil {
		return errors.Wrap(err, "parsing start date")
	}
	if ns.endDate, err = ParseDate(ns.EndDate); err != nil {
		return errors.Wrap(err, "parsing end date")
	}
	if ns.endDate.Before(ns.startDate) {
		return core.NewValidationError(ErrInvalidDateRange, core.FieldError{
			Field: "end_date",
			Error: "end date must be on or after start date",
		})
	}
	if ns.startTime, err = ParseTimeOfDay(ns.StartTime); err != nil {
		return errors.Wrap(err, "parsing start time")
	}
	if ns.endTime, err = ParseTimeOfDay(ns.EndTime); err != nil {
		return errors.Wrap(err, "parsing end time")
	}
	if ns.startTime.Valid && ns.endTime.Valid && !ns.startTime.Before(ns.endTime) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "end_time",
			Error: "end time must be after start time",
		})
	}

	list := strings.Join(ns.DaysOfWeek, ",")
	if unknown := UnknownDays(list); len(unknown) > 0 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "days_of_week",
			Error: fmt.Sprintf("unknown weekday: %s", strings.Join(unknown, ", ")),
		})
	}
	ns.days = ParseDays(list)
	return nil
}

// normalizeTime pads "HH:MM" to "HH:MM:SS" so that times compare as strings.
func normalizeTime(s string) string {
	if len(s) == len("15:04") {
		return s + ":00"
	}
	return s
}
