package reminder

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core/schedule"
)

// Tolerance is how far a session's start may be from the target instant and still be reminded.
const Tolerance = 2 * time.Hour

// WindowWidth is the span of a window. Dispatch runs must be at most this far apart.
const WindowWidth = 2 * Tolerance

var ErrUnknownType = errors.New("unknown reminder type")

// Type is the lead time of a reminder. Types are independent of each other: a sent 7d reminder never
// suppresses the 1d one.
type Type string

const (
	Type30Days Type = "30d"
	Type7Days  Type = "7d"
	Type1Day   Type = "1d"
)

var types = map[Type]int{
	Type30Days: 30,
	Type7Days:  7,
	Type1Day:   1,
}

// Types lists every reminder type, longest lead first.
func Types() []Type {
	return []Type{Type30Days, Type7Days, Type1Day}
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := types[t]; !ok {
		return "", errors.Wrapf(ErrUnknownType, "%q", s)
	}
	return t, nil
}

func (t Type) Days() int { return types[t] }

// Lead is the human form of the lead time, used in emails.
func (t Type) Lead() string {
	switch t {
	case Type1Day:
		return "tomorrow"
	case Type7Days:
		return "next week"
	default:
		return "in 30 days"
	}
}

// Window is the span of start instants a reminder run targets.
type Window struct {
	Target time.Time
	From   time.Time
	To     time.Time
}

// TargetWindow returns now + t days, widened by Tolerance on both sides.
func TargetWindow(now time.Time, t Type) Window {
	target := now.AddDate(0, 0, t.Days())
	return Window{
		Target: target,
		From:   target.Add(-Tolerance),
		To:     target.Add(Tolerance),
	}
}

// Dates returns the civil dates, in loc, covered by the window.
func (w Window) Dates(loc *time.Location) (from, to schedule.Date) {
	return schedule.DateOf(w.From.In(loc)), schedule.DateOf(w.To.In(loc))
}

// Matches reports whether the session is due a reminder in this window.
// A session with a time of day matches when it starts within the window; a date-only session matches
// when it starts on the target's date.
func (w Window) Matches(s schedule.Session, loc *time.Location) bool {
	if at, ok := s.StartsAt(loc); ok {
		return !at.Before(w.From) && !at.After(w.To)
	}
	return s.StartDate.Equal(schedule.DateOf(w.Target.In(loc)))
}

// Record marks a reminder of one type as handled for one enrollment on one session.
type Record struct {
	SessionID    string    `json:"session_id" db:"session_id"`
	EnrollmentID string    `json:"enrollment_id" db:"enrollment_id"`
	Type         Type      `json:"reminder_type" db:"reminder_type"`
	SentAt       time.Time `json:"sent_at" db:"sent_at"`
}

// Recipient is an enrollment to remind, denormalised for the email.
type Recipient struct {
	EnrollmentID string `json:"enrollment_id" db:"enrollment_id"`
	StudentName  string `json:"student_name" db:"student_name"`
	ParentName   string `json:"parent_name" db:"parent_name"`
	ParentEmail  string `json:"parent_email" db:"parent_email"`
	TeamName     string `json:"team_name" db:"team_name"`
	SchoolName   string `json:"school_name" db:"school_name"`
}

// Pending groups the recipients still owed a reminder for one session.
type Pending struct {
	Session    schedule.Session `json:"session"`
	Type       Type             `json:"reminder_type"`
	Recipients []Recipient      `json:"recipients"`
}
