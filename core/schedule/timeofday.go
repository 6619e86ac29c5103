package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var timeOfDayRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// TimeOfDay is an optional wall-clock time stored in a Postgres TIME column.
// The zero value is "no time" and maps to NULL.
type TimeOfDay struct {
	Hour, Minute, Second int
	Valid                bool
}

func NewTimeOfDay(h, m, sec int) TimeOfDay {
	return TimeOfDay{Hour: h, Minute: m, Second: sec, Valid: true}
}

// TimeOfDayFrom keeps the clock of t and drops its date and zone.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". An empty string is no time.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeOfDay{}, nil
	}
	match := timeOfDayRegex.FindStringSubmatch(s)
	if match == nil {
		return TimeOfDay{}, errors.Errorf("invalid time of day %q", s)
	}
	h, _ := strconv.Atoi(match[1])
	m, _ := strconv.Atoi(match[2])
	var sec int
	if match[3] != "" {
		sec, _ = strconv.Atoi(match[3])
	}
	if h > 23 || m > 59 || sec > 59 {
		return TimeOfDay{}, errors.Errorf("invalid time of day %q", s)
	}
	return NewTimeOfDay(h, m, sec), nil
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is earlier than u. No time sorts first.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	if t.Valid != u.Valid {
		return !t.Valid
	}
	return t.seconds() < u.seconds()
}

// On returns the instant of t on day d in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, t.Second, 0, loc)
}

// String renders "HH:MM", or "HH:MM:SS" when seconds are set, and "" for no time.
func (t TimeOfDay) String() string {
	if !t.Valid {
		return ""
	}
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Scan accepts what lib/pq returns for TIME (time.Time) as well as text.
func (t *TimeOfDay) Scan(v interface{}) error {
	var err error
	switch x := v.(type) {
	case nil:
		*t = TimeOfDay{}
	case time.Time:
		*t = TimeOfDayFrom(x)
	case []byte:
		*t, err = ParseTimeOfDay(string(x))
	case string:
		*t, err = ParseTimeOfDay(x)
	default:
		err = errors.Errorf("scanning time of day: unsupported type %T", v)
	}
	return err
}

func (t TimeOfDay) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(*s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
