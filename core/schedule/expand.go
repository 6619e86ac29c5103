package schedule

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrInvalidDateRange = errors.New("session start date is after its end date")

// Expand lists the dates on which a session meets, in ascending order.
//
// Every requested weekday is walked from its first date on or after the start date in 7 day steps
// until the end date. Cancelled sessions and sessions without known weekdays have no occurrences.
// When month is given, sessions that do not overlap it are skipped and only the month's dates are kept.
func Expand(s Session, month *Month) ([]Occurrence, error) {
	if s.Cancel {
		return nil, nil
	}
	if s.EndDate.Before(s.StartDate) {
		return nil, errors.Wrapf(ErrInvalidDateRange, "session %s", s.ID)
	}

	from, to := s.StartDate, s.EndDate
	if month != nil {
		if !month.Overlaps(from, to) {
			return nil, nil
		}
		if first := month.First(); from.Before(first) {
			from = first
		}
		if last := month.Last(); to.After(last) {
			to = last
		}
	}

	startTime, endTime := s.StartTime.String(), s.EndTime.String()
	var occs []Occurrence
	for _, wd := range ParseDays(s.DaysOfWeek) {
		offset := (int(wd) - int(from.Weekday()) + 7) % 7
		for d := from.AddDays(offset); !d.After(to); d = d.AddDays(7) {
			occs = append(occs, Occurrence{
				SessionID: s.ID,
				TeamID:    s.TeamID,
				TeamName:  s.TeamName,
				Date:      d,
				Weekday:   wd.String(),
				StartTime: startTime,
				EndTime:   endTime,
			})
		}
	}
	SortOccurrences(occs)
	return occs, nil
}

// ExpandAll expands and merges many sessions. A malformed session fails the whole expansion.
func ExpandAll(sessions []Session, month *Month) ([]Occurrence, error) {
	var all []Occurrence
	for _, s := range sessions {
		occs, err := Expand(s, month)
		if err != nil {
			return nil, err
		}
		all = append(all, occs...)
	}
	SortOccurrences(all)
	return all, nil
}

// SortOccurrences orders occurrences by date, then start time, then session.
func SortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return normalizeTime(a.StartTime) < normalizeTime(b.StartTime)
		}
		return a.SessionID < b.SessionID
	})
}
