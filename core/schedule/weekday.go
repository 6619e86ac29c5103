package schedule

import (
	"strings"
	"time"

	"github.com/trezcool/clubhouse/core"
)

// weekdayIndex maps lower-cased English weekday names to time.Weekday (Sunday=0 ... Saturday=6).
var weekdayIndex = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(name string) (time.Weekday, bool) {
	wd, ok := weekdayIndex[core.CleanString(name, true /* lower */)]
	return wd, ok
}

// ParseDays parses a comma separated list of weekday names. Unknown names are skipped and
// repeated days are kept once, in first-seen order.
func ParseDays(list string) []time.Weekday {
	var seen [7]bool
	days := make([]time.Weekday, 0, 7)
	for _, name := range core.SplitList(list) {
		wd, ok := ParseWeekday(name)
		if !ok || seen[wd] {
			continue
		}
		seen[wd] = true
		days = append(days, wd)
	}
	return days
}

// UnknownDays returns the names in list that are not weekdays.
func UnknownDays(list string) []string {
	var unknown []string
	for _, name := range core.SplitList(list) {
		if _, ok := ParseWeekday(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// FormatDays joins days using their canonical names.
func FormatDays(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, wd := range days {
		names = append(names, wd.String())
	}
	return strings.Join(names, ",")
}
