package schedule

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func dates(occs []Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Date.String())
	}
	return out
}

func TestExpand(t *testing.T) {
	sept := Month{Year: 2025, Month: time.September}
	oct := Month{Year: 2025, Month: time.October}

	base := Session{
		ID:         "s1",
		TeamID:     "t1",
		StartDate:  mustDate(t, "2025-09-01"),
		EndDate:    mustDate(t, "2025-09-30"),
		StartTime:  NewTimeOfDay(17, 30, 0),
		EndTime:    NewTimeOfDay(19, 0, 0),
		DaysOfWeek: "Monday, Wednesday",
	}
	with := func(fn func(s *Session)) Session {
		s := base
		fn(&s)
		return s
	}

	tests := []struct {
		name    string
		session Session
		month   *Month
		want    []string
		wantErr error
	}{
		{
			name:    "mon/wed in september",
			session: base,
			want:    []string{"2025-09-01", "2025-09-03", "2025-09-08", "2025-09-10", "2025-09-15", "2025-09-17", "2025-09-22", "2025-09-24", "2025-09-29"},
		},
		{
			name:    "cancelled",
			session: with(func(s *Session) { s.Cancel = true }),
			want:    []string{},
		},
		{
			name:    "no weekdays",
			session: with(func(s *Session) { s.DaysOfWeek = "" }),
			want:    []string{},
		},
		{
			name:    "unknown weekday skipped",
			session: with(func(s *Session) { s.DaysOfWeek = "Funday,Friday" }),
			want:    []string{"2025-09-05", "2025-09-12", "2025-09-19", "2025-09-26"},
		},
		{
			name:    "case and spacing ignored, duplicates collapsed",
			session: with(func(s *Session) { s.DaysOfWeek = " friday ,FRIDAY,Friday" }),
			want:    []string{"2025-09-05", "2025-09-12", "2025-09-19", "2025-09-26"},
		},
		{
			name: "single day range",
			session: with(func(s *Session) {
				s.StartDate = mustDate(t, "2025-09-03")
				s.EndDate = mustDate(t, "2025-09-03")
			}),
			want: []string{"2025-09-03"},
		},
		{
			name: "inclusive end date",
			session: with(func(s *Session) {
				s.StartDate = mustDate(t, "2025-09-02")
				s.EndDate = mustDate(t, "2025-09-08")
			}),
			want: []string{"2025-09-03", "2025-09-08"},
		},
		{
			name:    "month filter without overlap",
			session: base,
			month:   &oct,
			want:    []string{},
		},
		{
			name:    "month filter on the session month",
			session: base,
			month:   &sept,
			want:    []string{"2025-09-01", "2025-09-03", "2025-09-08", "2025-09-10", "2025-09-15", "2025-09-17", "2025-09-22", "2025-09-24", "2025-09-29"},
		},
		{
			name: "month filter clips multi month session",
			session: with(func(s *Session) {
				s.StartDate = mustDate(t, "2025-08-25")
				s.EndDate = mustDate(t, "2025-10-15")
				s.DaysOfWeek = "Tuesday"
			}),
			month: &sept,
			want:  []string{"2025-09-02", "2025-09-09", "2025-09-16", "2025-09-23", "2025-09-30"},
		},
		{
			name: "start after end",
			session: with(func(s *Session) {
				s.StartDate = mustDate(t, "2025-10-01")
			}),
			wantErr: ErrInvalidDateRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occs, err := Expand(tt.session, tt.month)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(occs))
		})
	}
}

func TestExpand_occurrenceFields(t *testing.T) {
	s := Session{
		ID:         "s1",
		TeamID:     "t1",
		TeamName:   "U10 Tigers",
		StartDate:  NewDate(2025, time.September, 1),
		EndDate:    NewDate(2025, time.September, 3),
		StartTime:  NewTimeOfDay(17, 30, 0),
		EndTime:    NewTimeOfDay(19, 0, 0),
		DaysOfWeek: "wednesday,monday",
	}
	occs, err := Expand(s, nil)
	require.NoError(t, err)
	require.Len(t, occs, 2)

	assert.Equal(t, Occurrence{
		SessionID: "s1", TeamID: "t1", TeamName: "U10 Tigers",
		Date: NewDate(2025, time.September, 1), Weekday: "Monday", StartTime: "17:30", EndTime: "19:00",
	}, occs[0])
	assert.Equal(t, "Wednesday", occs[1].Weekday)
}

// For any well formed session, occurrences stay within the range, fall on requested weekdays,
// are strictly ascending and have no duplicates.
func TestExpand_properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	names := []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Someday"}

	for i := 0; i < 500; i++ {
		start := NewDate(2024, time.January, 1).AddDays(rnd.Intn(730))
		end := start.AddDays(rnd.Intn(120))
		var list []string
		requested := make(map[time.Weekday]bool)
		for n := rnd.Intn(5); n >= 0; n-- {
			name := names[rnd.Intn(len(names))]
			list = append(list, name)
			if wd, ok := ParseWeekday(name); ok {
				requested[wd] = true
			}
		}
		s := Session{ID: "s", StartDate: start, EndDate: end, DaysOfWeek: strings.Join(list, ",")}

		var month *Month
		if rnd.Intn(2) == 0 {
			month = &Month{Year: start.Year(), Month: start.Month()}
		}

		occs, err := Expand(s, month)
		require.NoError(t, err)

		var prev Date
		for j, o := range occs {
			require.False(t, o.Date.Before(start), "occurrence before start date")
			require.False(t, o.Date.After(end), "occurrence after end date")
			require.True(t, requested[o.Date.Weekday()], "unexpected weekday %s", o.Date.Weekday())
			require.Equal(t, o.Date.Weekday().String(), o.Weekday)
			if month != nil {
				require.True(t, month.Contains(o.Date), "occurrence outside month")
			}
			if j > 0 {
				require.True(t, prev.Before(o.Date), "occurrences not strictly ascending")
			}
			prev = o.Date
		}
	}
}

func TestExpandAll(t *testing.T) {
	sessions := []Session{
		{ID: "b", StartDate: NewDate(2025, time.September, 1), EndDate: NewDate(2025, time.September, 10), StartTime: NewTimeOfDay(18, 0, 0), DaysOfWeek: "Monday"},
		{ID: "a", StartDate: NewDate(2025, time.September, 1), EndDate: NewDate(2025, time.September, 10), StartTime: NewTimeOfDay(9, 0, 0), DaysOfWeek: "Monday,Tuesday"},
		{ID: "c", StartDate: NewDate(2025, time.September, 1), EndDate: NewDate(2025, time.September, 10), DaysOfWeek: "Monday", Cancel: true},
	}
	occs, err := ExpandAll(sessions, nil)
	require.NoError(t, err)

	type key struct{ date, session string }
	got := make([]key, 0, len(occs))
	for _, o := range occs {
		got = append(got, key{o.Date.String(), o.SessionID})
	}
	assert.Equal(t, []key{
		{"2025-09-01", "a"}, {"2025-09-01", "b"},
		{"2025-09-02", "a"},
		{"2025-09-08", "a"}, {"2025-09-08", "b"},
		{"2025-09-09", "a"},
	}, got)

	_, err = ExpandAll(append(sessions, Session{ID: "bad", StartDate: NewDate(2025, 2, 2), EndDate: NewDate(2025, 2, 1)}), nil)
	assert.Error(t, err)
}

func TestMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", m.First().String())
	assert.Equal(t, "2024-02-29", m.Last().String())
	assert.True(t, m.Overlaps(NewDate(2024, 1, 15), NewDate(2024, 2, 1)))
	assert.True(t, m.Overlaps(NewDate(2024, 2, 29), NewDate(2024, 3, 10)))
	assert.False(t, m.Overlaps(NewDate(2024, 3, 1), NewDate(2024, 3, 10)))
	assert.False(t, m.Overlaps(NewDate(2023, 12, 1), NewDate(2024, 1, 31)))

	_, err = ParseMonth("2024-13")
	assert.Error(t, err)
}

func TestSession_StartsAt(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s := Session{StartDate: NewDate(2025, time.September, 17), StartTime: NewTimeOfDay(17, 30, 0)}
	at, ok := s.StartsAt(loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.September, 17, 17, 30, 0, 0, loc), at)

	_, ok = Session{StartDate: NewDate(2025, time.September, 17)}.StartsAt(loc)
	assert.False(t, ok)

	// lib/pq hands TIME columns over as time.Time on year 0
	var tod TimeOfDay
	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 17, 30, 0, 0, time.UTC)))
	at, ok = Session{StartDate: NewDate(2025, time.September, 17), StartTime: tod}.StartsAt(loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.September, 17, 17, 30, 0, 0, loc), at)
}
