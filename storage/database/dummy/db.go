package dummydb

import (
	"sync"

	"github.com/trezcool/clubhouse/core/campaign"
	"github.com/trezcool/clubhouse/core/messaging"
	"github.com/trezcool/clubhouse/core/newsletter"
	"github.com/trezcool/clubhouse/core/program"
	"github.com/trezcool/clubhouse/core/reminder"
	"github.com/trezcool/clubhouse/core/schedule"
	"github.com/trezcool/clubhouse/core/user"
)

type (
	// DB is an in-memory database. Every repository built on the same DB sees the same data.
	DB struct {
		sync.RWMutex

		users       map[string]*user.User
		schools     map[string]program.School
		teams       map[string]program.Team
		students    map[string]program.Student
		enrollments map[string]program.Enrollment
		sessions    map[string]schedule.Session
		reminders   map[reminderKey]reminder.Record
		messages    []messaging.Message
		reads       map[readKey]bool
		subscribers map[string]newsletter.Subscriber
		sends       map[sendKey]campaign.Send
	}

	reminderKey struct {
		sessionID, enrollmentID string
		typ                     reminder.Type
	}

	readKey struct{ messageID, parentID string }

	sendKey struct{ campaign, email string }
)

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		schools:     make(map[string]program.School),
		teams:       make(map[string]program.Team),
		students:    make(map[string]program.Student),
		enrollments: make(map[string]program.Enrollment),
		sessions:    make(map[string]schedule.Session),
		reminders:   make(map[reminderKey]reminder.Record),
		reads:       make(map[readKey]bool),
		subscribers: make(map[string]newsletter.Subscriber),
		sends:       make(map[sendKey]campaign.Send),
	}
}

// activeEnrollments returns the active enrollments of a team. Callers hold the lock.
func (db *DB) activeEnrollments(teamID string) []program.Enrollment {
	var out []program.Enrollment
	for _, e := range db.enrollments {
		if e.TeamID == teamID && e.IsActive {
			out = append(out, e)
		}
	}
	return out
}
