package messaging

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/clubhouse/core"
)

const (
	SenderCoach  = "coach"
	SenderParent = "parent"
)

// Message is exchanged between the coach of a team and a parent.
type Message struct {
	ID         string    `json:"id" db:"id"`
	TeamID     string    `json:"team_id" db:"team_id"`
	CoachID    string    `json:"coach_id" db:"coach_id"`
	ParentID   string    `json:"parent_id" db:"parent_id"`
	SenderRole string    `json:"sender_role" db:"sender_role"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	Read       bool      `json:"read" db:"read"`
}

type NewMessage struct {
	TeamID     string `json:"team_id" validate:"required,uuid"`
	CoachID    string `json:"coach_id" validate:"required,uuid"`
	ParentID   string `json:"parent_id" validate:"required,uuid"`
	SenderRole string `json:"-" validate:"oneof=coach parent"`
	Body       string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// UnreadCount is the number of coach messages a parent has not read on one team/coach conversation.
type UnreadCount struct {
	TeamID  string `json:"team_id" db:"team_id"`
	CoachID string `json:"coach_id" db:"coach_id"`
	Count   int    `json:"count" db:"count"`
}

type Summary struct {
	Conversations []UnreadCount `json:"conversations"`
	Total         int           `json:"total"`
}

// Aggregate drops empty conversations and totals the rest.
func Aggregate(rows []UnreadCount) Summary {
	s := Summary{Conversations: make([]UnreadCount, 0, len(rows))}
	for _, r := range rows {
		if r.Count <= 0 {
			continue
		}
		s.Conversations = append(s.Conversations, r)
		s.Total += r.Count
	}
	sort.Slice(s.Conversations, func(i, j int) bool {
		a, b := s.Conversations[i], s.Conversations[j]
		if a.TeamID != b.TeamID {
			return a.TeamID < b.TeamID
		}
		return a.CoachID < b.CoachID
	})
	return s
}

// Badge is the number shown on the messages badge.
// It is hidden while the parent is looking at the conversation list.
func Badge(s Summary, viewingList bool) int {
	if viewingList {
		return 0
	}
	return s.Total
}

// Event is published on the event bus when a parent's unread state may have changed.
type Event struct {
	Type      string    `json:"event_type"`
	ParentID  string    `json:"parent_id"`
	TeamID    string    `json:"team_id"`
	CoachID   string    `json:"coach_id"`
	MessageID string    `json:"message_id,omitempty"`
	At        time.Time `json:"at"`
}

const (
	EventMessageCreated = "message.created"
	EventReceiptCreated = "receipt.created"
)

// Subject is the event bus subject of an event type for one parent.
func Subject(eventType, parentID string) string {
	return eventType + "." + parentID
}
