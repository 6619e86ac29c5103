package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

var (
	// mockable
	NowFunc = time.Now

	// errors
	ErrTeamNotFound  = core.NewNotFoundError(errors.New("team not found"))
	ErrNotTeamCoach  = errors.New("coach does not train this team")
	ErrNotTeamParent = errors.New("parent has no student on this team")
)

type (
	Repository interface {
		// GetTeamCoachID returns ErrTeamNotFound for unknown teams.
		GetTeamCoachID(ctx context.Context, teamID string) (string, error)
		// HasStudentOnTeam reports whether the parent has a student enrolled on the team, active or not.
		HasStudentOnTeam(ctx context.Context, teamID, parentID string) (bool, error)
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryConversation returns the messages of the conversation, oldest first, flagged with
		// whether the parent has read them.
		QueryConversation(ctx context.Context, teamID, coachID, parentID string) ([]Message, error)
		QueryUnreadCounts(ctx context.Context, parentID string) ([]UnreadCount, error)
		CountUnread(ctx context.Context, teamID, coachID, parentID string) (int, error)
		// MarkAsRead records a receipt for every unread coach message of the conversation and
		// returns how many were recorded. Existing receipts are left untouched.
		MarkAsRead(ctx context.Context, teamID, coachID, parentID string, at time.Time) (int, error)
	}

	Service struct {
		repo   Repository
		bus    core.EventBus
		logger core.Logger
	}
)

func NewService(repo Repository, bus core.EventBus, logger core.Logger) *Service {
	return &Service{repo: repo, bus: bus, logger: logger}
}

// Send stores a message of a team's coach conversation with a parent.
// Both sides must belong to the team: the coach trains it and the parent has a student enrolled on it.
// Coach messages notify the parent's watchers.
func (svc *Service) Send(ctx context.Context, nm NewMessage) (Message, error) {
	coachID, err := svc.repo.GetTeamCoachID(ctx, nm.TeamID)
	if err != nil {
		return Message{}, err
	}
	if coachID != nm.CoachID {
		return Message{}, core.NewValidationError(ErrNotTeamCoach, core.FieldError{
			Field: "coach_id",
			Error: ErrNotTeamCoach.Error(),
		})
	}
	onTeam, err := svc.repo.HasStudentOnTeam(ctx, nm.TeamID, nm.ParentID)
	if err != nil {
		return Message{}, errors.Wrap(err, "checking team membership")
	}
	if !onTeam {
		field := "parent_id"
		if nm.SenderRole == SenderParent {
			field = "team_id"
		}
		return Message{}, core.NewValidationError(ErrNotTeamParent, core.FieldError{
			Field: field,
			Error: ErrNotTeamParent.Error(),
		})
	}

	m, err := svc.repo.CreateMessage(ctx, Message{
		ID:         uuid.NewString(),
		TeamID:     nm.TeamID,
		CoachID:    nm.CoachID,
		ParentID:   nm.ParentID,
		SenderRole: nm.SenderRole,
		Body:       nm.Body,
		CreatedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	if m.SenderRole == SenderCoach {
		svc.publish(ctx, Event{
			Type:      EventMessageCreated,
			ParentID:  m.ParentID,
			TeamID:    m.TeamID,
			CoachID:   m.CoachID,
			MessageID: m.ID,
			At:        m.CreatedAt,
		})
	}
	return m, nil
}

func (svc *Service) Conversation(ctx context.Context, teamID, coachID, parentID string) ([]Message, error) {
	msgs, err := svc.repo.QueryConversation(ctx, teamID, coachID, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	if msgs == nil {
		msgs = make([]Message, 0)
	}
	return msgs, nil
}

// UnreadSummary returns the parent's unread coach messages per conversation, and their total.
func (svc *Service) UnreadSummary(ctx context.Context, parentID string) (Summary, error) {
	rows, err := svc.repo.QueryUnreadCounts(ctx, parentID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying unread counts")
	}
	return Aggregate(rows), nil
}

func (svc *Service) UnreadCount(ctx context.Context, teamID, coachID, parentID string) (int, error) {
	n, err := svc.repo.CountUnread(ctx, teamID, coachID, parentID)
	return n, errors.Wrap(err, "counting unread messages")
}

// MarkAsRead marks every coach message of the conversation read by the parent.
// It is idempotent: a second call records nothing and publishes nothing.
func (svc *Service) MarkAsRead(ctx context.Context, teamID, coachID, parentID string) (int, error) {
	at := NowFunc().UTC()
	n, err := svc.repo.MarkAsRead(ctx, teamID, coachID, parentID, at)
	if err != nil {
		return 0, errors.Wrap(err, "marking messages as read")
	}
	if n > 0 {
		svc.publish(ctx, Event{
			Type:     EventReceiptCreated,
			ParentID: parentID,
			TeamID:   teamID,
			CoachID:  coachID,
			At:       at,
		})
	}
	return n, nil
}

// publish failures are logged only: the stored message or receipt is the source of truth.
func (svc *Service) publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err == nil {
		err = svc.bus.Publish(ctx, Subject(evt.Type, evt.ParentID), data)
	}
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing %s for parent %s: %v", evt.Type, evt.ParentID, err), err)
	}
}

// Watch calls fn with the parent's unread summary, then again each time a message or receipt event
// concerns the parent, until ctx is done. Bursts of events are coalesced into one recomputation.
func (svc *Service) Watch(ctx context.Context, parentID string, fn func(Summary)) error {
	trigger := make(chan struct{}, 1)
	notify := func([]byte) {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	for _, evtType := range []string{EventMessageCreated, EventReceiptCreated} {
		sub, err := svc.bus.Subscribe(Subject(evtType, parentID), notify)
		if err != nil {
			return errors.Wrapf(err, "subscribing to %s", evtType)
		}
		defer func() { _ = sub.Unsubscribe() }()
	}

	summary, err := svc.UnreadSummary(ctx, parentID)
	if err != nil {
		return err
	}
	fn(summary)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			summary, err = svc.UnreadSummary(ctx, parentID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				svc.logger.Error(fmt.Sprintf("messaging.Watch(%s): %v", parentID, err), err)
				continue
			}
			fn(summary)
		}
	}
}
