package reminder

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/schedule"
)

var (
	// mockable
	NowFunc = time.Now

	// errors
	ErrAlreadySent = errors.New("reminder already sent")
)

type (
	Repository interface {
		// QueryUpcomingSessions returns non cancelled sessions starting between from and to, inclusive.
		QueryUpcomingSessions(ctx context.Context, from, to schedule.Date) ([]schedule.Session, error)
		QueryRecipients(ctx context.Context, teamID string) ([]Recipient, error)
		// QuerySentEnrollmentIDs returns the enrollments already holding a record of type t for the session.
		QuerySentEnrollmentIDs(ctx context.Context, sessionID string, t Type) ([]string, error)
		// Reserve inserts the record and returns ErrAlreadySent when it exists.
		Reserve(ctx context.Context, rec Record) error
		Release(ctx context.Context, rec Record) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
		loc     *time.Location
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		loc:     conf.Location(),
	}
}

// Pending lists, per matching session, the active enrollments that have not received a reminder of type t.
// A session whose lookups fail is logged and left out.
func (svc *Service) Pending(ctx context.Context, t Type) ([]Pending, error) {
	if _, ok := types[t]; !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", t)
	}

	w := TargetWindow(NowFunc().In(svc.loc), t)
	from, to := w.Dates(svc.loc)
	sessions, err := svc.repo.QueryUpcomingSessions(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "querying upcoming sessions")
	}

	pending := make([]Pending, 0)
	for _, s := range sessions {
		if s.Cancel || !w.Matches(s, svc.loc) {
			continue
		}
		recipients, err := svc.pendingRecipients(ctx, s, t)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("reminder.Pending(%s, session %s): %v", t, s.ID, err), err)
			continue
		}
		if len(recipients) > 0 {
			pending = append(pending, Pending{Session: s, Type: t, Recipients: recipients})
		}
	}
	return pending, nil
}

func (svc *Service) pendingRecipients(ctx context.Context, s schedule.Session, t Type) ([]Recipient, error) {
	all, err := svc.repo.QueryRecipients(ctx, s.TeamID)
	if err != nil {
		return nil, errors.Wrap(err, "querying recipients")
	}
	sentIDs, err := svc.repo.QuerySentEnrollmentIDs(ctx, s.ID, t)
	if err != nil {
		return nil, errors.Wrap(err, "querying sent reminders")
	}
	sent := make(map[string]bool, len(sentIDs))
	for _, id := range sentIDs {
		sent[id] = true
	}

	var out []Recipient
	for _, r := range all {
		if !sent[r.EnrollmentID] {
			out = append(out, r)
		}
	}
	return out, nil
}

type reminderData struct {
	ParentName  string
	StudentName string
	TeamName    string
	SchoolName  string
	Lead        string
	Date        string
	StartTime   string
	EndTime     string
}

// Dispatch sends every pending reminder of type t.
// Each reminder is reserved before it is sent, so concurrent or repeated runs send it at most once;
// the reservation is released when sending fails so that a later run can retry it.
func (svc *Service) Dispatch(ctx context.Context, t Type) (core.BatchSummary, error) {
	var summary core.BatchSummary

	pending, err := svc.Pending(ctx, t)
	if err != nil {
		return summary, err
	}

	for _, p := range pending {
		for _, r := range p.Recipients {
			if err = ctx.Err(); err != nil {
				return summary, err
			}
			summary.Add(svc.dispatchOne(ctx, p.Session, t, r))
		}
	}

	svc.logger.Info(fmt.Sprintf("%s reminders: %d sent, %d failed, %d skipped",
		t, summary.Sent, summary.Failed, summary.Skipped))
	return summary, nil
}

func (svc *Service) dispatchOne(ctx context.Context, s schedule.Session, t Type, r Recipient) core.BatchSummary {
	if r.ParentEmail == "" {
		return core.BatchSummary{Skipped: 1}
	}

	rec := Record{SessionID: s.ID, EnrollmentID: r.EnrollmentID, Type: t, SentAt: NowFunc().UTC()}
	if err := svc.repo.Reserve(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadySent) {
			return core.BatchSummary{Skipped: 1}
		}
		svc.logger.Error(fmt.Sprintf("reserving %s reminder for enrollment %s: %v", t, r.EnrollmentID, err), err)
		return core.BatchSummary{Failed: 1}
	}

	teamName := r.TeamName
	if teamName == "" {
		teamName = s.TeamName
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: r.ParentName, Address: r.ParentEmail}},
		Subject:      fmt.Sprintf("%s practice %s", teamName, t.Lead()),
		TemplateName: "session_reminder",
		TemplateData: reminderData{
			ParentName:  r.ParentName,
			StudentName: r.StudentName,
			TeamName:    teamName,
			SchoolName:  r.SchoolName,
			Lead:        t.Lead(),
			Date:        s.StartDate.String(),
			StartTime:   s.StartTime.String(),
			EndTime:     s.EndTime.String(),
		},
	}
	if err := svc.mailSvc.Send(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending %s reminder for enrollment %s: %v", t, r.EnrollmentID, err), err)
		if rerr := svc.repo.Release(ctx, rec); rerr != nil {
			svc.logger.Error(fmt.Sprintf("releasing %s reminder for enrollment %s: %v", t, r.EnrollmentID, rerr), rerr)
		}
		return core.BatchSummary{Failed: 1}
	}
	return core.BatchSummary{Sent: 1}
}
