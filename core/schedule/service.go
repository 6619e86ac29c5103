package schedule

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/clubhouse/core"
)

const defaultConcurrency = 4

var (
	// errors
	ErrNotFound = core.NewNotFoundError(errors.New("session not found"))
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// CancelSession flags a session cancelled. cancelled is false when it already was, so that
		// exactly one of several concurrent calls reports the change.
		CancelSession(ctx context.Context, id string) (s Session, cancelled bool, err error)
		QuerySessionsByTeam(ctx context.Context, teamID string) ([]Session, error)
		// QueryParentTeamIDs returns the teams on which the parent has at least one actively enrolled student.
		QueryParentTeamIDs(ctx context.Context, parentID string) ([]string, error)
		// QueryTeamContacts returns one Contact per active enrollment on the team.
		QueryTeamContacts(ctx context.Context, teamID string) ([]Contact, error)
	}

	Service struct {
		repo        Repository
		mailSvc     core.EmailService
		logger      core.Logger
		concurrency int
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	concurrency := conf.Server.CalendarConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		repo:        repo,
		mailSvc:     mailSvc,
		logger:      logger,
		concurrency: concurrency,
	}
}

// CreateSession stores a validated NewSession.
func (svc *Service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	s := Session{
		ID:         uuid.NewString(),
		TeamID:     ns.TeamID,
		StartDate:  ns.startDate,
		EndDate:    ns.endDate,
		StartTime:  ns.startTime,
		EndTime:    ns.endTime,
		DaysOfWeek: FormatDays(ns.days),
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNotFound
	}
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) QueryTeamSessions(ctx context.Context, teamID string) ([]Session, error) {
	return svc.repo.QuerySessionsByTeam(ctx, teamID)
}

// Occurrences expands a single session.
func (svc *Service) Occurrences(ctx context.Context, id string, month *Month) ([]Occurrence, error) {
	s, err := svc.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	occs, err := Expand(s, month)
	if err != nil {
		return nil, err
	}
	if occs == nil {
		occs = make([]Occurrence, 0)
	}
	return occs, nil
}

// ParentCalendar returns the occurrences of every session of every team the parent's students are
// actively enrolled on, sorted by date. Team lookups run concurrently.
func (svc *Service) ParentCalendar(ctx context.Context, parentID string, month *Month) ([]Occurrence, error) {
	teamIDs, err := svc.repo.QueryParentTeamIDs(ctx, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parent teams")
	}

	results := make([][]Occurrence, len(teamIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for i, teamID := range teamIDs {
		i, teamID := i, teamID
		g.Go(func() error {
			sessions, err := svc.repo.QuerySessionsByTeam(gctx, teamID)
			if err != nil {
				return errors.Wrapf(err, "querying sessions of team %s", teamID)
			}
			occs, err := ExpandAll(sessions, month)
			if err != nil {
				return err
			}
			results[i] = occs
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	occs := make([]Occurrence, 0)
	for _, r := range results {
		occs = append(occs, r...)
	}
	SortOccurrences(occs)
	return occs, nil
}

type cancellationData struct {
	ParentName  string
	StudentName string
	TeamName    string
	StartDate   string
	EndDate     string
	Days        string
}

// CancelSession marks the session cancelled and emails every parent with an active enrollment on its team.
// A session that is already cancelled is returned as is, without notifying anyone again.
func (svc *Service) CancelSession(ctx context.Context, id string) (Session, core.BatchSummary, error) {
	var summary core.BatchSummary

	if _, err := uuid.Parse(id); err != nil {
		return Session{}, summary, ErrNotFound
	}
	s, cancelled, err := svc.repo.CancelSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, summary, err
		}
		return Session{}, summary, errors.Wrap(err, "cancelling session")
	}
	if !cancelled {
		return s, summary, nil
	}

	contacts, err := svc.repo.QueryTeamContacts(ctx, s.TeamID)
	if err != nil {
		return s, summary, errors.Wrap(err, "querying team contacts")
	}

	for _, c := range contacts {
		if c.ParentEmail == "" {
			summary.Skipped++
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: c.ParentName, Address: c.ParentEmail}},
			Subject:      fmt.Sprintf("%s practice cancelled", s.TeamName),
			TemplateName: "session_cancelled",
			TemplateData: cancellationData{
				ParentName:  c.ParentName,
				StudentName: c.StudentName,
				TeamName:    s.TeamName,
				StartDate:   s.StartDate.String(),
				EndDate:     s.EndDate.String(),
				Days:        s.DaysOfWeek,
			},
		}
		if err = svc.mailSvc.Send(ctx, msg); err != nil {
			summary.Failed++
			svc.logger.Error(fmt.Sprintf("sending cancellation notice for enrollment %s: %v", c.EnrollmentID, err), err)
			continue
		}
		summary.Sent++
	}

	svc.logger.Info(fmt.Sprintf("session %s cancelled: %d sent, %d failed, %d skipped",
		s.ID, summary.Sent, summary.Failed, summary.Skipped))
	return s, summary, nil
}
