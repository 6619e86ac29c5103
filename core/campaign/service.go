package campaign

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

// Audiences
const (
	// AudienceActiveParents are parents with at least one active enrollment.
	AudienceActiveParents = "active-parents"
	// AudienceUnpaidParents are parents whose enrollments are all inactive.
	AudienceUnpaidParents = "unpaid-parents"
	// AudienceSubscribers are the newsletter subscribers.
	AudienceSubscribers = "subscribers"
)

var (
	// errors
	ErrAlreadySent     = errors.New("campaign already sent to this address")
	ErrUnknownTemplate = errors.New("unknown email template")
)

type (
	// Job is one run of an email campaign. Addresses that already received the campaign are skipped,
	// so a job can be re-run after a partial failure.
	Job struct {
		Name     string `json:"name" validate:"required,max=100"`
		Template string `json:"template" validate:"required"`
		Subject  string `json:"subject" validate:"required,max=200"`
		Audience string `json:"audience" validate:"required,oneof=active-parents unpaid-parents subscribers"`
		DryRun   bool   `json:"dry_run"`
	}

	Recipient struct {
		Name  string `json:"name" db:"name"`
		Email string `json:"email" db:"email"`
	}

	Send struct {
		Campaign string    `db:"campaign"`
		Email    string    `db:"email"`
		SentAt   time.Time `db:"sent_at"`
	}

	Repository interface {
		QueryAudience(ctx context.Context, audience string) ([]Recipient, error)
		QuerySentEmails(ctx context.Context, campaign string) ([]string, error)
		// Reserve returns ErrAlreadySent when the address already received the campaign.
		Reserve(ctx context.Context, s Send) error
		Release(ctx context.Context, s Send) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		logger   core.Logger
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger, validate: validate}
}

// Run sends the job's template to its audience and reports what happened to each recipient.
// A dry run reports the recipients it would send to as Sent without reserving or sending anything.
func (svc *Service) Run(ctx context.Context, job Job) (core.BatchSummary, error) {
	var summary core.BatchSummary

	if err := svc.validate.Struct(job); err != nil {
		return summary, err
	}
	if !core.HasEmailTemplate(job.Template) {
		return summary, errors.Wrap(ErrUnknownTemplate, job.Template)
	}

	recipients, err := svc.repo.QueryAudience(ctx, job.Audience)
	if err != nil {
		return summary, errors.Wrapf(err, "querying audience %s", job.Audience)
	}
	sentEmails, err := svc.repo.QuerySentEmails(ctx, job.Name)
	if err != nil {
		return summary, errors.Wrap(err, "querying sent emails")
	}
	sent := make(map[string]bool, len(sentEmails))
	for _, e := range sentEmails {
		sent[e] = true
	}

	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		if err = ctx.Err(); err != nil {
			return summary, err
		}
		if r.Email == "" || seen[r.Email] || sent[r.Email] {
			summary.Skipped++
			continue
		}
		seen[r.Email] = true

		if job.DryRun {
			summary.Sent++
			continue
		}
		summary.Add(svc.sendOne(ctx, job, r))
	}

	svc.logger.Info(fmt.Sprintf("campaign %s (%s, dry run: %t): %d sent, %d failed, %d skipped",
		job.Name, job.Audience, job.DryRun, summary.Sent, summary.Failed, summary.Skipped))
	return summary, nil
}

func (svc *Service) sendOne(ctx context.Context, job Job, r Recipient) core.BatchSummary {
	rec := Send{Campaign: job.Name, Email: r.Email, SentAt: time.Now().UTC()}
	if err := svc.repo.Reserve(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadySent) {
			return core.BatchSummary{Skipped: 1}
		}
		svc.logger.Error(fmt.Sprintf("reserving campaign %s for %s: %v", job.Name, r.Email, err), err)
		return core.BatchSummary{Failed: 1}
	}

	name := r.Name
	if name == "" {
		name = "there"
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: r.Name, Address: r.Email}},
		Subject:      job.Subject,
		TemplateName: job.Template,
		TemplateData: map[string]string{"Name": name},
	}
	if err := svc.mailSvc.Send(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending campaign %s to %s: %v", job.Name, r.Email, err), err)
		if rerr := svc.repo.Release(ctx, rec); rerr != nil {
			svc.logger.Error(fmt.Sprintf("releasing campaign %s for %s: %v", job.Name, r.Email, rerr), rerr)
		}
		return core.BatchSummary{Failed: 1}
	}
	return core.BatchSummary{Sent: 1}
}
