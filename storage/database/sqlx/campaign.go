package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/campaign"
)

var audienceQueries = map[string]string{
	campaign.AudienceActiveParents: `
		SELECT DISTINCT u.name, u.email
		FROM users u JOIN students st ON st.parent_id = u.id JOIN enrollments e ON e.student_id = st.id
		WHERE u.is_active AND u.email <> '' AND e.is_active
		ORDER BY u.email`,
	campaign.AudienceUnpaidParents: `
		SELECT DISTINCT u.name, u.email
		FROM users u JOIN students st ON st.parent_id = u.id JOIN enrollments e ON e.student_id = st.id
		WHERE u.is_active AND u.email <> ''
		AND NOT EXISTS (
			SELECT 1 FROM students st2 JOIN enrollments e2 ON e2.student_id = st2.id
			WHERE st2.parent_id = u.id AND e2.is_active
		)
		ORDER BY u.email`,
	campaign.AudienceSubscribers: `
		SELECT '' AS name, email FROM newsletter_subscribers ORDER BY email`,
}

type campaignRepository struct {
	exec core.DBExecutor
}

var _ campaign.Repository = (*campaignRepository)(nil) // interface compliance check

func NewCampaignRepository(exec core.DBExecutor) *campaignRepository {
	return &campaignRepository{exec: exec}
}

func (repo campaignRepository) QueryAudience(ctx context.Context, audience string) ([]campaign.Recipient, error) {
	q, ok := audienceQueries[audience]
	if !ok {
		return nil, errors.Errorf("unknown audience %q", audience)
	}
	var recipients []campaign.Recipient
	if err := repo.exec.SelectContext(ctx, &recipients, q); err != nil {
		return nil, errors.Wrap(err, "querying audience")
	}
	return recipients, nil
}

func (repo campaignRepository) QuerySentEmails(ctx context.Context, name string) ([]string, error) {
	var emails []string
	if err := repo.exec.SelectContext(ctx, &emails, "SELECT email FROM campaign_sends WHERE campaign = $1", name); err != nil {
		return nil, errors.Wrap(err, "querying campaign sends")
	}
	return emails, nil
}

func (repo campaignRepository) Reserve(ctx context.Context, s campaign.Send) error {
	res, err := repo.exec.ExecContext(ctx, `
		INSERT INTO campaign_sends (campaign, email, sent_at) VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT campaign_sends_key DO NOTHING`,
		s.Campaign, s.Email, s.SentAt)
	if err != nil {
		return errors.Wrap(err, "reserving campaign send")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting campaign sends")
	}
	if n == 0 {
		return campaign.ErrAlreadySent
	}
	return nil
}

func (repo campaignRepository) Release(ctx context.Context, s campaign.Send) error {
	_, err := repo.exec.ExecContext(ctx, "DELETE FROM campaign_sends WHERE campaign = $1 AND email = $2", s.Campaign, s.Email)
	return errors.Wrap(err, "releasing campaign send")
}
