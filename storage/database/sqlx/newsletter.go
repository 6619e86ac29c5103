package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/newsletter"
)

type newsletterRepository struct {
	exec core.DBExecutor
}

var _ newsletter.Repository = (*newsletterRepository)(nil) // interface compliance check

func NewNewsletterRepository(exec core.DBExecutor) *newsletterRepository {
	return &newsletterRepository{exec: exec}
}

func (repo newsletterRepository) CreateSubscriber(ctx context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	_, err := repo.exec.ExecContext(ctx,
		"INSERT INTO newsletter_subscribers (id, email, created_at) VALUES ($1, $2, $3)",
		s.ID, s.Email, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return newsletter.Subscriber{}, newsletter.ErrAlreadySubscribed
		}
		return newsletter.Subscriber{}, errors.Wrap(err, "inserting subscriber")
	}
	return s, nil
}

func (repo newsletterRepository) GetSubscriber(ctx context.Context, email string) (newsletter.Subscriber, error) {
	var s newsletter.Subscriber
	err := repo.exec.GetContext(ctx, &s, "SELECT id, email, created_at FROM newsletter_subscribers WHERE email = $1", email)
	if err != nil {
		return newsletter.Subscriber{}, trapNoRowsErr(err, newsletter.ErrNotSubscribed, "finding subscriber")
	}
	return s, nil
}

func (repo newsletterRepository) DeleteSubscriber(ctx context.Context, email string) error {
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM newsletter_subscribers WHERE email = $1", email)
	if err != nil {
		return errors.Wrap(err, "deleting subscriber")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting deleted subscribers")
	}
	if n == 0 {
		return newsletter.ErrNotSubscribed
	}
	return nil
}
