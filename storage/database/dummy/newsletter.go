package dummydb

import (
	"context"

	"github.com/trezcool/clubhouse/core/newsletter"
)

type newsletterRepository struct {
	db *DB
}

var _ newsletter.Repository = (*newsletterRepository)(nil) // interface compliance check

func NewNewsletterRepository(db *DB) *newsletterRepository {
	return &newsletterRepository{db: db}
}

func (repo *newsletterRepository) CreateSubscriber(_ context.Context, s newsletter.Subscriber) (newsletter.Subscriber, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subscribers[s.Email]; ok {
		return newsletter.Subscriber{}, newsletter.ErrAlreadySubscribed
	}
	repo.db.subscribers[s.Email] = s
	return s, nil
}

func (repo *newsletterRepository) GetSubscriber(_ context.Context, email string) (newsletter.Subscriber, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.subscribers[email]; ok {
		return s, nil
	}
	return newsletter.Subscriber{}, newsletter.ErrNotSubscribed
}

func (repo *newsletterRepository) DeleteSubscriber(_ context.Context, email string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subscribers[email]; !ok {
		return newsletter.ErrNotSubscribed
	}
	delete(repo.db.subscribers, email)
	return nil
}
