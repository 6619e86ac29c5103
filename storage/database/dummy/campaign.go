package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core/campaign"
)

type campaignRepository struct {
	db *DB
}

var _ campaign.Repository = (*campaignRepository)(nil) // interface compliance check

func NewCampaignRepository(db *DB) *campaignRepository {
	return &campaignRepository{db: db}
}

func (repo *campaignRepository) QueryAudience(_ context.Context, audience string) ([]campaign.Recipient, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var recipients []campaign.Recipient
	switch audience {
	case campaign.AudienceActiveParents, campaign.AudienceUnpaidParents:
		active := repo.parentsWithActiveEnrollment()
		for id, enrolled := range repo.parentsWithEnrollment() {
			parent, ok := repo.db.users[id]
			if !ok || !enrolled || !parent.IsActive || parent.Email == "" {
				continue
			}
			if active[id] == (audience == campaign.AudienceActiveParents) {
				recipients = append(recipients, campaign.Recipient{Name: parent.Name, Email: parent.Email})
			}
		}
	case campaign.AudienceSubscribers:
		for email := range repo.db.subscribers {
			recipients = append(recipients, campaign.Recipient{Email: email})
		}
	default:
		return nil, errors.Errorf("unknown audience %q", audience)
	}

	sort.Slice(recipients, func(i, j int) bool { return recipients[i].Email < recipients[j].Email })
	return recipients, nil
}

func (repo *campaignRepository) parentsWithEnrollment() map[string]bool {
	parents := make(map[string]bool)
	for _, e := range repo.db.enrollments {
		parents[repo.db.students[e.StudentID].ParentID] = true
	}
	return parents
}

func (repo *campaignRepository) parentsWithActiveEnrollment() map[string]bool {
	parents := make(map[string]bool)
	for _, e := range repo.db.enrollments {
		if e.IsActive {
			parents[repo.db.students[e.StudentID].ParentID] = true
		}
	}
	return parents
}

func (repo *campaignRepository) QuerySentEmails(_ context.Context, name string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var emails []string
	for key := range repo.db.sends {
		if key.campaign == name {
			emails = append(emails, key.email)
		}
	}
	return emails, nil
}

func (repo *campaignRepository) Reserve(_ context.Context, s campaign.Send) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := sendKey{campaign: s.Campaign, email: s.Email}
	if _, ok := repo.db.sends[key]; ok {
		return campaign.ErrAlreadySent
	}
	repo.db.sends[key] = s
	return nil
}

func (repo *campaignRepository) Release(_ context.Context, s campaign.Send) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.sends, sendKey{campaign: s.Campaign, email: s.Email})
	return nil
}
