package newsletter

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

const rateKeyPrefix = "newsletter:subscribe:"

var (
	// errors
	ErrAlreadySubscribed = errors.New("email already subscribed")
	ErrNotSubscribed     = core.NewNotFoundError(errors.New("email not subscribed"))
)

type (
	Subscriber struct {
		ID        string    `json:"id" db:"id"`
		Email     string    `json:"email" db:"email"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	NewSubscription struct {
		Email string `json:"email" validate:"required,email,max=254"`
	}

	Repository interface {
		// CreateSubscriber returns ErrAlreadySubscribed when the address exists.
		CreateSubscriber(ctx context.Context, s Subscriber) (Subscriber, error)
		GetSubscriber(ctx context.Context, email string) (Subscriber, error)
		DeleteSubscriber(ctx context.Context, email string) error
	}

	Service struct {
		repo     Repository
		limiter  Limiter
		mailSvc  core.EmailService
		logger   core.Logger
		validate *validator.Validate
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	store CounterStore,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo: repo,
		limiter: Limiter{
			Store:  store,
			Limit:  conf.Newsletter.RateLimit,
			Window: conf.Newsletter.RateWindow,
			Prefix: rateKeyPrefix,
		},
		mailSvc:  mailSvc,
		logger:   logger,
		validate: validate,
		conf:     conf,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(core.CleanString(email))
}

// Subscribe adds an address to the newsletter and sends it a welcome email.
// Subscribing an address twice is not an error, but only the first subscription is welcomed.
// created reports whether the address was new.
func (svc *Service) Subscribe(ctx context.Context, clientID string, ns NewSubscription) (sub Subscriber, created bool, err error) {
	ok, err := svc.limiter.Allow(ctx, clientID)
	if err != nil {
		// keep accepting subscriptions while the counter store is down
		svc.logger.Warn(fmt.Sprintf("newsletter rate limit for %s: %v", clientID, err), err)
		ok = true
	}
	if !ok {
		return Subscriber{}, false, ErrRateLimited
	}

	ns.Email = normalizeEmail(ns.Email)
	if err = svc.validate.Struct(ns); err != nil {
		return Subscriber{}, false, err
	}

	sub, err = svc.repo.CreateSubscriber(ctx, Subscriber{
		ID:        uuid.NewString(),
		Email:     ns.Email,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, ErrAlreadySubscribed) {
		sub, err = svc.repo.GetSubscriber(ctx, ns.Email)
		return sub, false, errors.Wrap(err, "getting subscriber")
	}
	if err != nil {
		return Subscriber{}, false, errors.Wrap(err, "creating subscriber")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: sub.Email}},
		Subject:      fmt.Sprintf("Welcome to the %s newsletter", svc.conf.AppName),
		TemplateName: "newsletter_welcome",
		TemplateData: map[string]string{"UnsubscribeURL": svc.UnsubscribeURL(sub.Email)},
	}
	if err = svc.mailSvc.Send(ctx, msg); err != nil {
		svc.logger.Error(fmt.Sprintf("sending newsletter welcome to %s: %v", sub.Email, err), err)
	}
	return sub, true, nil
}

func (svc *Service) UnsubscribeURL(email string) string {
	return fmt.Sprintf("%s/newsletter/unsubscribe?token=%s",
		svc.conf.FrontendBaseURL, url.QueryEscape(UnsubscribeToken(svc.conf.SecretKey, email)))
}

// Unsubscribe removes the address the token was issued for.
func (svc *Service) Unsubscribe(ctx context.Context, token string) error {
	email, err := parseToken(svc.conf.SecretKey, token)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	return svc.repo.DeleteSubscriber(ctx, email)
}
