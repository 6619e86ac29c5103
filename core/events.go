package core

import "context"

type (
	// EventBus publishes and delivers raw event payloads by subject.
	// Subjects are dot separated; subscribers may use "*" to match one token.
	EventBus interface {
		Publish(ctx context.Context, subject string, data []byte) error
		Subscribe(subject string, handler func(data []byte)) (Subscription, error)
		Close() error
	}

	Subscription interface {
		Unsubscribe() error
	}
)
