package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
)

type natsBus struct {
	conn   *nats.Conn
	logger core.Logger
}

var _ core.EventBus = (*natsBus)(nil)

// NewNatsBus connects to the NATS server at conf.Nats.URL.
func NewNatsBus(conf *core.Config, logger core.Logger) (core.EventBus, error) {
	nc, err := nats.Connect(
		conf.Nats.URL,
		nats.Name(conf.AppName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(fmt.Sprintf("nats disconnected: %v", err), err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(fmt.Sprintf("nats reconnected to %s", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to nats at %s", conf.Nats.URL)
	}
	return &natsBus{conn: nc, logger: logger}, nil
}

func (b *natsBus) Publish(_ context.Context, subject string, data []byte) error {
	return errors.Wrapf(b.conn.Publish(subject, data), "publishing to %s", subject)
}

func (b *natsBus) Subscribe(subject string, handler func(data []byte)) (core.Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to %s", subject)
	}
	return sub, nil
}

// Close drains pending messages before closing the connection.
func (b *natsBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
