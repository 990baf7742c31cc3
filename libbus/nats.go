package libbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const requestTimeout = 5 * time.Second

// natsMessenger implements Messenger on top of a NATS connection.
type natsMessenger struct {
	conn *nats.Conn
}

func newNATSMessenger(ctx context.Context, cfg *Config) (Messenger, error) {
	opts := []nats.Option{
		nats.Name("chatlog"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	if cfg.NATSUser != "" {
		opts = append(opts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}
	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("libbus: nats connect: %w", err)
	}
	return &natsMessenger{conn: conn}, nil
}

func (m *natsMessenger) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.conn.IsClosed() {
		return ErrConnectionClosed
	}
	return m.conn.Publish(subject, data)
}

func (m *natsMessenger) Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.conn.IsClosed() {
		return nil, ErrConnectionClosed
	}
	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		select {
		case ch <- msg.Data:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("libbus: subscribe %q: %w", subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return natsSubscription{sub: sub}, nil
}

func (m *natsMessenger) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	msg, err := m.conn.RequestWithContext(reqCtx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, err
	}
	return msg.Data, nil
}

func (m *natsMessenger) Serve(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := m.conn.Subscribe(subject, func(msg *nats.Msg) {
		reply, err := handler(ctx, msg.Data)
		if err != nil {
			return
		}
		_ = msg.Respond(reply)
	})
	if err != nil {
		return nil, fmt.Errorf("libbus: serve %q: %w", subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return natsSubscription{sub: sub}, nil
}

func (m *natsMessenger) Close() error {
	m.conn.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

var _ Messenger = (*natsMessenger)(nil)
