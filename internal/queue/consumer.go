package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/notify"
)

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, to []string, msg notify.Message) error
}

// Consumer turns events from NotificationQueue into emails.
type Consumer struct {
	url    string
	sender Sender
	log    *zap.Logger
}

func NewConsumer(url string, sender Sender, log *zap.Logger) *Consumer {
	return &Consumer{url: url, sender: sender, log: log.With(zap.String("component", "notification-consumer"))}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.log.Error("handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	msg, ok := messageFor(ev)
	if !ok {
		c.log.Info("event acknowledged without email", zap.String("kind", string(ev.Kind)))
		return nil
	}
	if err := c.sender.Send(ctx, ev.To, msg); err != nil {
		return fmt.Errorf("%s: %w", ev.Kind, err)
	}
	return nil
}

// messageFor renders the email for ev.  ok is false for events that do
// not produce mail, including unknown kinds.
func messageFor(ev Event) (msg notify.Message, ok bool) {
	switch ev.Kind {
	case KindLoginLink:
		return notify.LoginLink(ev.Link, ev.LinkTTLMin), true
	case KindUserInvited:
		return notify.Invite(ev.Link, ev.LinkTTLMin), true
	case KindRequestSubmitted:
		return notify.RequestSubmitted(ev.RequestID, ev.BenefitName, ev.Requester, ev.Link), true
	case KindRequestStatusChanged:
		return notify.RequestStatusChanged(ev.BenefitName, ev.StatusLabel), true
	}
	return notify.Message{}, false
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
