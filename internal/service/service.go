// Package service holds the domain workflows: catalog visibility, the
// benefit request lifecycle, polls, analytics and account management.
package service

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/metrics"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
)

// Clock supplies the current time.
type Clock func() time.Time

// BlobStore keeps uploaded payloads under generated names.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// EventPublisher hands notification events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

const publishTimeout = 5 * time.Second

// dispatcher publishes events in the background.  Callers never wait
// for delivery and failures are only logged.
type dispatcher struct {
	pub EventPublisher
	log *zap.Logger
}

func (d dispatcher) fire(ev queue.Event) {
	if d.pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.pub.Publish(ctx, ev); err != nil {
			metrics.NotificationFailuresTotal.WithLabelValues(string(ev.Kind)).Inc()
			d.log.Warn("notification publish failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}()
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
