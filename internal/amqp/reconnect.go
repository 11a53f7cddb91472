package amqp

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// ReconnectingConsumer re-dials the broker when consumption drops on a
// connection error. Non-connection errors stop it.
type ReconnectingConsumer struct {
	url      string
	exchange string
	queue    string
}

func NewReconnectingConsumer(url, exchange, queue string) *ReconnectingConsumer {
	return &ReconnectingConsumer{url: url, exchange: exchange, queue: queue}
}

func (rc *ReconnectingConsumer) Run(ctx context.Context, handler func(*Event) error) error {
	attempt := 0
	for {
		client, err := NewClient(rc.url, rc.exchange, rc.queue)
		if err != nil {
			if !isConnectionError(err) {
				return err
			}
			wait := exponentialBackoff(attempt)
			attempt++
			slog.WarnContext(ctx, "AMQP connection failed, retrying",
				"error", err,
				"attempt", attempt,
				"wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		err = client.ConsumeEvents(ctx, handler)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}
		slog.WarnContext(ctx, "AMQP consumption dropped, reconnecting", "error", err)
	}
}

// exponentialBackoff doubles from one second, capped at thirty.
func exponentialBackoff(attempt int) time.Duration {
	wait := time.Second << uint(attempt)
	if attempt > 4 || wait > 30*time.Second {
		return 30 * time.Second
	}
	return wait
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"channel closed",
		"EOF",
		"broken pipe",
		"no route to host",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
