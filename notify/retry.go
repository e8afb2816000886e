package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxElapsedTime  = 10 * time.Second
)

// RetryOptions bounds the exponential backoff of a retrying publisher
type RetryOptions struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

func NewDefaultRetryOptions() *RetryOptions {
	return &RetryOptions{
		InitialInterval: DefaultInitialInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
	}
}

// Validate returns a defaulted copy of the options
func (o *RetryOptions) Validate() *RetryOptions {
	if o == nil {
		return NewDefaultRetryOptions()
	}
	opt := *o
	if opt.InitialInterval <= 0 {
		opt.InitialInterval = DefaultInitialInterval
	}
	if opt.MaxElapsedTime <= 0 {
		opt.MaxElapsedTime = DefaultMaxElapsedTime
	}
	return &opt
}

// Retrying retries a publisher with exponential backoff until it succeeds, the elapsed time
// budget runs out, or the context is done
type Retrying struct {
	next Publisher
	opt  *RetryOptions
}

func NewRetrying(next Publisher, opt *RetryOptions) *Retrying {
	return &Retrying{next: next, opt: opt.Validate()}
}

func (r *Retrying) Publish(ctx context.Context, e Event) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.opt.InitialInterval
	bo.MaxElapsedTime = r.opt.MaxElapsedTime

	attempt := 0
	operation := func() error {
		attempt++
		err := r.next.Publish(ctx, e)
		if err != nil {
			slog.Warn("event publish attempt failed", "type", e.Type, "attempt", attempt, "error", err.Error())
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// RetryEach wraps every publisher in its own retrying publisher and fans out to them, so a
// bus that keeps failing is retried alone and the others receive each event once
func RetryEach(pubs []Publisher, opt *RetryOptions) Multi {
	out := make(Multi, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, NewRetrying(p, opt))
	}
	return out
}

// PublishBestEffort publishes an event and logs instead of returning a failure
func PublishBestEffort(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.Error("unable to publish event", "type", e.Type, "id", e.ID, "error", err.Error())
		return
	}
	slog.Info("published event", "type", e.Type, "id", e.ID)
}
