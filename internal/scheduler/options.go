package scheduler

import (
	"time"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithBackoff overrides the retry delay for a given attempt count
func WithBackoff(backoff func(attempt int) time.Duration) Option {
	return func(s *Scheduler) {
		s.backoff = backoff
	}
}

// WithNotifier publishes terminal job outcomes
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithPollAfterSubmit enqueues a poll-status job d after every successful submit.
// Zero disables it.
func WithPollAfterSubmit(d time.Duration) Option {
	return func(s *Scheduler) {
		s.pollAfterSubmit = d
	}
}

func defaultBackoff(attempt int) time.Duration {
	return classify.BackoffDelay(attempt)
}
