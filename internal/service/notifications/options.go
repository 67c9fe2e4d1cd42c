package notifications

import (
	"log/slog"
	"time"
)

const DefaultBatchSize = 50

type options struct {
	now       func() time.Time
	log       *slog.Logger
	batchSize int
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBatchSize caps the jobs handled by one dispatcher pass.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func newOptions(component string, opts []Option) options {
	o := options{now: time.Now, log: slog.Default(), batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With("component", component)
	return o
}
