package notify

import (
	"time"

	"github.com/okian/swiss/pkg/logger"
)

// Option configures a publisher.
type Option func(*options)

type options struct {
	prefix       string
	log          logger.Logger
	buffer       int
	startTimeout time.Duration
}

func defaults() options {
	return options{
		prefix:       "swiss",
		log:          logger.Named("notify"),
		buffer:       64,
		startTimeout: 10 * time.Second,
	}
}

// WithSubjectPrefix sets the NATS subject prefix.
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithLogger overrides the publisher logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithBuffer sets the channel size handed to local subscribers.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithStartTimeout bounds how long the embedded server may take to come up.
func WithStartTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.startTimeout = d
		}
	}
}
