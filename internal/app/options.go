package service

import (
	"time"

	"github.com/okian/swiss/internal/adapters/notify"
	"github.com/okian/swiss/internal/adapters/repository"
	"github.com/okian/swiss/internal/domain/pairing"
	"github.com/okian/swiss/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of report workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the report queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many report ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets the event publisher. Defaults to a local publisher.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithEngine sets the pairing engine.
func WithEngine(e *pairing.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithDefaultTopCut applies to tournaments created without a top cut.
func WithDefaultTopCut(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.defaultTopCut = n
		}
	}
}

// WithMaxPlayers caps registrations per tournament; 0 means no cap.
func WithMaxPlayers(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxPlayers = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
