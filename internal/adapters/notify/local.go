package notify

import (
	"context"
	"slices"
	"sync"

	"github.com/okian/swiss/pkg/logger"
	"github.com/okian/swiss/pkg/metrics"
)

// LocalPublisher fans events out to in-process subscribers.
// Slow subscribers miss events rather than block the publisher.
type LocalPublisher struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
	opts   options
}

// NewLocalPublisher creates a publisher with no subscribers.
func NewLocalPublisher(opts ...Option) *LocalPublisher {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}
	return &LocalPublisher{opts: o}
}

// Subscribe returns a channel receiving every later event.
func (p *LocalPublisher) Subscribe() <-chan Event {
	ch := make(chan Event, p.opts.buffer)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	p.subs = append(p.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (p *LocalPublisher) Unsubscribe(ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.IndexFunc(p.subs, func(c chan Event) bool { return c == ch })
	if i < 0 {
		return
	}
	close(p.subs[i])
	p.subs = slices.Delete(p.subs, i, i+1)
}

// Subscribers returns the number of active subscriptions.
func (p *LocalPublisher) Subscribers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Publish hands e to every subscriber. Slow subscribers miss the event.
func (p *LocalPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	for _, sub := range p.subs {
		select {
		case sub <- e:
		default:
			p.opts.log.Warn(ctx, "dropping event for slow subscriber",
				logger.String("type", e.Type),
				logger.String("tournament_id", e.TournamentID))
		}
	}
	metrics.RecordEventPublished(e.Type)
	return nil
}

// Close closes every subscription channel.
func (p *LocalPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, sub := range p.subs {
		close(sub)
	}
	p.subs = nil
	return nil
}
