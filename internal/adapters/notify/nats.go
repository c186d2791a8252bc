package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/okian/swiss/pkg/logger"
	"github.com/okian/swiss/pkg/metrics"
)

// NATSPublisher publishes JSON events on <prefix>.<tournament_id>.<type>.
type NATSPublisher struct {
	nc     *nats.Conn
	server *server.Server // set when the publisher owns an embedded server
	opts   options
	closed atomic.Bool
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...Option) (*NATSPublisher, error) {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}
	nc, err := connect(url, o)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, opts: o}, nil
}

// NewEmbeddedNATSPublisher starts an in-process NATS server on a random
// port and publishes to it. Close shuts the server down.
func NewEmbeddedNATSPublisher(opts ...Option) (*NATSPublisher, error) {
	o := defaults()
	for _, opt := range opts {
		opt(&o)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   server.RANDOM_PORT,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	ns.SetLogger(&serverLogger{log: o.log.Named("server")}, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(o.startTimeout) {
		ns.Shutdown()
		return nil, ErrServerStart
	}
	o.log.Info(context.Background(), "embedded nats server started", logger.String("url", ns.ClientURL()))

	nc, err := connect(ns.ClientURL(), o)
	if err != nil {
		ns.Shutdown()
		return nil, err
	}
	return &NATSPublisher{nc: nc, server: ns, opts: o}, nil
}

func connect(url string, o options) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("swiss"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				o.log.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			o.log.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(e Event) string {
	return strings.Join([]string{p.opts.prefix, e.TournamentID, e.Type}, ".")
}

// URL returns the server URL the publisher is connected to.
func (p *NATSPublisher) URL() string {
	return p.nc.ConnectedUrl()
}

// Publish sends e as JSON on the subject derived from its type.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		metrics.RecordEventPublishError()
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	subject := p.Subject(e)
	if err := p.nc.Publish(subject, data); err != nil {
		metrics.RecordEventPublishError()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.RecordEventPublished(e.Type)
	p.opts.log.Debug(ctx, "event published", logger.String("subject", subject))
	return nil
}

// Close drains the connection and stops the embedded server, if any.
func (p *NATSPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.nc.Flush()
	p.nc.Close()
	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
	return err
}

// serverLogger routes embedded server logs through the package logger.
type serverLogger struct {
	log logger.Logger
}

func (l *serverLogger) Noticef(format string, v ...any) {
	l.log.Info(context.Background(), fmt.Sprintf(format, v...))
}

func (l *serverLogger) Warnf(format string, v ...any) {
	l.log.Warn(context.Background(), fmt.Sprintf(format, v...))
}

func (l *serverLogger) Fatalf(format string, v ...any) {
	l.log.Error(context.Background(), fmt.Sprintf(format, v...))
}

func (l *serverLogger) Errorf(format string, v ...any) {
	l.log.Error(context.Background(), fmt.Sprintf(format, v...))
}

func (l *serverLogger) Debugf(format string, v ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, v...))
}

func (l *serverLogger) Tracef(format string, v ...any) {
	l.log.Debug(context.Background(), fmt.Sprintf(format, v...))
}
