// Package report delivers envelopes to their destinations. Delivery is
// fire-and-forget everywhere: there is no queue, no batching, and no retry;
// callers log failures and move on.
package report

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/superengineer/overlaywatch/internal/envelope"
)

// Sink accepts envelopes for delivery.
type Sink interface {
	Send(env *envelope.Envelope) error
	Close() error
}

// MultiSink fans an envelope out to several sinks. A failing sink does not
// stop delivery to the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. With a single sink it is returned unwrapped.
func NewMultiSink(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiSink{sinks: sinks}
}

// Send delivers the envelope to every sink.
func (m *MultiSink) Send(env *envelope.Envelope) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sharedSink delegates Send but ignores Close, for sinks owned by the
// session rather than by an individual page.
type sharedSink struct {
	Sink
}

// Shared wraps a sink so that Close becomes a no-op. The owner closes the
// underlying sink itself.
func Shared(s Sink) Sink {
	return &sharedSink{Sink: s}
}

func (s *sharedSink) Close() error {
	return nil
}

// DropSink is used when no parent collector and no output directory are
// configured. Every report is skipped with a warning, mirroring the in-page
// monitor's behavior when it has no distinct parent window.
type DropSink struct {
	log logrus.FieldLogger
}

// NewDropSink creates a DropSink.
func NewDropSink(log logrus.FieldLogger) *DropSink {
	return &DropSink{log: log}
}

// Send drops the envelope.
func (d *DropSink) Send(env *envelope.Envelope) error {
	d.log.WithField("kind", env.Kind).Warn("no parent collector configured, dropping report")
	return nil
}

// Close is a no-op.
func (d *DropSink) Close() error {
	return nil
}
