package engine

import (
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/reflow"
	"github.com/dshills/pagestorm/internal/logging"
)

// Option configures a Session during creation.
type Option func(*Session)

// WithDocument sets the initial document.
func WithDocument(d *doc.Document) Option {
	return func(s *Session) {
		if d != nil {
			s.doc = d
		}
	}
}

// WithMeasurer sets the layout measurer used by reflow.
func WithMeasurer(m reflow.Measurer) Option {
	return func(s *Session) {
		if m != nil {
			s.measurer = m
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoReflow controls whether Update reflows the whole document after
// every mutation. It is on by default.
func WithAutoReflow(on bool) Option {
	return func(s *Session) {
		s.autoReflow = on
	}
}

// WithReadOnly creates a read-only session.
// Mutating operations will return ErrReadOnly.
func WithReadOnly() Option {
	return func(s *Session) {
		s.readOnly = true
	}
}
