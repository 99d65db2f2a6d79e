// Package jerasure is an erasure-coding engine over GF(2^w). A systematic
// code has k data devices and m coding devices, and any m of the k+m devices
// can be rebuilt from the others.
//
// Codes are applied either with a coding matrix over the field (dotproducts
// with region multiplication) or with a coding bitmatrix, optionally compiled
// into an XOR schedule. Every operation runs on a Context, which owns the
// field and the byte counters of the current pass.
package jerasure

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/schedule"
)

var log = logging.Logger("jerasure")

var (
	// ErrInvalidParams is returned for non-positive k or m, or mismatched
	// matrix dimensions.
	ErrInvalidParams = errors.New("jerasure: invalid coding parameters")
	// ErrBufferSize is returned when a buffer is too short or its size does
	// not divide into words or stripes.
	ErrBufferSize = schedule.ErrBufferSize
	// ErrPacketSize is returned for a non-positive packet size.
	ErrPacketSize = schedule.ErrPacketSize
	// ErrTooManyErasures is returned when more than m devices are erased.
	ErrTooManyErasures = errors.New("jerasure: too many erasures")
	// ErrInvalidErasure is returned for an erasure outside [0, k+m).
	ErrInvalidErasure = errors.New("jerasure: erasure index out of range")
	// ErrDuplicateErasure is returned when a device is listed twice.
	ErrDuplicateErasure = errors.New("jerasure: duplicate erasure")
)

// Context is a coding session: a field of width w and the statistics of the
// last encode or decode pass. A Context is not safe for concurrent use; use
// one per goroutine. The field itself may be shared.
type Context struct {
	field   galois.Field
	backend galois.Backend
	stats   schedule.Stats
}

// ContextOption configures a Context during construction
type ContextOption func(*Context) error

// NewContext creates a coding session over GF(2^w) and applies options
func NewContext(w int, opts ...ContextOption) (*Context, error) {
	c := &Context{backend: galois.BackendAuto}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.field == nil {
		f, err := galois.New(w, galois.WithBackend(c.backend))
		if err != nil {
			return nil, err
		}
		c.field = f
	} else if c.field.W() != w {
		return nil, errors.Wrapf(ErrInvalidParams, "field has w=%d, context wants w=%d", c.field.W(), w)
	}
	return c, nil
}

// WithBackend selects the arithmetic backend of the field
func WithBackend(b galois.Backend) ContextOption {
	return func(c *Context) error {
		c.backend = b
		return nil
	}
}

// WithField shares an existing field instead of building one
func WithField(f galois.Field) ContextOption {
	return func(c *Context) error {
		if f == nil {
			return errors.Wrap(ErrInvalidParams, "nil field")
		}
		c.field = f
		return nil
	}
}

// Field returns the field of the session.
func (c *Context) Field() galois.Field {
	return c.field
}

// W returns the field width.
func (c *Context) W() int {
	return c.field.W()
}

// Stats returns the byte counts accumulated since the start of the last
// encode or decode pass.
func (c *Context) Stats() schedule.Stats {
	return c.stats
}

// ResetStats zeroes the counters. Encode and decode passes do this
// themselves; the lower-level primitives only accumulate.
func (c *Context) ResetStats() {
	c.stats.Reset()
}
