// Package galois implements arithmetic over GF(2^w) for 1 <= w <= 32.
//
// A Field is created once per coding session and carries its width, so
// sessions with different widths never share mutable state. Every backend is
// immutable after construction and safe for concurrent use.
package galois

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
)

var log = logging.Logger("galois")

var (
	// ErrInvalidWidth is returned when w is outside [1, 32].
	ErrInvalidWidth = errors.New("galois: w must be between 1 and 32")
	// ErrRegionWidth is returned by region operations for widths other than 8, 16 and 32.
	ErrRegionWidth = errors.New("galois: region operations need w of 8, 16 or 32")
	// ErrRegionSize is returned when region lengths differ or are not a multiple of the word size.
	ErrRegionSize = errors.New("galois: region size mismatch")
	// ErrBackend is returned when the requested backend cannot serve w.
	ErrBackend = errors.New("galois: backend does not support this width")
)

// Field is a Galois field GF(2^w). Elements are held in uint32 and must lie
// in [0, 2^w); results for out-of-range inputs are undefined.
type Field interface {
	// W returns the width of the field.
	W() int

	// Multiply returns a * b.
	Multiply(a, b uint32) uint32

	// Divide returns a / b. It panics if b is zero.
	Divide(a, b uint32) uint32

	// Inverse returns the multiplicative inverse of a. It panics if a is zero.
	Inverse(a uint32) uint32

	// RegionMultiply multiplies every little-endian w-bit word of src by c and
	// stores the products in dst, or XORs them into dst when xor is set.
	RegionMultiply(src, dst []byte, c uint32, xor bool) error
}

// Backend selects the arithmetic implementation behind a Field.
type Backend int

const (
	// BackendAuto uses log tables for w <= 16 and shift arithmetic above.
	BackendAuto Backend = iota
	// BackendTable uses log/antilog tables. Only valid for w <= 16.
	BackendTable
	// BackendShift uses carry-less shift-and-reduce multiplication.
	BackendShift
)

// String returns the name of the backend
func (b Backend) String() string {
	switch b {
	case BackendAuto:
		return "auto"
	case BackendTable:
		return "table"
	case BackendShift:
		return "shift"
	}
	return "unknown"
}

// maxTableWidth is the widest field served by log tables.
const maxTableWidth = 16

type options struct {
	backend Backend
}

// Option configures a Field during construction
type Option func(*options) error

// WithBackend forces a specific arithmetic backend
func WithBackend(b Backend) Option {
	return func(o *options) error {
		if b < BackendAuto || b > BackendShift {
			return errors.Errorf("galois: unknown backend %d", b)
		}
		o.backend = b
		return nil
	}
}

// New creates the field GF(2^w) using the default primitive polynomial for w.
func New(w int, opts ...Option) (Field, error) {
	if w < 1 || w > 32 {
		return nil, errors.Wrapf(ErrInvalidWidth, "w=%d", w)
	}

	o := options{backend: BackendAuto}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	backend := o.backend
	if backend == BackendAuto {
		backend = BackendShift
		if w <= maxTableWidth {
			backend = BackendTable
		}
	}

	switch backend {
	case BackendTable:
		if w > maxTableWidth {
			return nil, errors.Wrapf(ErrBackend, "table backend with w=%d", w)
		}
		f, err := sharedTableField(w)
		if err != nil {
			return nil, err
		}
		log.Debugf("created GF(2^%d) with %s backend", w, backend)
		return f, nil
	default:
		log.Debugf("created GF(2^%d) with %s backend", w, backend)
		return newShiftField(w), nil
	}
}

// MustNew is like New but panics on error. It is meant for tests and
// package-level initialisation with constant widths.
func MustNew(w int, opts ...Option) Field {
	f, err := New(w, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Mask returns 2^w - 1.
func Mask(w int) uint32 {
	if w >= 32 {
		return 0xffffffff
	}
	return uint32(1)<<uint(w) - 1
}
