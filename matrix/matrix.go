// Package matrix provides dense matrices over GF(2^w) and packed binary
// matrices over GF(2), with the inversion and multiplication routines the
// coding layers need.
package matrix

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
)

var (
	// ErrSingular is returned when a matrix has no inverse.
	ErrSingular = errors.New("matrix: singular matrix")
	// ErrDimension is returned when operand shapes do not fit.
	ErrDimension = errors.New("matrix: dimension mismatch")
)

// Matrix is a rows x cols matrix of field elements stored row-major.
type Matrix struct {
	rows, cols int
	data       []uint32
}

// New returns a zero rows x cols matrix.
func New(rows, cols int) *Matrix {
	return &Matrix{
		rows: rows,
		cols: cols,
		data: make([]uint32, rows*cols),
	}
}

// FromRows builds a matrix from row slices. All rows must have equal length.
func FromRows(rows [][]uint32) (*Matrix, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	m := New(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.cols {
			return nil, errors.Wrapf(ErrDimension, "row %d has %d columns, want %d", i, len(r), m.cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) uint32 {
	return m.data[i*m.cols+j]
}

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v uint32) {
	m.data[i*m.cols+j] = v
}

// Row returns row i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []uint32 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Data returns the row-major backing slice.
func (m *Matrix) Data() []uint32 {
	return m.data
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	c := New(m.rows, m.cols)
	copy(c.data, m.data)
	return c
}

// Equal reports whether m and o have the same shape and elements.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i, v := range m.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// SubRows returns a new matrix made of the listed rows of m, in order.
func (m *Matrix) SubRows(rows []int) *Matrix {
	s := New(len(rows), m.cols)
	for i, r := range rows {
		copy(s.Row(i), m.Row(r))
	}
	return s
}

func (m *Matrix) swapRows(a, b int) {
	if a == b {
		return
	}
	ra, rb := m.Row(a), m.Row(b)
	for j := range ra {
		ra[j], rb[j] = rb[j], ra[j]
	}
}

// Invert computes the inverse of a square matrix over f using Gauss-Jordan
// elimination.
func Invert(f galois.Field, a *Matrix) (*Matrix, error) {
	if a.rows != a.cols {
		return nil, errors.Wrapf(ErrDimension, "cannot invert %dx%d matrix", a.rows, a.cols)
	}
	n := a.rows
	b := a.Clone()
	inv := Identity(n)

	for i := 0; i < n; i++ {
		// Find pivot: look for a non-zero element in column i
		pivot := -1
		for k := i; k < n; k++ {
			if b.At(k, i) != 0 {
				pivot = k
				break
			}
		}
		if pivot == -1 {
			return nil, ErrSingular
		}
		b.swapRows(i, pivot)
		inv.swapRows(i, pivot)

		// Normalize the pivot row
		if p := b.At(i, i); p != 1 {
			scale := f.Inverse(p)
			br, ir := b.Row(i), inv.Row(i)
			for j := 0; j < n; j++ {
				br[j] = f.Multiply(br[j], scale)
				ir[j] = f.Multiply(ir[j], scale)
			}
		}

		// Eliminate other rows
		br, ir := b.Row(i), inv.Row(i)
		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := b.At(k, i)
			if factor == 0 {
				continue
			}
			bk, ik := b.Row(k), inv.Row(k)
			for j := 0; j < n; j++ {
				bk[j] ^= f.Multiply(factor, br[j])
				ik[j] ^= f.Multiply(factor, ir[j])
			}
		}
	}
	return inv, nil
}

// Invertible reports whether the square matrix a is invertible over f. It
// only performs forward elimination.
func Invertible(f galois.Field, a *Matrix) bool {
	if a.rows != a.cols {
		return false
	}
	n := a.rows
	b := a.Clone()

	for i := 0; i < n; i++ {
		pivot := -1
		for k := i; k < n; k++ {
			if b.At(k, i) != 0 {
				pivot = k
				break
			}
		}
		if pivot == -1 {
			return false
		}
		b.swapRows(i, pivot)

		br := b.Row(i)
		inv := f.Inverse(br[i])
		for k := i + 1; k < n; k++ {
			factor := b.At(k, i)
			if factor == 0 {
				continue
			}
			factor = f.Multiply(factor, inv)
			bk := b.Row(k)
			for j := i; j < n; j++ {
				bk[j] ^= f.Multiply(factor, br[j])
			}
		}
	}
	return true
}

// Multiply computes a x b over f. a is r x n, b is n x c, the result r x c.
func Multiply(f galois.Field, a, b *Matrix) (*Matrix, error) {
	if a.cols != b.rows {
		return nil, errors.Wrapf(ErrDimension, "a is %dx%d, b is %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	c := New(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		ar := a.Row(i)
		cr := c.Row(i)
		for k, av := range ar {
			if av == 0 {
				continue
			}
			br := b.Row(k)
			for j, bv := range br {
				cr[j] ^= f.Multiply(av, bv)
			}
		}
	}
	return c, nil
}

// MultiplyVector returns m x v over f.
func MultiplyVector(f galois.Field, m *Matrix, v []uint32) ([]uint32, error) {
	if len(v) != m.cols {
		return nil, errors.Wrapf(ErrDimension, "matrix has %d columns, vector %d elements", m.cols, len(v))
	}
	out := make([]uint32, m.rows)
	for i := range out {
		var sum uint32
		for j, e := range m.Row(i) {
			sum ^= f.Multiply(e, v[j])
		}
		out[i] = sum
	}
	return out, nil
}
