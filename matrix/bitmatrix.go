package matrix

import (
	"math/bits"

	"github.com/pkg/errors"
)

// BitMatrix is a matrix over GF(2). Each row is packed into 64-bit words;
// rows are laid out contiguously so a row is addressed by its index alone.
// Padding bits past the last column are always zero.
type BitMatrix struct {
	rows, cols int
	stride     int // words per row
	words      []uint64
}

// NewBitMatrix returns a zero rows x cols bit matrix.
func NewBitMatrix(rows, cols int) *BitMatrix {
	stride := (cols + 63) / 64
	return &BitMatrix{
		rows:   rows,
		cols:   cols,
		stride: stride,
		words:  make([]uint64, rows*stride),
	}
}

// IdentityBitMatrix returns the n x n identity bit matrix.
func IdentityBitMatrix(n int) *BitMatrix {
	b := NewBitMatrix(n, n)
	for i := 0; i < n; i++ {
		b.Set(i, i, true)
	}
	return b
}

// Rows returns the number of rows.
func (b *BitMatrix) Rows() int { return b.rows }

// Cols returns the number of columns.
func (b *BitMatrix) Cols() int { return b.cols }

// Get reports whether bit (r, c) is set.
func (b *BitMatrix) Get(r, c int) bool {
	return b.words[r*b.stride+c/64]&(1<<uint(c%64)) != 0
}

// Set sets or clears bit (r, c).
func (b *BitMatrix) Set(r, c int, v bool) {
	i := r*b.stride + c/64
	if v {
		b.words[i] |= 1 << uint(c%64)
	} else {
		b.words[i] &^= 1 << uint(c%64)
	}
}

// Row returns the packed words of row r. The slice aliases the matrix storage.
func (b *BitMatrix) Row(r int) []uint64 {
	return b.words[r*b.stride : (r+1)*b.stride]
}

// RowOnes returns the number of set bits in row r.
func (b *BitMatrix) RowOnes(r int) int {
	n := 0
	for _, w := range b.Row(r) {
		n += bits.OnesCount64(w)
	}
	return n
}

// OnesCount returns the number of set bits in the matrix.
func (b *BitMatrix) OnesCount() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// RowDistance returns the number of columns where row r of b and row s of o
// differ. Both matrices must have the same number of columns.
func (b *BitMatrix) RowDistance(r int, o *BitMatrix, s int) int {
	x, y := b.Row(r), o.Row(s)
	n := 0
	for i := range x {
		n += bits.OnesCount64(x[i] ^ y[i])
	}
	return n
}

// SetColumns returns the indices of the set bits of row r in increasing order.
func (b *BitMatrix) SetColumns(r int) []int {
	cols := make([]int, 0, b.RowOnes(r))
	for i, w := range b.Row(r) {
		for w != 0 {
			cols = append(cols, i*64+bits.TrailingZeros64(w))
			w &= w - 1
		}
	}
	return cols
}

// XorRow XORs row s of o into row r of b.
func (b *BitMatrix) XorRow(r int, o *BitMatrix, s int) {
	dst, src := b.Row(r), o.Row(s)
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// CopyRow overwrites row r of b with row s of o.
func (b *BitMatrix) CopyRow(r int, o *BitMatrix, s int) {
	copy(b.Row(r), o.Row(s))
}

// ClearRow zeroes row r.
func (b *BitMatrix) ClearRow(r int) {
	clear(b.Row(r))
}

// Clone returns a deep copy of b.
func (b *BitMatrix) Clone() *BitMatrix {
	c := NewBitMatrix(b.rows, b.cols)
	copy(c.words, b.words)
	return c
}

// Equal reports whether b and o have the same shape and bits.
func (b *BitMatrix) Equal(o *BitMatrix) bool {
	if b.rows != o.rows || b.cols != o.cols {
		return false
	}
	for i, w := range b.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

// SubRows returns a copy of rows [start, start+n).
func (b *BitMatrix) SubRows(start, n int) *BitMatrix {
	s := NewBitMatrix(n, b.cols)
	copy(s.words, b.words[start*b.stride:(start+n)*b.stride])
	return s
}

func (b *BitMatrix) swapRows(r, s int) {
	if r == s {
		return
	}
	x, y := b.Row(r), b.Row(s)
	for i := range x {
		x[i], y[i] = y[i], x[i]
	}
}

// Invert returns the inverse of a square bit matrix using Gauss-Jordan
// elimination over GF(2).
func (b *BitMatrix) Invert() (*BitMatrix, error) {
	if b.rows != b.cols {
		return nil, errors.Wrapf(ErrDimension, "cannot invert %dx%d bit matrix", b.rows, b.cols)
	}
	n := b.rows
	m := b.Clone()
	inv := IdentityBitMatrix(n)

	for i := 0; i < n; i++ {
		pivot := -1
		for k := i; k < n; k++ {
			if m.Get(k, i) {
				pivot = k
				break
			}
		}
		if pivot == -1 {
			return nil, ErrSingular
		}
		m.swapRows(i, pivot)
		inv.swapRows(i, pivot)

		for k := 0; k < n; k++ {
			if k != i && m.Get(k, i) {
				m.XorRow(k, m, i)
				inv.XorRow(k, inv, i)
			}
		}
	}
	return inv, nil
}

// Invertible reports whether the square bit matrix b is invertible.
func (b *BitMatrix) Invertible() bool {
	if b.rows != b.cols {
		return false
	}
	n := b.rows
	m := b.Clone()
	for i := 0; i < n; i++ {
		pivot := -1
		for k := i; k < n; k++ {
			if m.Get(k, i) {
				pivot = k
				break
			}
		}
		if pivot == -1 {
			return false
		}
		m.swapRows(i, pivot)
		for k := i + 1; k < n; k++ {
			if m.Get(k, i) {
				m.XorRow(k, m, i)
			}
		}
	}
	return true
}

// MultiplyBits computes a x b over GF(2).
func MultiplyBits(a, b *BitMatrix) (*BitMatrix, error) {
	if a.cols != b.rows {
		return nil, errors.Wrapf(ErrDimension, "a is %dx%d, b is %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	c := NewBitMatrix(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		for _, k := range a.SetColumns(i) {
			c.XorRow(i, b, k)
		}
	}
	return c, nil
}
