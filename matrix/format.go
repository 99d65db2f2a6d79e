package matrix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppopth/jerasure-go/galois"
)

// Format renders the matrix one row per line, every element right-aligned to
// the width of the largest element of GF(2^w).
func (m *Matrix) Format(w int) string {
	fw := len(strconv.FormatUint(uint64(galois.Mask(w)), 10))

	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			if j != 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%*d", fw, m.At(i, j))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String returns the matrix formatted for GF(2^8)
func (m *Matrix) String() string {
	return m.Format(8)
}

// Format renders the bit matrix as 0/1 characters, separating w x w blocks
// with a space between columns and an empty line between rows.
func (b *BitMatrix) Format(w int) string {
	var sb strings.Builder
	for i := 0; i < b.rows; i++ {
		if i != 0 && w > 0 && i%w == 0 {
			sb.WriteByte('\n')
		}
		for j := 0; j < b.cols; j++ {
			if j != 0 && w > 0 && j%w == 0 {
				sb.WriteByte(' ')
			}
			if b.Get(i, j) {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String returns the bit matrix without block separators
func (b *BitMatrix) String() string {
	return b.Format(0)
}
