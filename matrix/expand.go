package matrix

import (
	"github.com/ppopth/jerasure-go/galois"
)

// ElementBitMatrix returns the w x w bit matrix of "multiply by e" over
// GF(2): column x holds the bits of e*2^x, bit l in row l.
func ElementBitMatrix(f galois.Field, e uint32) *BitMatrix {
	w := f.W()
	b := NewBitMatrix(w, w)
	writeBlock(f, b, 0, 0, e)
	return b
}

// ToBitMatrix expands a matrix over GF(2^w) into its (w*rows) x (w*cols)
// binary image, replacing every element by its w x w multiplication block.
// Zero elements become zero blocks.
func ToBitMatrix(f galois.Field, m *Matrix) *BitMatrix {
	w := f.W()
	b := NewBitMatrix(m.rows*w, m.cols*w)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			writeBlock(f, b, i*w, j*w, m.At(i, j))
		}
	}
	return b
}

func writeBlock(f galois.Field, b *BitMatrix, row, col int, e uint32) {
	w := f.W()
	for x := 0; x < w; x++ {
		for l := 0; l < w; l++ {
			if e&(1<<uint(l)) != 0 {
				b.Set(row+l, col+x, true)
			}
		}
		if x+1 < w {
			e = f.Multiply(e, 2)
		}
	}
}
