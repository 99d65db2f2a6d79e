package matrix

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppopth/jerasure-go/galois"
)

// Test helper functions

// randomMatrix creates a rows x cols matrix with random elements of GF(2^w)
func randomMatrix(rng *rand.Rand, rows, cols, w int) *Matrix {
	m := New(rows, cols)
	for i := range m.data {
		m.data[i] = uint32(rng.Uint64()) & galois.Mask(w)
	}
	return m
}

// bitVector expands field elements into their bits, element j occupying
// bits [j*w, j*w+w) with the least significant bit first
func bitVector(v []uint32, w int) []bool {
	out := make([]bool, len(v)*w)
	for j, e := range v {
		for x := 0; x < w; x++ {
			out[j*w+x] = e&(1<<uint(x)) != 0
		}
	}
	return out
}

func TestMatrixMultiply(t *testing.T) {
	f := galois.MustNew(8)

	// Identity matrix multiplication
	b, err := FromRows([][]uint32{{3, 4}, {5, 6}})
	require.NoError(t, err)
	result, err := Multiply(f, Identity(2), b)
	require.NoError(t, err)
	assert.True(t, result.Equal(b), "identity multiplication failed")

	// Known multiplication: [[2,3],[1,4]] x [[5,6],[7,8]] in GF(2^8)/0x11d
	a, err := FromRows([][]uint32{{2, 3}, {1, 4}})
	require.NoError(t, err)
	b, err = FromRows([][]uint32{{5, 6}, {7, 8}})
	require.NoError(t, err)
	result, err = Multiply(f, a, b)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := f.Multiply(a.At(i, 0), b.At(0, j)) ^ f.Multiply(a.At(i, 1), b.At(1, j))
			assert.Equal(t, want, result.At(i, j))
		}
	}
	assert.Equal(t, uint32(0x0a^0x09), result.At(0, 0)) // 2*5 ^ 3*7

	// Non-square matrices
	result, err = Multiply(f, New(2, 3), New(3, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows())
	assert.Equal(t, 4, result.Cols())

	_, err = Multiply(f, New(2, 3), New(2, 3))
	require.ErrorIs(t, err, ErrDimension)
}

func TestFromRowsRejectsRagged(t *testing.T) {
	_, err := FromRows([][]uint32{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrDimension)
}

// TestInverseIdentity checks invert(M) x M == I for random invertible matrices
func TestInverseIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, w := range []int{4, 8, 16, 32} {
		f := galois.MustNew(w)
		for n := 1; n <= 8; n++ {
			for trial := 0; trial < 10; trial++ {
				m := randomMatrix(rng, n, n, w)
				inv, err := Invert(f, m)
				if !Invertible(f, m) {
					require.ErrorIs(t, err, ErrSingular)
					continue
				}
				require.NoError(t, err)

				prod, err := Multiply(f, inv, m)
				require.NoError(t, err)
				require.True(t, prod.Equal(Identity(n)), "w=%d n=%d:\n%s", w, n, prod.Format(w))

				prod, err = Multiply(f, m, inv)
				require.NoError(t, err)
				require.True(t, prod.Equal(Identity(n)), "w=%d n=%d", w, n)
			}
		}
	}
}

func TestSingularMatrix(t *testing.T) {
	f := galois.MustNew(8)

	// Second row is 2 times the first one
	m, err := FromRows([][]uint32{
		{1, 2, 3},
		{2, 4, 6},
		{7, 0, 9},
	})
	require.NoError(t, err)
	assert.False(t, Invertible(f, m))
	_, err = Invert(f, m)
	require.ErrorIs(t, err, ErrSingular)

	_, err = Invert(f, New(2, 3))
	require.ErrorIs(t, err, ErrDimension)
	assert.False(t, Invertible(f, New(2, 3)))
}

func TestMultiplyVector(t *testing.T) {
	f := galois.MustNew(8)
	m, err := FromRows([][]uint32{{1, 1}, {1, 2}})
	require.NoError(t, err)

	out, err := MultiplyVector(f, m, []uint32{0x10, 0x20})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x30, 0x10 ^ 0x40}, out)

	_, err = MultiplyVector(f, m, []uint32{1})
	require.ErrorIs(t, err, ErrDimension)
}

func TestSubRowsAndClone(t *testing.T) {
	m, err := FromRows([][]uint32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)

	s := m.SubRows([]int{2, 0})
	assert.Equal(t, []uint32{5, 6, 1, 2}, s.Data())

	c := m.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, uint32(1), m.At(0, 0))
	assert.False(t, c.Equal(m))
}

func TestFormat(t *testing.T) {
	m, err := FromRows([][]uint32{{1, 255}, {16, 2}})
	require.NoError(t, err)
	assert.Equal(t, "  1 255\n 16   2\n", m.Format(8))
	assert.Equal(t, " 1 15\n16  2\n", m.Format(4))

	b := NewBitMatrix(4, 4)
	b.Set(0, 0, true)
	b.Set(3, 3, true)
	assert.Equal(t, "10 00\n00 00\n\n00 00\n00 01\n", b.Format(2))
	assert.Equal(t, "1000\n0000\n0000\n0001\n", b.String())
}

func TestForEachSubset(t *testing.T) {
	var got [][]int
	forEachSubset(4, 2, func(s []int) bool {
		got = append(got, append([]int(nil), s...))
		return true
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)

	count := 0
	forEachSubset(5, 3, func([]int) bool {
		count++
		return count < 4
	})
	assert.Equal(t, 4, count)
}

func TestIsMDS(t *testing.T) {
	f := galois.MustNew(8)

	// RAID-6 style rows: all ones and distinct nonzero elements
	good, err := FromRows([][]uint32{{1, 1, 1}, {1, 2, 4}})
	require.NoError(t, err)
	assert.True(t, IsMDS(f, good))
	assert.True(t, IsMDSBits(ToBitMatrix(f, good), 3, 2, 8))

	// Repeated element in the second row breaks the pair (0, 1)
	bad, err := FromRows([][]uint32{{1, 1, 1}, {2, 2, 4}})
	require.NoError(t, err)
	assert.False(t, IsMDS(f, bad))
	assert.False(t, IsMDSBits(ToBitMatrix(f, bad), 3, 2, 8))

	// A zero element makes a single coding row useless for that device
	zero, err := FromRows([][]uint32{{1, 0}})
	require.NoError(t, err)
	assert.False(t, IsMDS(f, zero))
}
