package reedsol

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

func TestExtendedVandermonde(t *testing.T) {
	f := galois.MustNew(8)
	vdm, err := ExtendedVandermondeMatrix(f, 5, 3)
	require.NoError(t, err)

	want, err := matrix.FromRows([][]uint32{
		{1, 0, 0},
		{1, 1, 1},
		{1, 2, 4},
		{1, 3, 5}, // 3*3 = 5 in GF(2^8)
		{0, 0, 1},
	})
	require.NoError(t, err)
	assert.True(t, vdm.Equal(want), "got\n%s", vdm)

	_, err = ExtendedVandermondeMatrix(galois.MustNew(2), 5, 2)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestVandermondeCodingMatrix(t *testing.T) {
	for _, tc := range []struct{ k, m, w int }{
		{1, 1, 8},
		{2, 2, 4},
		{4, 2, 8},
		{6, 3, 8},
		{5, 4, 16},
		{3, 3, 32},
		{10, 6, 8},
	} {
		f := galois.MustNew(tc.w)
		coding, err := VandermondeCodingMatrix(f, tc.k, tc.m)
		require.NoError(t, err)
		require.Equal(t, tc.m, coding.Rows())
		require.Equal(t, tc.k, coding.Cols())

		for j := 0; j < tc.k; j++ {
			assert.Equal(t, uint32(1), coding.At(0, j), "row 0 k=%d m=%d w=%d", tc.k, tc.m, tc.w)
		}
		for i := 0; i < tc.m; i++ {
			assert.Equal(t, uint32(1), coding.At(i, 0), "column 0 k=%d m=%d w=%d", tc.k, tc.m, tc.w)
		}
		require.True(t, matrix.IsMDS(f, coding), "k=%d m=%d w=%d\n%s", tc.k, tc.m, tc.w, coding.Format(tc.w))
	}
}

func TestDistributionMatrixIsSystematic(t *testing.T) {
	f := galois.MustNew(8)
	dist, err := BigVandermondeDistributionMatrix(f, 7, 4)
	require.NoError(t, err)
	top := dist.SubRows([]int{0, 1, 2, 3})
	assert.True(t, top.Equal(matrix.Identity(4)))

	_, err = BigVandermondeDistributionMatrix(f, 4, 4)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestR6CodingMatrix(t *testing.T) {
	f := galois.MustNew(8)
	mat, err := R6CodingMatrix(f, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 1, 1, 1, 1, 1, 2, 4, 8, 16}, mat.Data())
	assert.True(t, matrix.IsMDS(f, mat))

	_, err = R6CodingMatrix(galois.MustNew(4), 3)
	require.ErrorIs(t, err, ErrUnsupportedWidth)
}

// TestR6EncodeMatchesMatrix checks the Horner evaluation against a plain
// matrix-vector product on every word
func TestR6EncodeMatchesMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, w := range []int{8, 16, 32} {
		f := galois.MustNew(w)
		k, size := 5, 64

		data := make([][]byte, k)
		for i := range data {
			data[i] = make([]byte, size)
			rng.Read(data[i])
		}
		coding := [][]byte{make([]byte, size), make([]byte, size)}
		require.NoError(t, R6Encode(w, k, data, coding, size, nil))

		mat, err := R6CodingMatrix(f, k)
		require.NoError(t, err)

		words := make([][]uint32, k)
		for i := range data {
			words[i], err = galois.Words(data[i], w)
			require.NoError(t, err)
		}
		p, err := galois.Words(coding[0], w)
		require.NoError(t, err)
		q, err := galois.Words(coding[1], w)
		require.NoError(t, err)

		for n := range p {
			v := make([]uint32, k)
			for i := range v {
				v[i] = words[i][n]
			}
			want, err := matrix.MultiplyVector(f, mat, v)
			require.NoError(t, err)
			require.Equal(t, want[0], p[n], "w=%d word %d", w, n)
			require.Equal(t, want[1], q[n], "w=%d word %d", w, n)
		}
	}
}

func TestR6EncodeErrors(t *testing.T) {
	data := [][]byte{make([]byte, 8), make([]byte, 8)}
	coding := [][]byte{make([]byte, 8), make([]byte, 8)}

	require.ErrorIs(t, R6Encode(7, 2, data, coding, 8, nil), ErrUnsupportedWidth)
	require.ErrorIs(t, R6Encode(16, 2, data, coding, 7, nil), ErrBufferSize)
	require.ErrorIs(t, R6Encode(8, 2, data, coding, 16, nil), ErrBufferSize)
	require.ErrorIs(t, R6Encode(8, 3, data, coding, 8, nil), ErrInvalidParams)
	require.NoError(t, R6Encode(8, 2, data, coding, 8, nil))
}

func TestR6EncodeStats(t *testing.T) {
	const k, size = 6, 32
	data := make([][]byte, k)
	for i := range data {
		data[i] = make([]byte, size)
	}
	coding := [][]byte{make([]byte, size), make([]byte, size)}

	stats := schedule.Stats{XORBytes: 1}
	require.NoError(t, R6Encode(16, k, data, coding, size, &stats))
	require.Equal(t, schedule.Stats{
		CopyBytes: 2 * size,
		XORBytes:  1 + 2*(k-1)*size,
		GFBytes:   (k - 1) * size,
	}, stats)

	// A failed call leaves the counters alone
	require.Error(t, R6Encode(16, k, data, coding, size+1, &stats))
	require.Equal(t, uint64(2*size), stats.CopyBytes)
}
