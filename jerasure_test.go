package jerasure

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppopth/jerasure-go/codes/cauchy"
	"github.com/ppopth/jerasure-go/codes/liberation"
	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

// Test helper functions

func randomDevices(rng *rand.Rand, n, size int) [][]byte {
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, size)
		rng.Read(bufs[i])
	}
	return bufs
}

func zeroDevices(n, size int) [][]byte {
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, size)
	}
	return bufs
}

func cloneDevices(bufs [][]byte) [][]byte {
	out := make([][]byte, len(bufs))
	for i, b := range bufs {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// garble overwrites the erased devices with junk.
func garble(rng *rand.Rand, k int, erasures []int, data, coding [][]byte) {
	for _, e := range erasures {
		rng.Read(device(k, e, data, coding))
	}
}

// forEachErasureSet calls fn with every set of at most max devices out of n.
func forEachErasureSet(n, max int, fn func([]int)) {
	fn(nil)
	for size := 1; size <= max; size++ {
		pattern := make([]int, size)
		for i := range pattern {
			pattern[i] = i
		}
		for {
			fn(append([]int(nil), pattern...))
			if !nextPattern(pattern, n) {
				break
			}
		}
	}
}

func newTestContext(t *testing.T, w int) *Context {
	t.Helper()
	ctx, err := NewContext(w)
	require.NoError(t, err)
	return ctx
}

func TestNewContext(t *testing.T) {
	ctx := newTestContext(t, 8)
	assert.Equal(t, 8, ctx.W())
	assert.Equal(t, 8, ctx.Field().W())

	shared := galois.MustNew(16)
	ctx, err := NewContext(16, WithField(shared))
	require.NoError(t, err)
	assert.Equal(t, shared, ctx.Field())

	_, err = NewContext(8, WithField(shared))
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = NewContext(8, WithField(nil))
	assert.ErrorIs(t, err, ErrInvalidParams)
	_, err = NewContext(0)
	assert.ErrorIs(t, err, galois.ErrInvalidWidth)
	_, err = NewContext(32, WithBackend(galois.BackendTable))
	assert.ErrorIs(t, err, galois.ErrBackend)
}

func TestErasuresToErased(t *testing.T) {
	erased, err := ErasuresToErased(4, 2, []int{5, 1})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, false, false, true}, erased)

	erased, err = ErasuresToErased(4, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, make([]bool, 6), erased)

	_, err = ErasuresToErased(4, 2, []int{0, 1, 2})
	assert.ErrorIs(t, err, ErrTooManyErasures)
	_, err = ErasuresToErased(4, 2, []int{6})
	assert.ErrorIs(t, err, ErrInvalidErasure)
	_, err = ErasuresToErased(4, 2, []int{-1})
	assert.ErrorIs(t, err, ErrInvalidErasure)
	_, err = ErasuresToErased(4, 2, []int{3, 3})
	assert.ErrorIs(t, err, ErrDuplicateErasure)
	_, err = ErasuresToErased(0, 2, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestDoParity(t *testing.T) {
	ctx := newTestContext(t, 8)
	rng := rand.New(rand.NewSource(1))
	data := randomDevices(rng, 3, 16)
	parity := make([]byte, 16)

	require.NoError(t, ctx.DoParity(3, data, parity, 16))
	for i := range parity {
		assert.Equal(t, data[0][i]^data[1][i]^data[2][i], parity[i])
	}
	assert.Equal(t, schedule.Stats{XORBytes: 32, CopyBytes: 16}, ctx.Stats())

	assert.ErrorIs(t, ctx.DoParity(3, data, parity[:8], 16), ErrBufferSize)
	assert.ErrorIs(t, ctx.DoParity(4, data, parity, 16), ErrInvalidParams)
}

func TestMatrixDotprod(t *testing.T) {
	ctx := newTestContext(t, 8)
	f := ctx.Field()
	rng := rand.New(rand.NewSource(2))
	data := randomDevices(rng, 2, 32)
	coding := zeroDevices(2, 32)

	require.NoError(t, ctx.MatrixDotprod(2, []uint32{1, 7}, nil, 2, data, coding, 32))
	for i := 0; i < 32; i++ {
		want := uint32(data[0][i]) ^ f.Multiply(7, uint32(data[1][i]))
		assert.Equal(t, byte(want), coding[0][i])
	}
	assert.Equal(t, schedule.Stats{GFBytes: 32, CopyBytes: 32}, ctx.Stats())

	// Sources may be coding devices
	require.NoError(t, ctx.MatrixDotprod(2, []uint32{1, 1}, []int{0, 2}, 3, data, coding, 32))
	for i := 0; i < 32; i++ {
		assert.Equal(t, data[0][i]^coding[0][i], coding[1][i])
	}

	// An all zero row clears the destination
	require.NoError(t, ctx.MatrixDotprod(2, []uint32{0, 0}, nil, 3, data, coding, 32))
	assert.Equal(t, make([]byte, 32), coding[1])

	assert.ErrorIs(t, ctx.MatrixDotprod(2, []uint32{1}, nil, 2, data, coding, 32), ErrInvalidParams)
	assert.ErrorIs(t, ctx.MatrixDotprod(2, []uint32{1, 1}, []int{0, 4}, 2, data, coding, 32), ErrInvalidParams)
	assert.ErrorIs(t, ctx.MatrixDotprod(2, []uint32{1, 1}, nil, 4, data, coding, 32), ErrInvalidParams)
	assert.ErrorIs(t, ctx.MatrixDotprod(2, []uint32{1, 1}, nil, 2, data, coding, 64), ErrBufferSize)

	ctx5 := newTestContext(t, 5)
	assert.ErrorIs(t, ctx5.MatrixDotprod(2, []uint32{1, 1}, nil, 2, data, coding, 32), galois.ErrRegionWidth)
}

func TestBitmatrixDotprod(t *testing.T) {
	const k, w, packetSize = 2, 4, 8
	ctx := newTestContext(t, w)
	rng := rand.New(rand.NewSource(3))
	data := randomDevices(rng, k, 2*w*packetSize)
	coding := randomDevices(rng, 1, 2*w*packetSize)

	rows := matrix.NewBitMatrix(w, k*w)
	rows.Set(0, 0, true)
	rows.Set(0, w+3, true)
	rows.Set(1, 1, true)
	rows.Set(3, w, true)
	require.NoError(t, ctx.BitmatrixDotprod(k, rows, nil, k, data, coding, len(data[0]), packetSize))

	packet := func(b []byte, stripe, p int) []byte {
		off := stripe*w*packetSize + p*packetSize
		return b[off : off+packetSize]
	}
	for s := 0; s < 2; s++ {
		want := make([]byte, packetSize)
		galois.RegionXOR(packet(data[0], s, 0), want)
		galois.RegionXOR(packet(data[1], s, 3), want)
		assert.Equal(t, want, packet(coding[0], s, 0))
		assert.Equal(t, packet(data[0], s, 1), packet(coding[0], s, 1))
		assert.Equal(t, make([]byte, packetSize), packet(coding[0], s, 2))
		assert.Equal(t, packet(data[1], s, 0), packet(coding[0], s, 3))
	}
	assert.Equal(t, schedule.Stats{XORBytes: 2 * packetSize, CopyBytes: 6 * packetSize}, ctx.Stats())

	assert.ErrorIs(t, ctx.BitmatrixDotprod(k, matrix.NewBitMatrix(w, w), nil, k, data, coding, len(data[0]), packetSize), matrix.ErrDimension)
	assert.ErrorIs(t, ctx.BitmatrixDotprod(k, rows, nil, k, data, coding, 24, packetSize), ErrBufferSize)
	assert.ErrorIs(t, ctx.BitmatrixDotprod(k, rows, nil, k, data, coding, 32, 0), ErrPacketSize)
}

func TestEncodersAgree(t *testing.T) {
	const k, m, w, packetSize = 5, 3, 8, 16
	ctx := newTestContext(t, w)
	f := ctx.Field()
	mat, err := cauchy.GoodGeneralCodingMatrix(f, k, m)
	require.NoError(t, err)
	bm := matrix.ToBitMatrix(f, mat)

	rng := rand.New(rand.NewSource(4))
	size := 3 * w * packetSize
	data := randomDevices(rng, k, size)

	dumbCoding := zeroDevices(m, size)
	smartCoding := zeroDevices(m, size)
	plainCoding := zeroDevices(m, size)
	dumb, err := schedule.Dumb(k, m, w, bm)
	require.NoError(t, err)
	smart, err := schedule.Smart(k, m, w, bm)
	require.NoError(t, err)

	require.NoError(t, ctx.BitmatrixEncode(k, m, bm, data, plainCoding, size, packetSize))
	plainStats := ctx.Stats()
	require.NoError(t, ctx.ScheduleEncode(k, m, dumb, data, dumbCoding, size, packetSize))
	dumbStats := ctx.Stats()
	require.NoError(t, ctx.ScheduleEncode(k, m, smart, data, smartCoding, size, packetSize))
	smartStats := ctx.Stats()

	assert.Equal(t, plainCoding, dumbCoding)
	assert.Equal(t, plainCoding, smartCoding)
	assert.Equal(t, plainStats, dumbStats)
	assert.LessOrEqual(t, smartStats.XORBytes, dumbStats.XORBytes)
	assert.Equal(t, uint64(bm.OnesCount()-m*w)*uint64(3*packetSize), dumbStats.XORBytes)
}

func TestMatrixEncodeStats(t *testing.T) {
	const k, m, size = 4, 2, 64
	ctx := newTestContext(t, 8)
	mat, err := cauchy.OriginalCodingMatrix(ctx.Field(), k, m)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))
	data := randomDevices(rng, k, size)
	coding := zeroDevices(m, size)

	require.NoError(t, ctx.MatrixEncode(k, m, mat, data, coding, size))
	s := ctx.Stats()
	// Every coefficient of a Cauchy matrix is nonzero
	assert.Equal(t, uint64(k*m*size), s.XORBytes+s.GFBytes+s.CopyBytes)
	assert.Equal(t, uint64(m*size), s.CopyBytes)

	// A second pass starts from zero
	require.NoError(t, ctx.MatrixEncode(k, m, mat, data, coding, size))
	assert.Equal(t, s, ctx.Stats())
	ctx.ResetStats()
	assert.Equal(t, schedule.Stats{}, ctx.Stats())

	assert.ErrorIs(t, ctx.MatrixEncode(k, m+1, mat, data, coding, size), ErrInvalidParams)
	assert.ErrorIs(t, ctx.MatrixEncode(k, m, mat, data, coding, 2*size), ErrBufferSize)
	assert.ErrorIs(t, ctx.MatrixEncode(k, m, mat, data[:k-1], coding, size), ErrBufferSize)
}

func TestMakeDecodingMatrix(t *testing.T) {
	const k, m = 4, 2
	ctx := newTestContext(t, 8)
	f := ctx.Field()
	mat, err := cauchy.OriginalCodingMatrix(f, k, m)
	require.NoError(t, err)

	erased, err := ErasuresToErased(k, m, []int{0, 2})
	require.NoError(t, err)
	dm, ids, err := ctx.MakeDecodingMatrix(k, m, mat, erased)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 5}, ids)

	gen := matrix.New(k, k)
	for i, id := range ids {
		if id < k {
			gen.Set(i, id, 1)
		} else {
			copy(gen.Row(i), mat.Row(id-k))
		}
	}
	prod, err := matrix.Multiply(f, dm, gen)
	require.NoError(t, err)
	assert.True(t, matrix.Identity(k).Equal(prod))

	bm := matrix.ToBitMatrix(f, mat)
	dbm, ids, err := ctx.MakeDecodingBitmatrix(k, m, bm, erased)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4, 5}, ids)
	genBits := matrix.ToBitMatrix(f, gen)
	prodBits, err := matrix.MultiplyBits(dbm, genBits)
	require.NoError(t, err)
	assert.True(t, matrix.IdentityBitMatrix(k*8).Equal(prodBits))

	_, _, err = ctx.MakeDecodingMatrix(k, m, mat, make([]bool, k))
	assert.ErrorIs(t, err, ErrInvalidParams)
	tooMany := []bool{true, true, true, false, false, false}
	_, _, err = ctx.MakeDecodingMatrix(k, m, mat, tooMany)
	assert.ErrorIs(t, err, ErrTooManyErasures)
}

// decodeCase encodes random data, then erases and rebuilds every pattern of
// at most m devices with the decode function.
func decodeCase(t *testing.T, k, m, size int, encode func(data, coding [][]byte) error, decode func(erasures []int, data, coding [][]byte) error) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(k*100 + m)))
	data := randomDevices(rng, k, size)
	coding := zeroDevices(m, size)
	require.NoError(t, encode(data, coding))
	wantData, wantCoding := cloneDevices(data), cloneDevices(coding)

	forEachErasureSet(k+m, m, func(erasures []int) {
		garble(rng, k, erasures, data, coding)
		require.NoError(t, decode(erasures, data, coding), "erasures %v", erasures)
		require.Equal(t, wantData, data, "erasures %v", erasures)
		require.Equal(t, wantCoding, coding, "erasures %v", erasures)
	})
}

func TestMatrixDecode(t *testing.T) {
	for _, w := range []int{8, 16, 32} {
		ctx := newTestContext(t, w)
		f := ctx.Field()
		const k, m = 5, 3
		size := 8 * w

		good, err := cauchy.GoodGeneralCodingMatrix(f, k, m)
		require.NoError(t, err)
		orig, err := cauchy.OriginalCodingMatrix(f, k, m)
		require.NoError(t, err)

		for _, tc := range []struct {
			mat      *matrix.Matrix
			rowKOnes bool
		}{
			{good, true},
			{good, false},
			{orig, false},
		} {
			decodeCase(t, k, m, size,
				func(data, coding [][]byte) error {
					return ctx.MatrixEncode(k, m, tc.mat, data, coding, size)
				},
				func(erasures []int, data, coding [][]byte) error {
					return ctx.MatrixDecode(k, m, tc.mat, tc.rowKOnes, erasures, data, coding, size)
				})
		}
	}
}

func TestBitmatrixDecode(t *testing.T) {
	const k, m, w, packetSize = 4, 3, 8, 8
	ctx := newTestContext(t, w)
	f := ctx.Field()
	size := 2 * w * packetSize

	good, err := cauchy.GoodGeneralCodingMatrix(f, k, m)
	require.NoError(t, err)
	bm := matrix.ToBitMatrix(f, good)
	for _, rowKOnes := range []bool{true, false} {
		decodeCase(t, k, m, size,
			func(data, coding [][]byte) error {
				return ctx.BitmatrixEncode(k, m, bm, data, coding, size, packetSize)
			},
			func(erasures []int, data, coding [][]byte) error {
				return ctx.BitmatrixDecode(k, m, bm, rowKOnes, erasures, data, coding, size, packetSize)
			})
	}
}

func TestScheduleDecodeLazy(t *testing.T) {
	for _, tc := range []struct {
		name string
		k, m int
		w    int
		bm   func(f galois.Field) (*matrix.BitMatrix, error)
	}{
		{"cauchy", 4, 3, 5, func(f galois.Field) (*matrix.BitMatrix, error) {
			mat, err := cauchy.OriginalCodingMatrix(f, 4, 3)
			if err != nil {
				return nil, err
			}
			return matrix.ToBitMatrix(f, mat), nil
		}},
		{"liberation", 5, 2, 7, func(galois.Field) (*matrix.BitMatrix, error) {
			return liberation.CodingBitmatrix(5, 7)
		}},
		{"blaum_roth", 4, 2, 6, func(galois.Field) (*matrix.BitMatrix, error) {
			return liberation.BlaumRothCodingBitmatrix(4, 6)
		}},
		{"liber8tion", 8, 2, 8, func(galois.Field) (*matrix.BitMatrix, error) {
			return liberation.Liber8tionCodingBitmatrix(8)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			const packetSize = 8
			ctx := newTestContext(t, tc.w)
			bm, err := tc.bm(ctx.Field())
			require.NoError(t, err)
			s, err := schedule.Smart(tc.k, tc.m, tc.w, bm)
			require.NoError(t, err)
			size := 2 * tc.w * packetSize

			for _, smart := range []bool{true, false} {
				decodeCase(t, tc.k, tc.m, size,
					func(data, coding [][]byte) error {
						return ctx.ScheduleEncode(tc.k, tc.m, s, data, coding, size, packetSize)
					},
					func(erasures []int, data, coding [][]byte) error {
						return ctx.ScheduleDecodeLazy(tc.k, tc.m, bm, erasures, data, coding, size, packetSize, smart)
					})
			}
		})
	}
}

func TestCauchyLazyDecodeScenario(t *testing.T) {
	const k, m, w, size = 4, 2, 8, 8
	ctx := newTestContext(t, w)
	mat, err := cauchy.OriginalCodingMatrix(ctx.Field(), k, m)
	require.NoError(t, err)
	bm := matrix.ToBitMatrix(ctx.Field(), mat)

	rng := rand.New(rand.NewSource(6))
	data := randomDevices(rng, k, size)
	coding := zeroDevices(m, size)
	require.NoError(t, ctx.BitmatrixEncode(k, m, bm, data, coding, size, 1))
	wantData, wantCoding := cloneDevices(data), cloneDevices(coding)

	lostData, lostCoding := rng.Intn(k), rng.Intn(m)
	clear(data[lostData])
	clear(coding[lostCoding])
	require.NoError(t, ctx.ScheduleDecodeLazy(k, m, bm, []int{lostData, k + lostCoding}, data, coding, size, 1, true))
	assert.Equal(t, wantData, data)
	assert.Equal(t, wantCoding, coding)

	err = ctx.ScheduleDecodeLazy(k, m, bm, []int{0, 1, k}, data, coding, size, 1, true)
	assert.ErrorIs(t, err, ErrTooManyErasures)
	err = ctx.MatrixDecode(k, m, mat, false, []int{0, 1, k}, data, coding, size)
	assert.ErrorIs(t, err, ErrTooManyErasures)
	assert.Equal(t, wantData, data)
}

func TestGenerateDecodingSchedule(t *testing.T) {
	const k, m, w = 6, 3, 8
	ctx := newTestContext(t, w)
	mat, err := cauchy.GoodGeneralCodingMatrix(ctx.Field(), k, m)
	require.NoError(t, err)
	bm := matrix.ToBitMatrix(ctx.Field(), mat)

	s, err := ctx.GenerateDecodingSchedule(k, m, bm, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	forEachErasureSet(k+m, m, func(erasures []int) {
		dumb, err := ctx.GenerateDecodingSchedule(k, m, bm, erasures, false)
		require.NoError(t, err)
		smart, err := ctx.GenerateDecodingSchedule(k, m, bm, erasures, true)
		require.NoError(t, err)
		assert.LessOrEqual(t, smart.XORCount(), dumb.XORCount(), "erasures %v", erasures)
		if len(erasures) > 0 {
			assert.NotZero(t, smart.Len(), "erasures %v", erasures)
		}
	})

	_, err = ctx.GenerateDecodingSchedule(k, m, bm, []int{0, 0}, true)
	assert.ErrorIs(t, err, ErrDuplicateErasure)
	_, err = ctx.GenerateDecodingSchedule(k, m+1, bm, []int{0}, true)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestDecodeLayout(t *testing.T) {
	erased := []bool{false, true, false, true, false, true, false}
	l, err := newDecodeLayout(4, 3, erased)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 2, 6, 1, 3, 5}, l.rowIDs)
	assert.Equal(t, []int{0, 4, 2, 5, 1, 6, 3}, l.indToRow)
	assert.Equal(t, 2, l.dataLost)
	assert.Equal(t, 1, l.codeLost)
}

func TestDoScheduledOperations(t *testing.T) {
	const packetSize = 8
	ctx := newTestContext(t, 2)
	rng := rand.New(rand.NewSource(7))
	ptrs := randomDevices(rng, 3, 2*packetSize)
	s := &schedule.Schedule{Ops: []schedule.Op{
		{SrcDevice: 0, SrcPacket: 0, DstDevice: 2, DstPacket: 0},
		{SrcDevice: 1, SrcPacket: 1, DstDevice: 2, DstPacket: 0, XOR: true},
	}}

	ctx.ResetStats()
	require.NoError(t, ctx.DoScheduledOperations(ptrs, s, packetSize))
	require.NoError(t, ctx.DoScheduledOperations(ptrs, s, packetSize))
	for i := 0; i < packetSize; i++ {
		assert.Equal(t, ptrs[0][i]^ptrs[1][packetSize+i], ptrs[2][i])
	}
	// Counters accumulate across calls
	assert.Equal(t, schedule.Stats{XORBytes: 2 * packetSize, CopyBytes: 2 * packetSize}, ctx.Stats())
}
