package jerasure

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
)

// sourceID maps position i of a dotproduct to its device. A nil srcIDs
// means the data devices in order.
func sourceID(srcIDs []int, i int) int {
	if srcIDs == nil {
		return i
	}
	return srcIDs[i]
}

func checkSources(k int, srcIDs []int, destID int, data, coding [][]byte) error {
	if len(data) < k {
		return errors.Wrapf(ErrBufferSize, "%d data buffers for k=%d", len(data), k)
	}
	devices := k + len(coding)
	if srcIDs != nil && len(srcIDs) != k {
		return errors.Wrapf(ErrInvalidParams, "%d source ids for k=%d", len(srcIDs), k)
	}
	for i := 0; i < k; i++ {
		if id := sourceID(srcIDs, i); id < 0 || id >= devices {
			return errors.Wrapf(ErrInvalidParams, "source %d is device %d", i, id)
		}
	}
	if destID < 0 || destID >= devices {
		return errors.Wrapf(ErrInvalidParams, "destination device %d", destID)
	}
	return nil
}

// MatrixDotprod computes one device as the dot product of a coding row with
// k source devices: dest = sum(row[i] * src[i]) over GF(2^w). srcIDs names
// the source device of every coefficient (nil for data devices 0..k-1) and
// destID the output device. Coefficients of one are applied with plain
// copies and XORs, the others with region multiplication, so w must be 8,
// 16 or 32.
func (c *Context) MatrixDotprod(k int, row []uint32, srcIDs []int, destID int, data, coding [][]byte, size int) error {
	w := c.W()
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(galois.ErrRegionWidth, "matrix dotproduct with w=%d", w)
	}
	if len(row) != k {
		return errors.Wrapf(ErrInvalidParams, "row of %d elements for k=%d", len(row), k)
	}
	if err := checkSources(k, srcIDs, destID, data, coding); err != nil {
		return err
	}
	if size%(w/8) != 0 {
		return errors.Wrapf(ErrBufferSize, "size %d is not a multiple of %d", size, w/8)
	}

	dst := device(k, destID, data, coding)
	if len(dst) < size {
		return errors.Wrapf(ErrBufferSize, "destination has %d bytes, need %d", len(dst), size)
	}
	dst = dst[:size]
	src := func(i int) ([]byte, error) {
		b := device(k, sourceID(srcIDs, i), data, coding)
		if len(b) < size {
			return nil, errors.Wrapf(ErrBufferSize, "source device %d has %d bytes, need %d", sourceID(srcIDs, i), len(b), size)
		}
		return b[:size], nil
	}

	started := false

	// Ones first, they are plain copies and XORs
	for i, e := range row {
		if e != 1 {
			continue
		}
		s, err := src(i)
		if err != nil {
			return err
		}
		if started {
			galois.RegionXOR(s, dst)
			c.stats.XORBytes += uint64(size)
		} else {
			copy(dst, s)
			c.stats.CopyBytes += uint64(size)
			started = true
		}
	}

	for i, e := range row {
		if e == 0 || e == 1 {
			continue
		}
		s, err := src(i)
		if err != nil {
			return err
		}
		if err := c.field.RegionMultiply(s, dst, e, started); err != nil {
			return err
		}
		c.stats.GFBytes += uint64(size)
		started = true
	}

	if !started {
		clear(dst)
	}
	return nil
}

// BitmatrixDotprod computes one device from a w x kw block of bitmatrix rows.
// Every stripe of w*packetSize bytes is handled independently: output packet
// j of the stripe is the XOR of the source packets named by row j. An all
// zero row yields a zero packet.
func (c *Context) BitmatrixDotprod(k int, rows *matrix.BitMatrix, srcIDs []int, destID int, data, coding [][]byte, size, packetSize int) error {
	w := c.W()
	if rows.Rows() != w || rows.Cols() != k*w {
		return errors.Wrapf(matrix.ErrDimension, "dotproduct rows are %dx%d, want %dx%d", rows.Rows(), rows.Cols(), w, k*w)
	}
	if err := checkGeometry(w, size, packetSize); err != nil {
		return err
	}
	if err := checkSources(k, srcIDs, destID, data, coding); err != nil {
		return err
	}

	dst := device(k, destID, data, coding)
	if len(dst) < size {
		return errors.Wrapf(ErrBufferSize, "destination has %d bytes, need %d", len(dst), size)
	}
	srcs := make([][]byte, k)
	for i := range srcs {
		srcs[i] = device(k, sourceID(srcIDs, i), data, coding)
		if len(srcs[i]) < size {
			return errors.Wrapf(ErrBufferSize, "source device %d has %d bytes, need %d", sourceID(srcIDs, i), len(srcs[i]), size)
		}
	}

	cols := make([][]int, w)
	for j := range cols {
		cols[j] = rows.SetColumns(j)
	}

	stripe := w * packetSize
	for off := 0; off < size; off += stripe {
		for j := 0; j < w; j++ {
			out := dst[off+j*packetSize : off+(j+1)*packetSize]
			if len(cols[j]) == 0 {
				clear(out)
				continue
			}
			for n, col := range cols[j] {
				p := off + (col%w)*packetSize
				in := srcs[col/w][p : p+packetSize]
				if n == 0 {
					copy(out, in)
					c.stats.CopyBytes += uint64(packetSize)
				} else {
					galois.RegionXOR(in, out)
					c.stats.XORBytes += uint64(packetSize)
				}
			}
		}
	}
	return nil
}
