package jerasure

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

func checkGeometry(w, size, packetSize int) error {
	return schedule.CheckGeometry(w, size, packetSize)
}

func checkMatrix(k, m int, mat *matrix.Matrix) error {
	if err := checkKM(k, m); err != nil {
		return err
	}
	if mat.Rows() != m || mat.Cols() != k {
		return errors.Wrapf(ErrInvalidParams, "coding matrix is %dx%d, want %dx%d", mat.Rows(), mat.Cols(), m, k)
	}
	return nil
}

func (c *Context) checkBitmatrix(k, m int, bm *matrix.BitMatrix) error {
	if err := checkKM(k, m); err != nil {
		return err
	}
	w := c.W()
	if bm.Rows() != m*w || bm.Cols() != k*w {
		return errors.Wrapf(ErrInvalidParams, "coding bitmatrix is %dx%d, want %dx%d", bm.Rows(), bm.Cols(), m*w, k*w)
	}
	return nil
}

// MatrixEncode computes the m coding devices from the k data devices with
// the m x k coding matrix. size is the number of bytes per device and must be
// a multiple of w/8.
func (c *Context) MatrixEncode(k, m int, mat *matrix.Matrix, data, coding [][]byte, size int) error {
	if err := checkMatrix(k, m, mat); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}

	c.stats.Reset()
	for i := 0; i < m; i++ {
		if err := c.MatrixDotprod(k, mat.Row(i), nil, k+i, data, coding, size); err != nil {
			return err
		}
	}
	return nil
}

// BitmatrixEncode computes the m coding devices with a (m*w) x (k*w)
// bitmatrix, without a compiled schedule. size must be a multiple of
// w*packetSize.
func (c *Context) BitmatrixEncode(k, m int, bm *matrix.BitMatrix, data, coding [][]byte, size, packetSize int) error {
	if err := c.checkBitmatrix(k, m, bm); err != nil {
		return err
	}
	if err := checkGeometry(c.W(), size, packetSize); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}

	c.stats.Reset()
	w := c.W()
	for i := 0; i < m; i++ {
		if err := c.BitmatrixDotprod(k, bm.SubRows(i*w, w), nil, k+i, data, coding, size, packetSize); err != nil {
			return err
		}
	}
	return nil
}

// ScheduleEncode computes the m coding devices by replaying a schedule
// compiled from the coding bitmatrix over every stripe.
func (c *Context) ScheduleEncode(k, m int, s *schedule.Schedule, data, coding [][]byte, size, packetSize int) error {
	c.stats.Reset()
	return schedule.Encode(k, m, c.W(), s, data, coding, size, packetSize, &c.stats)
}

// DoScheduledOperations replays a schedule once against explicit device
// buffers, ptrs[d] holding the packets of device d. Counters accumulate.
func (c *Context) DoScheduledOperations(ptrs [][]byte, s *schedule.Schedule, packetSize int) error {
	return schedule.Do(ptrs, s, packetSize, &c.stats)
}

// DoParity XORs the first size bytes of the k data devices into parity.
func (c *Context) DoParity(k int, data [][]byte, parity []byte, size int) error {
	if k <= 0 || len(data) < k {
		return errors.Wrapf(ErrInvalidParams, "k=%d with %d data buffers", k, len(data))
	}
	if len(parity) < size {
		return errors.Wrapf(ErrBufferSize, "parity has %d bytes, need %d", len(parity), size)
	}
	for i, d := range data[:k] {
		if len(d) < size {
			return errors.Wrapf(ErrBufferSize, "data device %d has %d bytes, need %d", i, len(d), size)
		}
	}

	c.stats.Reset()
	copy(parity[:size], data[0][:size])
	c.stats.CopyBytes += uint64(size)
	for _, d := range data[1:k] {
		galois.RegionXOR(d[:size], parity[:size])
		c.stats.XORBytes += uint64(size)
	}
	return nil
}
