package jerasure

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/matrix"
)

// survivors returns the first k devices that are not erased.
func survivors(k int, erased []bool) ([]int, error) {
	ids := make([]int, 0, k)
	for j := 0; j < len(erased) && len(ids) < k; j++ {
		if !erased[j] {
			ids = append(ids, j)
		}
	}
	if len(ids) < k {
		return nil, errors.Wrapf(ErrTooManyErasures, "only %d devices survive, need %d", len(ids), k)
	}
	return ids, nil
}

func checkErased(k, m int, erased []bool) error {
	if len(erased) != k+m {
		return errors.Wrapf(ErrInvalidParams, "%d erasure flags for %d devices", len(erased), k+m)
	}
	return nil
}

// MakeDecodingMatrix returns the k x k matrix expressing the data devices in
// terms of the first k surviving devices, along with those devices' ids.
// Row i of the result applied to the survivors yields data device i.
func (c *Context) MakeDecodingMatrix(k, m int, mat *matrix.Matrix, erased []bool) (*matrix.Matrix, []int, error) {
	if err := checkMatrix(k, m, mat); err != nil {
		return nil, nil, err
	}
	if err := checkErased(k, m, erased); err != nil {
		return nil, nil, err
	}
	ids, err := survivors(k, erased)
	if err != nil {
		return nil, nil, err
	}

	sub := matrix.New(k, k)
	for i, id := range ids {
		if id < k {
			sub.Set(i, id, 1)
		} else {
			copy(sub.Row(i), mat.Row(id-k))
		}
	}
	inv, err := matrix.Invert(c.field, sub)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding matrix for survivors %v", ids)
	}
	return inv, ids, nil
}

// MakeDecodingBitmatrix is MakeDecodingMatrix for a coding bitmatrix. The
// result is (k*w) x (k*w).
func (c *Context) MakeDecodingBitmatrix(k, m int, bm *matrix.BitMatrix, erased []bool) (*matrix.BitMatrix, []int, error) {
	if err := c.checkBitmatrix(k, m, bm); err != nil {
		return nil, nil, err
	}
	if err := checkErased(k, m, erased); err != nil {
		return nil, nil, err
	}
	ids, err := survivors(k, erased)
	if err != nil {
		return nil, nil, err
	}

	w := c.W()
	sub := matrix.NewBitMatrix(k*w, k*w)
	for i, id := range ids {
		for x := 0; x < w; x++ {
			if id < k {
				sub.Set(i*w+x, id*w+x, true)
			} else {
				sub.CopyRow(i*w+x, bm, (id-k)*w+x)
			}
		}
	}
	inv, err := sub.Invert()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding bitmatrix for survivors %v", ids)
	}
	return inv, ids, nil
}

// decodePlan is the part of a decode shared by the matrix and bitmatrix
// variants. With rowKOnes the first coding row is all ones, so the last
// erased data device can be rebuilt by parity from the others once they
// are back, saving a dotproduct with a dense decoding row.
type decodePlan struct {
	erased    []bool
	lastDrive int
	dataLost  int
	invert    bool
}

func newDecodePlan(k, m int, rowKOnes bool, erasures []int) (*decodePlan, error) {
	erased, err := ErasuresToErased(k, m, erasures)
	if err != nil {
		return nil, err
	}

	p := &decodePlan{erased: erased, lastDrive: k}
	for i := 0; i < k; i++ {
		if erased[i] {
			p.dataLost++
			p.lastDrive = i
		}
	}
	if !rowKOnes || erased[k] {
		p.lastDrive = k
	}
	p.invert = p.dataLost > 1 || (p.dataLost > 0 && (!rowKOnes || erased[k]))
	return p, nil
}

// parityIDs lists the sources rebuilding the last erased data device from
// the first coding device: every other data device, then coding device 0.
func (p *decodePlan) parityIDs(k int) []int {
	ids := make([]int, k)
	for i := range ids {
		if i < p.lastDrive {
			ids[i] = i
		} else {
			ids[i] = i + 1
		}
	}
	return ids
}

// MatrixDecode rebuilds the erased devices in place. Erased data devices are
// recovered first through the decoding matrix, then erased coding devices are
// encoded again. Set rowKOnes when the first coding row is all ones.
func (c *Context) MatrixDecode(k, m int, mat *matrix.Matrix, rowKOnes bool, erasures []int, data, coding [][]byte, size int) error {
	if err := checkMatrix(k, m, mat); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}
	p, err := newDecodePlan(k, m, rowKOnes, erasures)
	if err != nil {
		return err
	}
	log.Debugf("matrix decode k=%d m=%d erasures=%v", k, m, erasures)

	c.stats.Reset()
	var dm *matrix.Matrix
	var ids []int
	if p.invert {
		if dm, ids, err = c.MakeDecodingMatrix(k, m, mat, p.erased); err != nil {
			return err
		}
	}

	lost := p.dataLost
	for i := 0; lost > 0 && i < p.lastDrive; i++ {
		if p.erased[i] {
			if err := c.MatrixDotprod(k, dm.Row(i), ids, i, data, coding, size); err != nil {
				return err
			}
			lost--
		}
	}
	if lost > 0 {
		if err := c.MatrixDotprod(k, mat.Row(0), p.parityIDs(k), p.lastDrive, data, coding, size); err != nil {
			return err
		}
	}

	for i := 0; i < m; i++ {
		if p.erased[k+i] {
			if err := c.MatrixDotprod(k, mat.Row(i), nil, k+i, data, coding, size); err != nil {
				return err
			}
		}
	}
	return nil
}

// BitmatrixDecode is MatrixDecode for a coding bitmatrix, operating on
// stripes of w*packetSize bytes. With rowKOnes the first coding device must
// be the plain XOR of the data devices.
func (c *Context) BitmatrixDecode(k, m int, bm *matrix.BitMatrix, rowKOnes bool, erasures []int, data, coding [][]byte, size, packetSize int) error {
	if err := c.checkBitmatrix(k, m, bm); err != nil {
		return err
	}
	if err := checkGeometry(c.W(), size, packetSize); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}
	p, err := newDecodePlan(k, m, rowKOnes, erasures)
	if err != nil {
		return err
	}
	log.Debugf("bitmatrix decode k=%d m=%d erasures=%v", k, m, erasures)

	c.stats.Reset()
	w := c.W()
	var dm *matrix.BitMatrix
	var ids []int
	if p.invert {
		if dm, ids, err = c.MakeDecodingBitmatrix(k, m, bm, p.erased); err != nil {
			return err
		}
	}

	lost := p.dataLost
	for i := 0; lost > 0 && i < p.lastDrive; i++ {
		if p.erased[i] {
			if err := c.BitmatrixDotprod(k, dm.SubRows(i*w, w), ids, i, data, coding, size, packetSize); err != nil {
				return err
			}
			lost--
		}
	}
	if lost > 0 {
		if err := c.BitmatrixDotprod(k, bm.SubRows(0, w), p.parityIDs(k), p.lastDrive, data, coding, size, packetSize); err != nil {
			return err
		}
	}

	for i := 0; i < m; i++ {
		if p.erased[k+i] {
			if err := c.BitmatrixDotprod(k, bm.SubRows(i*w, w), nil, k+i, data, coding, size, packetSize); err != nil {
				return err
			}
		}
	}
	return nil
}
