// Package reedsol builds Vandermonde-derived Reed-Solomon coding matrices and
// implements the RAID-6 P+Q encoder.
package reedsol

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

var log = logging.Logger("reedsol")

var (
	// ErrTooLarge is returned when more rows are requested than the field has
	// distinct evaluation points.
	ErrTooLarge = errors.New("reedsol: too many rows for the field")
	// ErrInvalidParams is returned for non-positive dimensions.
	ErrInvalidParams = errors.New("reedsol: rows and columns must be positive")
	// ErrUnsupportedWidth is returned by the RAID-6 helpers for w outside 8, 16 and 32.
	ErrUnsupportedWidth = errors.New("reedsol: RAID-6 needs w of 8, 16 or 32")
	// ErrBufferSize is returned when a RAID-6 region is too short or not word aligned.
	ErrBufferSize = errors.New("reedsol: bad region size")
)

func checkRows(f galois.Field, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return errors.Wrapf(ErrInvalidParams, "rows=%d cols=%d", rows, cols)
	}
	if w := f.W(); w < 30 && rows > 1<<uint(w) {
		return errors.Wrapf(ErrTooLarge, "rows=%d w=%d", rows, w)
	}
	return nil
}

// ExtendedVandermondeMatrix returns the rows x cols matrix whose first row is
// [1 0 ... 0], whose last row is [0 ... 0 1] and whose row i in between holds
// the powers i^0, i^1, ..., i^(cols-1). Any cols rows of it are independent.
func ExtendedVandermondeMatrix(f galois.Field, rows, cols int) (*matrix.Matrix, error) {
	if err := checkRows(f, rows, cols); err != nil {
		return nil, err
	}

	vdm := matrix.New(rows, cols)
	vdm.Set(0, 0, 1)
	if rows == 1 {
		return vdm, nil
	}
	vdm.Set(rows-1, cols-1, 1)

	for i := 1; i < rows-1; i++ {
		p := uint32(1)
		for j := 0; j < cols; j++ {
			vdm.Set(i, j, p)
			p = f.Multiply(p, uint32(i))
		}
	}
	return vdm, nil
}

// BigVandermondeDistributionMatrix turns the extended Vandermonde matrix into
// a systematic distribution matrix using column operations only, so the MDS
// property is kept. The top cols x cols block becomes the identity, row cols
// becomes all ones and every later row starts with a one.
func BigVandermondeDistributionMatrix(f galois.Field, rows, cols int) (*matrix.Matrix, error) {
	if cols >= rows {
		return nil, errors.Wrapf(ErrInvalidParams, "need rows > cols, got rows=%d cols=%d", rows, cols)
	}
	dist, err := ExtendedVandermondeMatrix(f, rows, cols)
	if err != nil {
		return nil, err
	}

	for i := 1; i < cols; i++ {
		// Find a row at or below i with a nonzero element in column i
		pivot := -1
		for j := i; j < rows; j++ {
			if dist.At(j, i) != 0 {
				pivot = j
				break
			}
		}
		if pivot == -1 {
			return nil, errors.Wrapf(matrix.ErrSingular, "no pivot for column %d", i)
		}
		if pivot != i {
			a, b := dist.Row(i), dist.Row(pivot)
			for c := range a {
				a[c], b[c] = b[c], a[c]
			}
		}

		if e := dist.At(i, i); e != 1 {
			inv := f.Inverse(e)
			for r := 0; r < rows; r++ {
				dist.Set(r, i, f.Multiply(inv, dist.At(r, i)))
			}
		}

		// Clear row i outside the diagonal: column j -= e * column i
		for j := 0; j < cols; j++ {
			e := dist.At(i, j)
			if j == i || e == 0 {
				continue
			}
			for r := 0; r < rows; r++ {
				dist.Set(r, j, dist.At(r, j)^f.Multiply(e, dist.At(r, i)))
			}
		}
	}

	// Scale the columns so that the first coding row is all ones
	for j := 0; j < cols; j++ {
		if e := dist.At(cols, j); e != 1 {
			inv := f.Inverse(e)
			for r := cols; r < rows; r++ {
				dist.Set(r, j, f.Multiply(inv, dist.At(r, j)))
			}
		}
	}

	// Scale the remaining coding rows so they start with a one
	for r := cols + 1; r < rows; r++ {
		if e := dist.At(r, 0); e != 1 {
			inv := f.Inverse(e)
			row := dist.Row(r)
			for j := range row {
				row[j] = f.Multiply(row[j], inv)
			}
		}
	}
	return dist, nil
}

// VandermondeCodingMatrix returns the m x k coding rows of the (k+m) x k
// distribution matrix. Row 0 and column 0 are all ones.
func VandermondeCodingMatrix(f galois.Field, k, m int) (*matrix.Matrix, error) {
	if k <= 0 || m <= 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "k=%d m=%d", k, m)
	}
	dist, err := BigVandermondeDistributionMatrix(f, k+m, k)
	if err != nil {
		return nil, err
	}
	rows := make([]int, m)
	for i := range rows {
		rows[i] = k + i
	}
	log.Debugf("vandermonde coding matrix k=%d m=%d w=%d", k, m, f.W())
	return dist.SubRows(rows), nil
}

func checkR6Width(w int) error {
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(ErrUnsupportedWidth, "w=%d", w)
	}
	return nil
}

// R6CodingMatrix returns the 2 x k RAID-6 matrix whose first row is all ones
// and whose second row is 1, 2, 4, ..., 2^(k-1).
func R6CodingMatrix(f galois.Field, k int) (*matrix.Matrix, error) {
	if err := checkR6Width(f.W()); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "k=%d", k)
	}
	if uint64(k) > uint64(galois.Mask(f.W())) {
		return nil, errors.Wrapf(ErrTooLarge, "k=%d w=%d", k, f.W())
	}

	mat := matrix.New(2, k)
	p := uint32(1)
	for j := 0; j < k; j++ {
		mat.Set(0, j, 1)
		mat.Set(1, j, p)
		p = f.Multiply(p, 2)
	}
	return mat, nil
}

// R6Encode computes the RAID-6 parity of k data regions of size bytes: the P
// region is their XOR and the Q region is sum(2^i * data[i]), evaluated by
// Horner's rule from the last device down. The result equals encoding with
// R6CodingMatrix. Moved bytes are added to stats when it is not nil.
func R6Encode(w, k int, data, coding [][]byte, size int, stats *schedule.Stats) error {
	if err := checkR6Width(w); err != nil {
		return err
	}
	if k <= 0 || len(data) < k || len(coding) < 2 {
		return errors.Wrapf(ErrInvalidParams, "k=%d with %d data and %d coding regions", k, len(data), len(coding))
	}
	if size <= 0 || size%(w/8) != 0 {
		return errors.Wrapf(ErrBufferSize, "size=%d w=%d", size, w)
	}
	for i, d := range data[:k] {
		if len(d) < size {
			return errors.Wrapf(ErrBufferSize, "data device %d has %d bytes, need %d", i, len(d), size)
		}
	}
	for i, c := range coding[:2] {
		if len(c) < size {
			return errors.Wrapf(ErrBufferSize, "coding device %d has %d bytes, need %d", i, len(c), size)
		}
	}

	var moved schedule.Stats
	n := uint64(size)
	p, q := coding[0][:size], coding[1][:size]
	copy(p, data[0][:size])
	moved.CopyBytes += n
	for i := 1; i < k; i++ {
		galois.RegionXOR(data[i][:size], p)
		moved.XORBytes += n
	}

	copy(q, data[k-1][:size])
	moved.CopyBytes += n
	for i := k - 2; i >= 0; i-- {
		if err := galois.MultiplyBy2Region(w, q); err != nil {
			return err
		}
		moved.GFBytes += n
		galois.RegionXOR(data[i][:size], q)
		moved.XORBytes += n
	}
	if stats != nil {
		stats.Add(moved)
	}
	return nil
}
