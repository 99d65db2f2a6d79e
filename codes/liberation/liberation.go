// Package liberation builds the minimum-density RAID-6 coding bitmatrices:
// Liberation codes for prime w, Blaum-Roth codes for prime w+1 and the
// Liber8tion code for w = 8. The Liber8tion blocks are not bit-compatible
// with other implementations of that code.
//
// Every bitmatrix returned here is 2w x kw. The first w rows are the parity
// (P) device, one identity block per data device; the last w rows are the Q
// device.
package liberation

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/matrix"
)

var log = logging.Logger("liberation")

var (
	// ErrInvalidWidth is returned when w does not satisfy the primality
	// requirement of the requested code.
	ErrInvalidWidth = errors.New("liberation: invalid w for this code")
	// ErrTooManyDevices is returned when k exceeds w.
	ErrTooManyDevices = errors.New("liberation: k must not exceed w")
)

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func checkK(k, w int) error {
	if k <= 0 || k > w {
		return errors.Wrapf(ErrTooManyDevices, "k=%d w=%d", k, w)
	}
	return nil
}

// parityBlocks returns a 2w x kw bitmatrix whose first w rows hold an
// identity block for every data device.
func parityBlocks(k, w int) *matrix.BitMatrix {
	bm := matrix.NewBitMatrix(2*w, k*w)
	for j := 0; j < k; j++ {
		for i := 0; i < w; i++ {
			bm.Set(i, j*w+i, true)
		}
	}
	return bm
}

// CodingBitmatrix returns the Liberation coding bitmatrix. Block j of the Q
// device is the identity rotated by j columns, plus one extra bit for j > 0.
// w must be a prime greater than 2 and k at most w.
func CodingBitmatrix(k, w int) (*matrix.BitMatrix, error) {
	if w <= 2 || !isPrime(w) {
		return nil, errors.Wrapf(ErrInvalidWidth, "liberation needs a prime w > 2, got %d", w)
	}
	if err := checkK(k, w); err != nil {
		return nil, err
	}

	bm := parityBlocks(k, w)
	for j := 0; j < k; j++ {
		for i := 0; i < w; i++ {
			bm.Set(w+i, j*w+(j+i)%w, true)
		}
		if j > 0 {
			i := (j * ((w - 1) / 2)) % w
			bm.Set(w+i, j*w+(i+j-1)%w, true)
		}
	}
	return bm, nil
}

// BlaumRothCodingBitmatrix returns the Blaum-Roth coding bitmatrix, built
// from multiplication by x^j in the ring of polynomials modulo
// 1 + x + ... + x^w. w+1 must be prime and k at most w.
func BlaumRothCodingBitmatrix(k, w int) (*matrix.BitMatrix, error) {
	p := w + 1
	if w < 2 || !isPrime(p) {
		return nil, errors.Wrapf(ErrInvalidWidth, "blaum-roth needs w+1 prime, got w=%d", w)
	}
	if err := checkK(k, w); err != nil {
		return nil, err
	}

	bm := parityBlocks(k, w)
	for i := 0; i < w; i++ {
		bm.Set(w+i, i, true)
	}
	for j := 1; j < k; j++ {
		for l := 1; l <= w; l++ {
			row := w + l - 1
			if l != p-j {
				bm.Set(row, j*w+(l+j)%p-1, true)
				continue
			}
			bm.Set(row, j*w+j-1, true)
			var c int
			if j%2 == 0 {
				c = j / 2
			} else {
				c = p/2 + 1 + j/2
			}
			bm.Set(row, j*w+c-1, true)
		}
	}
	return bm, nil
}

// liber8tionBlock is the Q block of data device j > 0: an 8-cycle given as
// the column of the one in every row, plus one extra bit. The blocks were
// found by a backtracking search requiring every block, its sum with the
// identity and every pairwise sum to be invertible.
type liber8tionBlock struct {
	cols     [8]int
	row, col int
}

var liber8tionBlocks = [7]liber8tionBlock{
	{cols: [8]int{1, 2, 3, 4, 5, 6, 7, 0}, row: 0, col: 0},
	{cols: [8]int{1, 3, 0, 5, 2, 7, 4, 6}, row: 3, col: 1},
	{cols: [8]int{2, 7, 4, 0, 6, 3, 1, 5}, row: 5, col: 7},
	{cols: [8]int{3, 7, 6, 2, 0, 1, 5, 4}, row: 1, col: 6},
	{cols: [8]int{4, 5, 6, 7, 1, 3, 0, 2}, row: 2, col: 3},
	{cols: [8]int{5, 6, 7, 1, 3, 4, 2, 0}, row: 7, col: 2},
	{cols: [8]int{6, 4, 1, 5, 7, 0, 2, 3}, row: 6, col: 5},
}

// Liber8tionCodingBitmatrix returns the w = 8 minimum-density RAID-6
// bitmatrix for k <= 8 data devices. Its Q row has 8k+k-1 ones.
//
// The Q blocks come from liber8tionBlocks, not from the published Liber8tion
// table. The density and the MDS property are the same, but coding devices
// written here cannot be decoded by another Liber8tion implementation, nor
// the other way round.
func Liber8tionCodingBitmatrix(k int) (*matrix.BitMatrix, error) {
	const w = 8
	if err := checkK(k, w); err != nil {
		return nil, err
	}

	bm := parityBlocks(k, w)
	for i := 0; i < w; i++ {
		bm.Set(w+i, i, true)
	}
	for j := 1; j < k; j++ {
		b := liber8tionBlocks[j-1]
		for i, c := range b.cols {
			bm.Set(w+i, j*w+c, true)
		}
		bm.Set(w+b.row, j*w+b.col, true)
	}
	log.Debugf("liber8tion bitmatrix for k=%d has %d ones", k, bm.OnesCount())
	return bm, nil
}
