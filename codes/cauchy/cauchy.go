// Package cauchy builds Cauchy Reed-Solomon coding matrices over GF(2^w).
//
// Entry (i, j) of a Cauchy matrix is 1/(x_i XOR y_j) for disjoint sets X and
// Y, so every square submatrix is invertible and the systematic code built
// from it is MDS.
package cauchy

import (
	"sort"

	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
)

var log = logging.Logger("cauchy")

var (
	// ErrTooLarge is returned when k+m exceeds the 2^w elements of the field.
	ErrTooLarge = errors.New("cauchy: k+m exceeds field size")
	// ErrInvalidParams is returned for non-positive k or m.
	ErrInvalidParams = errors.New("cauchy: k and m must be positive")
	// ErrInvalidXY is returned when X and Y are not disjoint sets of field elements.
	ErrInvalidXY = errors.New("cauchy: X and Y must be distinct, disjoint field elements")
)

// goodRowMaxWidth bounds the exhaustive search for the lowest-density
// second row when m == 2.
const goodRowMaxWidth = 12

func checkParams(f galois.Field, k, m int) error {
	if k <= 0 || m <= 0 {
		return errors.Wrapf(ErrInvalidParams, "k=%d m=%d", k, m)
	}
	if w := f.W(); w < 31 && k+m > 1<<uint(w) {
		return errors.Wrapf(ErrTooLarge, "k=%d m=%d w=%d", k, m, w)
	}
	return nil
}

// OriginalCodingMatrix returns the m x k Cauchy matrix with X = [0, m) and
// Y = [m, m+k).
func OriginalCodingMatrix(f galois.Field, k, m int) (*matrix.Matrix, error) {
	if err := checkParams(f, k, m); err != nil {
		return nil, err
	}
	mat := matrix.New(m, k)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			mat.Set(i, j, f.Divide(1, uint32(i)^uint32(m+j)))
		}
	}
	return mat, nil
}

// XYCodingMatrix returns the m x k Cauchy matrix 1/(X[i] XOR Y[j]). X must hold
// m elements and Y k elements, all distinct and inside the field.
func XYCodingMatrix(f galois.Field, k, m int, x, y []uint32) (*matrix.Matrix, error) {
	if err := checkParams(f, k, m); err != nil {
		return nil, err
	}
	if len(x) != m || len(y) != k {
		return nil, errors.Wrapf(ErrInvalidXY, "len(X)=%d len(Y)=%d for k=%d m=%d", len(x), len(y), k, m)
	}

	mask := galois.Mask(f.W())
	seen := make(map[uint32]struct{}, k+m)
	for _, v := range append(append([]uint32(nil), x...), y...) {
		if v > mask {
			return nil, errors.Wrapf(ErrInvalidXY, "element %d outside GF(2^%d)", v, f.W())
		}
		if _, dup := seen[v]; dup {
			return nil, errors.Wrapf(ErrInvalidXY, "element %d repeated", v)
		}
		seen[v] = struct{}{}
	}

	mat := matrix.New(m, k)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			mat.Set(i, j, f.Divide(1, x[i]^y[j]))
		}
	}
	return mat, nil
}

// NOnes returns the number of ones in the w x w bit matrix of element e,
// which is the XOR cost of multiplying by e in a bitmatrix code.
func NOnes(f galois.Field, e uint32) int {
	return matrix.ElementBitMatrix(f, e).OnesCount()
}

// TotalOnes returns the number of ones in the bitmatrix expansion of mat.
func TotalOnes(f galois.Field, mat *matrix.Matrix) int {
	n := 0
	for _, e := range mat.Data() {
		n += NOnes(f, e)
	}
	return n
}

// ImproveCodingMatrix lowers the density of a Cauchy coding matrix in place
// without affecting its MDS property. Every column is divided by its element
// in row 0, making row 0 all ones; every later row is then divided by the
// element that minimises its total number of ones.
func ImproveCodingMatrix(f galois.Field, mat *matrix.Matrix) {
	k, m := mat.Cols(), mat.Rows()

	for j := 0; j < k; j++ {
		if e := mat.At(0, j); e != 1 && e != 0 {
			scale := f.Inverse(e)
			for i := 0; i < m; i++ {
				mat.Set(i, j, f.Multiply(mat.At(i, j), scale))
			}
		}
	}

	for i := 1; i < m; i++ {
		row := mat.Row(i)
		best := 0
		for _, e := range row {
			best += NOnes(f, e)
		}
		bestIndex := -1
		for j, e := range row {
			if e == 1 || e == 0 {
				continue
			}
			scale := f.Inverse(e)
			n := 0
			for _, x := range row {
				n += NOnes(f, f.Multiply(x, scale))
			}
			if n < best {
				best = n
				bestIndex = j
			}
		}
		if bestIndex != -1 {
			scale := f.Inverse(row[bestIndex])
			for j := range row {
				row[j] = f.Multiply(row[j], scale)
			}
		}
	}
}

// GoodGeneralCodingMatrix returns a low-density MDS Cauchy-derived coding
// matrix. For m == 2 on small fields, row 0 is all ones and row 1 holds the k
// distinct nonzero elements with the fewest ones; otherwise the original
// Cauchy matrix is improved with ImproveCodingMatrix.
func GoodGeneralCodingMatrix(f galois.Field, k, m int) (*matrix.Matrix, error) {
	if err := checkParams(f, k, m); err != nil {
		return nil, err
	}
	if m == 2 && f.W() <= goodRowMaxWidth && k < 1<<uint(f.W()) {
		return goodRaid6Matrix(f, k), nil
	}

	mat, err := OriginalCodingMatrix(f, k, m)
	if err != nil {
		return nil, err
	}
	ImproveCodingMatrix(f, mat)
	return mat, nil
}

// goodRaid6Matrix builds the two-row matrix [1 ... 1; e_0 ... e_{k-1}] where the
// e_j are the k nonzero elements of lowest density. Any two distinct nonzero
// elements make every 2x2 minor nonzero, so the code is MDS.
func goodRaid6Matrix(f galois.Field, k int) *matrix.Matrix {
	n := int(galois.Mask(f.W()))
	elems := make([]uint32, n)
	ones := make([]int, n+1)
	for i := range elems {
		e := uint32(i + 1)
		elems[i] = e
		ones[e] = NOnes(f, e)
	}
	sort.SliceStable(elems, func(a, b int) bool {
		return ones[elems[a]] < ones[elems[b]]
	})

	mat := matrix.New(2, k)
	for j := 0; j < k; j++ {
		mat.Set(0, j, 1)
		mat.Set(1, j, elems[j])
	}
	log.Debugf("good RAID-6 row for k=%d w=%d uses %d ones", k, f.W(), TotalOnes(f, mat))
	return mat
}
