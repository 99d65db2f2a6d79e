package matrix

import (
	"github.com/ppopth/jerasure-go/galois"
)

// forEachSubset calls fn with every increasing k-subset of [0, n) until fn
// returns false.
func forEachSubset(n, k int, fn func([]int) bool) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// IsMDS reports whether the systematic code with the given m x k coding
// matrix is maximum distance separable: any k of the k identity rows and m
// coding rows form an invertible matrix. The check is exhaustive.
func IsMDS(f galois.Field, coding *Matrix) bool {
	k, m := coding.Cols(), coding.Rows()
	ok := true
	forEachSubset(k+m, k, func(rows []int) bool {
		sub := New(k, k)
		for i, r := range rows {
			if r < k {
				sub.Set(i, r, 1)
			} else {
				copy(sub.Row(i), coding.Row(r-k))
			}
		}
		ok = Invertible(f, sub)
		return ok
	})
	return ok
}

// IsMDSBits is IsMDS for a (w*m) x (w*k) coding bitmatrix, where devices
// are groups of w rows.
func IsMDSBits(coding *BitMatrix, k, m, w int) bool {
	ok := true
	forEachSubset(k+m, k, func(devices []int) bool {
		sub := NewBitMatrix(k*w, k*w)
		for i, d := range devices {
			for x := 0; x < w; x++ {
				if d < k {
					sub.Set(i*w+x, d*w+x, true)
				} else {
					sub.CopyRow(i*w+x, coding, (d-k)*w+x)
				}
			}
		}
		ok = sub.Invertible()
		return ok
	})
	return ok
}
