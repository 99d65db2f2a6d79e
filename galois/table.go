package galois

import (
	"sync"

	"github.com/pkg/errors"
)

// tableField implements GF(2^w) with log and antilog tables generated by the
// element 2.
type tableField struct {
	w   int
	n   uint32   // order of the multiplicative group, 2^w - 1
	log []uint32 // log[a] for a != 0
	exp []uint32 // exp[i] = 2^i, doubled so log sums never need reduction
}

// Tables are immutable once built, so every Field of the same width shares them.
var tableCache [maxTableWidth + 1]struct {
	once  sync.Once
	field *tableField
	err   error
}

func sharedTableField(w int) (*tableField, error) {
	c := &tableCache[w]
	c.once.Do(func() {
		c.field, c.err = newTableField(w)
	})
	return c.field, c.err
}

func newTableField(w int) (*tableField, error) {
	poly := uint32(primitivePolynomials[w])
	size := uint32(1) << uint(w)
	n := size - 1

	t := &tableField{
		w:   w,
		n:   n,
		log: make([]uint32, size),
		exp: make([]uint32, 2*n),
	}

	x := uint32(1)
	for i := uint32(0); i < n; i++ {
		if i > 0 && x == 1 {
			return nil, errors.Errorf("galois: polynomial %#o is not primitive for w=%d", poly, w)
		}
		t.exp[i] = x
		t.exp[i+n] = x
		t.log[x] = i
		x <<= 1
		if x&size != 0 {
			x ^= poly
		}
	}
	return t, nil
}

func (t *tableField) W() int {
	return t.w
}

func (t *tableField) Multiply(a, b uint32) uint32 {
	if a == 0 || b == 0 {
		return 0
	}
	return t.exp[t.log[a]+t.log[b]]
}

func (t *tableField) Divide(a, b uint32) uint32 {
	if b == 0 {
		panic("galois: division by zero")
	}
	if a == 0 {
		return 0
	}
	return t.exp[t.log[a]+t.n-t.log[b]]
}

func (t *tableField) Inverse(a uint32) uint32 {
	return t.Divide(1, a)
}

func (t *tableField) RegionMultiply(src, dst []byte, c uint32, xor bool) error {
	return regionMultiply(t, src, dst, c, xor)
}
