package galois

// shiftField implements GF(2^w) by carry-less polynomial multiplication
// followed by reduction modulo the primitive polynomial.
type shiftField struct {
	w    int
	poly uint64 // primitive polynomial including the x^w term
}

func newShiftField(w int) *shiftField {
	return &shiftField{
		w:    w,
		poly: primitivePolynomials[w],
	}
}

func (f *shiftField) W() int {
	return f.w
}

// Multiply returns a * b using polynomial multiplication with reduction
func (f *shiftField) Multiply(a, b uint32) uint32 {
	var prod uint64
	x := uint64(a)
	for y := b; y != 0; y >>= 1 {
		if y&1 != 0 {
			prod ^= x
		}
		x <<= 1
	}
	return f.reduce(prod)
}

// reduce performs polynomial reduction modulo the primitive polynomial
func (f *shiftField) reduce(v uint64) uint32 {
	for i := 2*f.w - 2; i >= f.w; i-- {
		if v&(uint64(1)<<uint(i)) != 0 {
			v ^= f.poly << uint(i-f.w)
		}
	}
	return uint32(v)
}

// Inverse returns a^(2^w - 2), the multiplicative inverse of a
func (f *shiftField) Inverse(a uint32) uint32 {
	if a == 0 {
		panic("galois: division by zero")
	}
	e := uint64(1)<<uint(f.w) - 2
	result := uint32(1)
	base := a
	for e > 0 {
		if e&1 != 0 {
			result = f.Multiply(result, base)
		}
		base = f.Multiply(base, base)
		e >>= 1
	}
	return result
}

func (f *shiftField) Divide(a, b uint32) uint32 {
	if b == 0 {
		panic("galois: division by zero")
	}
	if a == 0 {
		return 0
	}
	return f.Multiply(a, f.Inverse(b))
}

func (f *shiftField) RegionMultiply(src, dst []byte, c uint32, xor bool) error {
	return regionMultiply(f, src, dst, c, xor)
}
