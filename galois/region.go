package galois

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// regionMultiply is shared by every backend. Products are looked up in split
// tables built once per call: a single 256-entry table for w=8, and one
// table per input byte for w=16 and w=32.
func regionMultiply(f Field, src, dst []byte, c uint32, xor bool) error {
	w := f.W()
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(ErrRegionWidth, "w=%d", w)
	}
	if len(src) != len(dst) || len(src)%(w/8) != 0 {
		return errors.Wrapf(ErrRegionSize, "src %d bytes, dst %d bytes, w=%d", len(src), len(dst), w)
	}

	switch {
	case c == 0:
		if !xor {
			clear(dst)
		}
		return nil
	case c == 1:
		if xor {
			RegionXOR(src, dst)
		} else {
			copy(dst, src)
		}
		return nil
	}

	switch w {
	case 8:
		var tbl [256]byte
		for b := range tbl {
			tbl[b] = byte(f.Multiply(c, uint32(b)))
		}
		if xor {
			for i, b := range src {
				dst[i] ^= tbl[b]
			}
		} else {
			for i, b := range src {
				dst[i] = tbl[b]
			}
		}
	case 16:
		var lo, hi [256]uint16
		for b := range lo {
			lo[b] = uint16(f.Multiply(c, uint32(b)))
			hi[b] = uint16(f.Multiply(c, uint32(b)<<8))
		}
		for i := 0; i < len(src); i += 2 {
			x := binary.LittleEndian.Uint16(src[i:])
			p := lo[x&0xff] ^ hi[x>>8]
			if xor {
				p ^= binary.LittleEndian.Uint16(dst[i:])
			}
			binary.LittleEndian.PutUint16(dst[i:], p)
		}
	case 32:
		var split [4][256]uint32
		for s := range split {
			for b := range split[s] {
				split[s][b] = f.Multiply(c, uint32(b)<<uint(8*s))
			}
		}
		for i := 0; i < len(src); i += 4 {
			x := binary.LittleEndian.Uint32(src[i:])
			p := split[0][x&0xff] ^ split[1][(x>>8)&0xff] ^ split[2][(x>>16)&0xff] ^ split[3][x>>24]
			if xor {
				p ^= binary.LittleEndian.Uint32(dst[i:])
			}
			binary.LittleEndian.PutUint32(dst[i:], p)
		}
	}
	return nil
}

// RegionXOR XORs src into dst. Only the common prefix of the two slices is
// touched.
func RegionXOR(src, dst []byte) {
	n := min(len(src), len(dst))
	i := 0
	for ; i+8 <= n; i += 8 {
		v := binary.LittleEndian.Uint64(src[i:]) ^ binary.LittleEndian.Uint64(dst[i:])
		binary.LittleEndian.PutUint64(dst[i:], v)
	}
	for ; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// MultiplyBy2Region multiplies every w-bit word of region by 2 in place, for
// w of 8, 16 or 32. It is the Horner step used by RAID-6 Q parity.
func MultiplyBy2Region(w int, region []byte) error {
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(ErrRegionWidth, "w=%d", w)
	}
	if len(region)%(w/8) != 0 {
		return errors.Wrapf(ErrRegionSize, "%d bytes, w=%d", len(region), w)
	}

	// The reduction constant is the primitive polynomial without its x^w term.
	prim := uint32(primitivePolynomials[w] & uint64(Mask(w)))
	switch w {
	case 8:
		for i, b := range region {
			v := uint32(b) << 1
			if b&0x80 != 0 {
				v ^= prim
			}
			region[i] = byte(v)
		}
	case 16:
		for i := 0; i < len(region); i += 2 {
			x := binary.LittleEndian.Uint16(region[i:])
			v := x << 1
			if x&0x8000 != 0 {
				v ^= uint16(prim)
			}
			binary.LittleEndian.PutUint16(region[i:], v)
		}
	case 32:
		for i := 0; i < len(region); i += 4 {
			x := binary.LittleEndian.Uint32(region[i:])
			v := x << 1
			if x&0x80000000 != 0 {
				v ^= prim
			}
			binary.LittleEndian.PutUint32(region[i:], v)
		}
	}
	return nil
}
