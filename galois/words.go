package galois

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Word conversion utilities for regions of w-bit symbols

// Words splits a region into little-endian w-bit words, w being 8, 16 or 32.
func Words(region []byte, w int) ([]uint32, error) {
	if w != 8 && w != 16 && w != 32 {
		return nil, errors.Wrapf(ErrRegionWidth, "w=%d", w)
	}
	size := w / 8
	if len(region)%size != 0 {
		return nil, errors.Wrapf(ErrRegionSize, "%d bytes is not a multiple of %d", len(region), size)
	}

	words := make([]uint32, len(region)/size)
	for i := range words {
		switch w {
		case 8:
			words[i] = uint32(region[i])
		case 16:
			words[i] = uint32(binary.LittleEndian.Uint16(region[2*i:]))
		case 32:
			words[i] = binary.LittleEndian.Uint32(region[4*i:])
		}
	}
	return words, nil
}

// PutWords writes words back into region as little-endian w-bit symbols.
// The region must hold exactly len(words) symbols.
func PutWords(region []byte, w int, words []uint32) error {
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(ErrRegionWidth, "w=%d", w)
	}
	size := w / 8
	if len(region) != len(words)*size {
		return errors.Wrapf(ErrRegionSize, "%d bytes for %d words", len(region), len(words))
	}

	for i, v := range words {
		switch w {
		case 8:
			region[i] = byte(v)
		case 16:
			binary.LittleEndian.PutUint16(region[2*i:], uint16(v))
		case 32:
			binary.LittleEndian.PutUint32(region[4*i:], v)
		}
	}
	return nil
}
