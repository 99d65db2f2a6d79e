package jerasure

import (
	"sort"

	"github.com/pkg/errors"
)

func checkKM(k, m int) error {
	if k <= 0 || m <= 0 {
		return errors.Wrapf(ErrInvalidParams, "k=%d m=%d", k, m)
	}
	return nil
}

// ErasuresToErased turns a list of erased devices into a flag per device.
// Data devices are [0, k) and coding devices [k, k+m). The list may be in any
// order but must not repeat a device or hold more than m entries.
func ErasuresToErased(k, m int, erasures []int) ([]bool, error) {
	if err := checkKM(k, m); err != nil {
		return nil, err
	}
	erased := make([]bool, k+m)
	for _, e := range erasures {
		if e < 0 || e >= k+m {
			return nil, errors.Wrapf(ErrInvalidErasure, "device %d with k=%d m=%d", e, k, m)
		}
		if erased[e] {
			return nil, errors.Wrapf(ErrDuplicateErasure, "device %d", e)
		}
		erased[e] = true
	}
	if len(erasures) > m {
		return nil, errors.Wrapf(ErrTooManyErasures, "%d erasures with m=%d", len(erasures), m)
	}
	return erased, nil
}

// sortedErasures returns a sorted copy of the erasure list.
func sortedErasures(erasures []int) []int {
	s := append([]int(nil), erasures...)
	sort.Ints(s)
	return s
}

// device returns the buffer of device id in the data/coding layout.
func device(k, id int, data, coding [][]byte) []byte {
	if id < k {
		return data[id]
	}
	return coding[id-k]
}

// checkBuffers verifies that the k data and m coding buffers hold at least
// size bytes each.
func checkBuffers(k, m int, data, coding [][]byte, size int) error {
	if len(data) < k || len(coding) < m {
		return errors.Wrapf(ErrBufferSize, "%d data and %d coding buffers for k=%d m=%d", len(data), len(coding), k, m)
	}
	for i := 0; i < k+m; i++ {
		if b := device(k, i, data, coding); len(b) < size {
			return errors.Wrapf(ErrBufferSize, "device %d has %d bytes, need %d", i, len(b), size)
		}
	}
	return nil
}
