// Package schedule compiles coding bitmatrices into sequences of packet
// copy/XOR operations and replays them against device buffers.
//
// Devices are addressed the way the coders lay them out: indices [0, k) are
// the data devices and [k, k+m) the devices the schedule writes. Each device
// is split into w packets per stripe; row r of a (m*w) x (k*w) bitmatrix
// produces packet r%w of device k+r/w.
package schedule

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ppopth/jerasure-go/matrix"
)

var log = logging.Logger("schedule")

// Op is a single packet operation: copy (or XOR when XOR is set) packet
// SrcPacket of device SrcDevice into packet DstPacket of device DstDevice.
type Op struct {
	SrcDevice int
	SrcPacket int
	DstDevice int
	DstPacket int
	XOR       bool
}

// Schedule is an ordered list of operations. It is immutable once compiled
// and may be replayed any number of times.
type Schedule struct {
	Ops []Op
}

// Len returns the number of operations.
func (s *Schedule) Len() int {
	return len(s.Ops)
}

// XORCount returns the number of XOR operations.
func (s *Schedule) XORCount() int {
	n := 0
	for _, op := range s.Ops {
		if op.XOR {
			n++
		}
	}
	return n
}

// CopyCount returns the number of copy operations.
func (s *Schedule) CopyCount() int {
	return len(s.Ops) - s.XORCount()
}

// Equal reports whether both schedules hold the same operations.
func (s *Schedule) Equal(o *Schedule) bool {
	if len(s.Ops) != len(o.Ops) {
		return false
	}
	for i := range s.Ops {
		if s.Ops[i] != o.Ops[i] {
			return false
		}
	}
	return true
}

func checkDims(k, m, w int, bm *matrix.BitMatrix) error {
	if k <= 0 || m <= 0 || w <= 0 {
		return errors.Wrapf(ErrInvalidParams, "k=%d m=%d w=%d", k, m, w)
	}
	if bm.Rows() != m*w || bm.Cols() != k*w {
		return errors.Wrapf(matrix.ErrDimension, "bitmatrix is %dx%d, want %dx%d", bm.Rows(), bm.Cols(), m*w, k*w)
	}
	return nil
}

// emitRow appends the operations computing row r from scratch.
func emitRow(ops []Op, k, w int, bm *matrix.BitMatrix, r int) []Op {
	xor := false
	for _, c := range bm.SetColumns(r) {
		ops = append(ops, Op{
			SrcDevice: c / w,
			SrcPacket: c % w,
			DstDevice: k + r/w,
			DstPacket: r % w,
			XOR:       xor,
		})
		xor = true
	}
	return ops
}

// Dumb compiles the bitmatrix literally: every output packet is the XOR of
// the packets named by its row, copying the first and XORing the rest. The
// number of operations equals the number of ones in the bitmatrix. An all
// zero row produces no operation.
func Dumb(k, m, w int, bm *matrix.BitMatrix) (*Schedule, error) {
	if err := checkDims(k, m, w, bm); err != nil {
		return nil, err
	}
	ops := make([]Op, 0, bm.OnesCount())
	for r := 0; r < m*w; r++ {
		ops = emitRow(ops, k, w, bm, r)
	}
	return &Schedule{Ops: ops}, nil
}

// Smart compiles the bitmatrix reusing finished output packets. At each step
// it picks the unfinished row that is cheapest to produce, either from
// scratch or by copying an already finished row and XORing the columns where
// the two rows differ. Only finished rows are referenced, so the schedule has
// no cycles, and every output packet ends up equal to the XOR of its row.
func Smart(k, m, w int, bm *matrix.BitMatrix) (*Schedule, error) {
	if err := checkDims(k, m, w, bm); err != nil {
		return nil, err
	}

	rows := m * w
	diff := make([]int, rows)
	from := make([]int, rows)
	pending := make([]int, rows)
	best := -1
	for r := 0; r < rows; r++ {
		diff[r] = bm.RowOnes(r)
		from[r] = -1
		pending[r] = r
		if best == -1 || diff[r] < diff[best] {
			best = r
		}
	}

	var ops []Op
	for len(pending) > 0 {
		row := best
		for i, r := range pending {
			if r == row {
				pending = append(pending[:i], pending[i+1:]...)
				break
			}
		}

		if src := from[row]; src == -1 {
			ops = emitRow(ops, k, w, bm, row)
		} else {
			ops = append(ops, Op{
				SrcDevice: k + src/w,
				SrcPacket: src % w,
				DstDevice: k + row/w,
				DstPacket: row % w,
			})
			for c := 0; c < k*w; c++ {
				if bm.Get(row, c) != bm.Get(src, c) {
					ops = append(ops, Op{
						SrcDevice: c / w,
						SrcPacket: c % w,
						DstDevice: k + row/w,
						DstPacket: row % w,
						XOR:       true,
					})
				}
			}
		}

		best = -1
		for _, r := range pending {
			if n := 1 + bm.RowDistance(row, bm, r); n < diff[r] {
				diff[r] = n
				from[r] = row
			}
			if best == -1 || diff[r] < diff[best] {
				best = r
			}
		}
	}

	s := &Schedule{Ops: ops}
	log.Desugar().Debug("compiled smart schedule",
		zap.Int("k", k), zap.Int("m", m), zap.Int("w", w),
		zap.Int("ones", bm.OnesCount()), zap.Int("ops", s.Len()), zap.Int("xors", s.XORCount()))
	return s, nil
}
