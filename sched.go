package jerasure

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

// decodeLayout maps devices to the positions a decoding schedule uses.
// Positions [0, k) are the inputs: surviving data device i stays at i and an
// erased data device is replaced by the next unused surviving coding device.
// Positions from k on are the outputs: erased data devices, then erased
// coding devices.
type decodeLayout struct {
	rowIDs   []int // device at each position
	indToRow []int // position of each device, -1 when unused
	dataLost int
	codeLost int
}

func newDecodeLayout(k, m int, erased []bool) (*decodeLayout, error) {
	l := &decodeLayout{
		rowIDs:   make([]int, 0, k+m),
		indToRow: make([]int, k+m),
	}
	for i := range l.indToRow {
		l.indToRow[i] = -1
	}

	var outputs []int
	next := k
	for i := 0; i < k; i++ {
		if !erased[i] {
			l.rowIDs = append(l.rowIDs, i)
			continue
		}
		for next < k+m && erased[next] {
			next++
		}
		if next == k+m {
			return nil, errors.Wrap(ErrTooManyErasures, "not enough surviving coding devices")
		}
		l.rowIDs = append(l.rowIDs, next)
		next++
		outputs = append(outputs, i)
		l.dataLost++
	}
	for i := k; i < k+m; i++ {
		if erased[i] {
			outputs = append(outputs, i)
			l.codeLost++
		}
	}
	l.rowIDs = append(l.rowIDs, outputs...)
	for pos, id := range l.rowIDs {
		l.indToRow[id] = pos
	}
	return l, nil
}

// devices arranges the buffers by position.
func (l *decodeLayout) devices(k int, data, coding [][]byte) [][]byte {
	ptrs := make([][]byte, len(l.rowIDs))
	for pos, id := range l.rowIDs {
		ptrs[pos] = device(k, id, data, coding)
	}
	return ptrs
}

// decodingBitmatrix builds the ((dataLost+codeLost)*w) x (k*w) bitmatrix
// computing every erased device from the input positions of the layout.
func decodingBitmatrix(k, w int, bm *matrix.BitMatrix, l *decodeLayout) (*matrix.BitMatrix, error) {
	out := matrix.NewBitMatrix((l.dataLost+l.codeLost)*w, k*w)

	if l.dataLost > 0 {
		sub := matrix.NewBitMatrix(k*w, k*w)
		for i := 0; i < k; i++ {
			id := l.rowIDs[i]
			for x := 0; x < w; x++ {
				if id == i {
					sub.Set(i*w+x, i*w+x, true)
				} else {
					sub.CopyRow(i*w+x, bm, (id-k)*w+x)
				}
			}
		}
		inv, err := sub.Invert()
		if err != nil {
			return nil, errors.Wrapf(err, "decoding bitmatrix for inputs %v", l.rowIDs[:k])
		}
		for i := 0; i < k; i++ {
			if l.rowIDs[i] == i {
				continue
			}
			pos := l.indToRow[i] - k
			for x := 0; x < w; x++ {
				out.CopyRow(pos*w+x, inv, i*w+x)
			}
		}
	}

	for x := 0; x < l.codeLost; x++ {
		drive := l.rowIDs[k+l.dataLost+x] - k
		base := (l.dataLost + x) * w
		for y := 0; y < w; y++ {
			out.CopyRow(base+y, bm, drive*w+y)
		}

		// Erased data columns are not inputs, substitute their decoding rows.
		// All of them are cleared before any substitution.
		for i := 0; i < k; i++ {
			if l.rowIDs[i] == i {
				continue
			}
			for y := 0; y < w; y++ {
				for z := 0; z < w; z++ {
					out.Set(base+y, i*w+z, false)
				}
			}
		}
		for i := 0; i < k; i++ {
			if l.rowIDs[i] == i {
				continue
			}
			pos := l.indToRow[i] - k
			for y := 0; y < w; y++ {
				for z := 0; z < w; z++ {
					if bm.Get(drive*w+y, i*w+z) {
						out.XorRow(base+y, out, pos*w+z)
					}
				}
			}
		}
	}
	return out, nil
}

func generateDecodingSchedule(k, m, w int, bm *matrix.BitMatrix, erased []bool, smart bool) (*schedule.Schedule, error) {
	l, err := newDecodeLayout(k, m, erased)
	if err != nil {
		return nil, err
	}
	if l.dataLost+l.codeLost == 0 {
		return &schedule.Schedule{}, nil
	}
	dbm, err := decodingBitmatrix(k, w, bm, l)
	if err != nil {
		return nil, err
	}
	if smart {
		return schedule.Smart(k, l.dataLost+l.codeLost, w, dbm)
	}
	return schedule.Dumb(k, l.dataLost+l.codeLost, w, dbm)
}

// GenerateDecodingSchedule compiles the schedule rebuilding the given
// erasures. It reads the devices arranged as a decoding layout: surviving
// inputs at positions [0, k), with every erased data device replaced by the
// next surviving coding device, and the erased devices from position k on.
func (c *Context) GenerateDecodingSchedule(k, m int, bm *matrix.BitMatrix, erasures []int, smart bool) (*schedule.Schedule, error) {
	if err := c.checkBitmatrix(k, m, bm); err != nil {
		return nil, err
	}
	erased, err := ErasuresToErased(k, m, erasures)
	if err != nil {
		return nil, err
	}
	return generateDecodingSchedule(k, m, c.W(), bm, erased, smart)
}

// runDecodingSchedule zeroes the erased buffers and replays s over the
// decoding layout of the erasures.
func (c *Context) runDecodingSchedule(k, m int, s *schedule.Schedule, erased []bool, data, coding [][]byte, size, packetSize int) error {
	l, err := newDecodeLayout(k, m, erased)
	if err != nil {
		return err
	}
	for i, e := range erased {
		if e {
			clear(device(k, i, data, coding)[:size])
		}
	}
	c.stats.Reset()
	return schedule.Run(l.devices(k, data, coding), s, c.W(), size, packetSize, &c.stats)
}

// ScheduleDecodeLazy rebuilds the erased devices with a decoding schedule
// compiled for this erasure pattern only.
func (c *Context) ScheduleDecodeLazy(k, m int, bm *matrix.BitMatrix, erasures []int, data, coding [][]byte, size, packetSize int, smart bool) error {
	if err := c.checkBitmatrix(k, m, bm); err != nil {
		return err
	}
	if err := checkGeometry(c.W(), size, packetSize); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}
	erased, err := ErasuresToErased(k, m, erasures)
	if err != nil {
		return err
	}

	s, err := generateDecodingSchedule(k, m, c.W(), bm, erased, smart)
	if err != nil {
		return err
	}
	log.Debugf("lazy decode k=%d m=%d erasures=%v with %d operations", k, m, erasures, s.Len())
	return c.runDecodingSchedule(k, m, s, erased, data, coding, size, packetSize)
}

// ScheduleDecodeCache rebuilds the erased devices with a schedule taken from
// the cache, compiling and storing it on a miss.
func (c *Context) ScheduleDecodeCache(k, m int, cache *ScheduleCache, erasures []int, data, coding [][]byte, size, packetSize int) error {
	if cache.k != k || cache.m != m || cache.w != c.W() {
		return errors.Wrapf(ErrInvalidParams, "cache built for k=%d m=%d w=%d", cache.k, cache.m, cache.w)
	}
	if err := checkGeometry(c.W(), size, packetSize); err != nil {
		return err
	}
	if err := checkBuffers(k, m, data, coding, size); err != nil {
		return err
	}
	erased, err := ErasuresToErased(k, m, erasures)
	if err != nil {
		return err
	}

	s, err := cache.Lookup(erasures)
	if err != nil {
		return err
	}
	return c.runDecodingSchedule(k, m, s, erased, data, coding, size, packetSize)
}
