package schedule

import (
	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/galois"
)

var (
	// ErrInvalidParams is returned for non-positive k, m or w.
	ErrInvalidParams = errors.New("schedule: k, m and w must be positive")
	// ErrBufferSize is returned when a buffer size is not a multiple of
	// w*packetSize or a device buffer is too short.
	ErrBufferSize = errors.New("schedule: bad buffer size")
	// ErrPacketSize is returned for a non-positive packet size.
	ErrPacketSize = errors.New("schedule: packet size must be positive")
	// ErrDevice is returned when an operation names a device the caller did
	// not supply.
	ErrDevice = errors.New("schedule: operation references a missing device")
)

// Stats counts the bytes moved by encode and decode passes.
type Stats struct {
	XORBytes  uint64 `json:"xor_bytes"`
	GFBytes   uint64 `json:"gf_bytes"`
	CopyBytes uint64 `json:"copy_bytes"`
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	*s = Stats{}
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.XORBytes += o.XORBytes
	s.GFBytes += o.GFBytes
	s.CopyBytes += o.CopyBytes
}

// check verifies that every packet the schedule touches lies inside ptrs.
func (s *Schedule) check(ptrs [][]byte, packetSize int) error {
	if packetSize <= 0 {
		return errors.Wrapf(ErrPacketSize, "packet size %d", packetSize)
	}
	need := func(dev, packet int) error {
		if dev < 0 || dev >= len(ptrs) || ptrs[dev] == nil {
			return errors.Wrapf(ErrDevice, "device %d of %d", dev, len(ptrs))
		}
		if packet < 0 {
			return errors.Wrapf(ErrBufferSize, "device %d: negative packet %d", dev, packet)
		}
		if end := (packet + 1) * packetSize; len(ptrs[dev]) < end {
			return errors.Wrapf(ErrBufferSize, "device %d has %d bytes, packet %d needs %d", dev, len(ptrs[dev]), packet, end)
		}
		return nil
	}
	for _, op := range s.Ops {
		if err := need(op.SrcDevice, op.SrcPacket); err != nil {
			return err
		}
		if err := need(op.DstDevice, op.DstPacket); err != nil {
			return err
		}
	}
	return nil
}

// run replays the schedule without validation.
func (s *Schedule) run(ptrs [][]byte, packetSize int, stats *Stats) {
	var xored, copied uint64
	for _, op := range s.Ops {
		src := ptrs[op.SrcDevice][op.SrcPacket*packetSize : (op.SrcPacket+1)*packetSize]
		dst := ptrs[op.DstDevice][op.DstPacket*packetSize : (op.DstPacket+1)*packetSize]
		if op.XOR {
			galois.RegionXOR(src, dst)
			xored += uint64(packetSize)
		} else {
			copy(dst, src)
			copied += uint64(packetSize)
		}
	}
	if stats != nil {
		stats.XORBytes += xored
		stats.CopyBytes += copied
	}
}

// Do replays the schedule once against ptrs, where ptrs[d] holds the packets
// of device d for a single stripe. Byte counts are added to stats when it is
// not nil.
func Do(ptrs [][]byte, s *Schedule, packetSize int, stats *Stats) error {
	if err := s.check(ptrs, packetSize); err != nil {
		return err
	}
	s.run(ptrs, packetSize, stats)
	return nil
}

// CheckGeometry validates a buffer size against the stripe size w*packetSize.
func CheckGeometry(w, size, packetSize int) error {
	if packetSize <= 0 {
		return errors.Wrapf(ErrPacketSize, "packet size %d", packetSize)
	}
	if size <= 0 || size%(w*packetSize) != 0 {
		return errors.Wrapf(ErrBufferSize, "size %d is not a multiple of w*packetSize = %d", size, w*packetSize)
	}
	return nil
}

// Encode runs the schedule over every stripe of size bytes of the k data and
// m coding buffers. size must be a multiple of w*packetSize.
func Encode(k, m, w int, s *Schedule, data, coding [][]byte, size, packetSize int, stats *Stats) error {
	if k <= 0 || m <= 0 || w <= 0 {
		return errors.Wrapf(ErrInvalidParams, "k=%d m=%d w=%d", k, m, w)
	}
	if err := CheckGeometry(w, size, packetSize); err != nil {
		return err
	}
	if len(data) < k || len(coding) < m {
		return errors.Wrapf(ErrDevice, "%d data and %d coding buffers for k=%d m=%d", len(data), len(coding), k, m)
	}

	devices := make([][]byte, k+m)
	copy(devices, data[:k])
	copy(devices[k:], coding[:m])
	return Run(devices, s, w, size, packetSize, stats)
}

// Run replays the schedule over every stripe of size bytes of the devices.
// It is the stripe loop shared by encoding and scheduled decoding, where the
// device list has been rearranged to match a decoding schedule.
func Run(devices [][]byte, s *Schedule, w, size, packetSize int, stats *Stats) error {
	if err := CheckGeometry(w, size, packetSize); err != nil {
		return err
	}
	for d, buf := range devices {
		if buf != nil && len(buf) < size {
			return errors.Wrapf(ErrBufferSize, "device %d has %d bytes, need %d", d, len(buf), size)
		}
	}

	stripe := w * packetSize
	ptrs := make([][]byte, len(devices))
	for off := 0; off < size; off += stripe {
		for d, buf := range devices {
			if buf != nil {
				ptrs[d] = buf[off : off+stripe]
			}
		}
		if off == 0 {
			if err := s.check(ptrs, packetSize); err != nil {
				return err
			}
		}
		s.run(ptrs, packetSize, stats)
	}
	return nil
}
