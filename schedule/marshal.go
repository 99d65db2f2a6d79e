package schedule

import (
	"io"
	"math"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// ErrCorrupt is returned when a marshalled schedule cannot be decoded.
var ErrCorrupt = errors.New("schedule: corrupt encoding")

// MarshalBinary encodes the schedule as a varint stream: the operation count
// followed by source device, source packet, destination device, destination
// packet and the XOR flag of every operation.
func (s *Schedule) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 1+5*len(s.Ops)))
	if err := s.encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Schedule) encode(buf *proto.Buffer) error {
	if err := buf.EncodeVarint(uint64(len(s.Ops))); err != nil {
		return err
	}
	for _, op := range s.Ops {
		flag := uint64(0)
		if op.XOR {
			flag = 1
		}
		for _, v := range []uint64{uint64(op.SrcDevice), uint64(op.SrcPacket), uint64(op.DstDevice), uint64(op.DstPacket), flag} {
			if err := buf.EncodeVarint(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnmarshalBinary decodes a schedule written by MarshalBinary.
func (s *Schedule) UnmarshalBinary(data []byte) error {
	buf := proto.NewBuffer(data)
	if err := s.decode(buf, len(data)); err != nil {
		return err
	}
	return checkEOF(buf)
}

// checkEOF fails unless the whole buffer has been consumed.
func checkEOF(buf *proto.Buffer) error {
	if _, err := buf.DecodeVarint(); err != io.ErrUnexpectedEOF {
		return errors.Wrap(ErrCorrupt, "trailing bytes")
	}
	return nil
}

func (s *Schedule) decode(buf *proto.Buffer, limit int) error {
	n, err := buf.DecodeVarint()
	if err != nil {
		return errors.Wrap(ErrCorrupt, err.Error())
	}
	// Every operation takes at least five bytes
	if n > uint64(limit/5) {
		return errors.Wrapf(ErrCorrupt, "%d operations in %d bytes", n, limit)
	}

	ops := make([]Op, n)
	for i := range ops {
		var v [5]uint64
		for j := range v {
			if v[j], err = buf.DecodeVarint(); err != nil {
				return errors.Wrapf(ErrCorrupt, "operation %d: %v", i, err)
			}
		}
		for j, x := range v[:4] {
			if x > math.MaxInt32 {
				return errors.Wrapf(ErrCorrupt, "operation %d: field %d is %d", i, j, x)
			}
		}
		if v[4] > 1 {
			return errors.Wrapf(ErrCorrupt, "operation %d: flag %d", i, v[4])
		}
		ops[i] = Op{
			SrcDevice: int(v[0]),
			SrcPacket: int(v[1]),
			DstDevice: int(v[2]),
			DstPacket: int(v[3]),
			XOR:       v[4] == 1,
		}
	}
	s.Ops = ops
	return nil
}

// MarshalSchedules appends the given schedules to one buffer, each preceded
// by its key as a length-delimited byte string.
func MarshalSchedules(keys [][]byte, schedules []*Schedule) ([]byte, error) {
	if len(keys) != len(schedules) {
		return nil, errors.Errorf("schedule: %d keys for %d schedules", len(keys), len(schedules))
	}
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeVarint(uint64(len(keys))); err != nil {
		return nil, err
	}
	for i, key := range keys {
		if err := buf.EncodeRawBytes(key); err != nil {
			return nil, err
		}
		if err := schedules[i].encode(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalSchedules decodes a buffer written by MarshalSchedules.
func UnmarshalSchedules(data []byte) ([][]byte, []*Schedule, error) {
	buf := proto.NewBuffer(data)
	n, err := buf.DecodeVarint()
	if err != nil {
		return nil, nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	if n > uint64(len(data)) {
		return nil, nil, errors.Wrapf(ErrCorrupt, "%d schedules in %d bytes", n, len(data))
	}
	keys := make([][]byte, 0, n)
	schedules := make([]*Schedule, 0, n)
	for i := uint64(0); i < n; i++ {
		key, err := buf.DecodeRawBytes(true)
		if err != nil {
			return nil, nil, errors.Wrapf(ErrCorrupt, "key %d: %v", i, err)
		}
		s := &Schedule{}
		if err := s.decode(buf, len(data)); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		schedules = append(schedules, s)
	}
	if err := checkEOF(buf); err != nil {
		return nil, nil, err
	}
	return keys, schedules, nil
}
