package jerasure

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

// ScheduleCache holds decoding schedules of one coding bitmatrix keyed by
// erasure pattern. The order of the erasures in a pattern does not matter.
// It is safe for concurrent use.
type ScheduleCache struct {
	k, m, w     int
	bm          *matrix.BitMatrix
	maxErasures int
	smart       bool

	mutex     sync.Mutex
	schedules map[string]*schedule.Schedule
}

// NewScheduleCache creates an empty cache for patterns of up to maxErasures
// erased devices. Schedules are compiled on first use or by Warm.
func NewScheduleCache(k, m, w int, bm *matrix.BitMatrix, maxErasures int, smart bool) (*ScheduleCache, error) {
	if err := checkKM(k, m); err != nil {
		return nil, err
	}
	if bm.Rows() != m*w || bm.Cols() != k*w {
		return nil, errors.Wrapf(ErrInvalidParams, "coding bitmatrix is %dx%d, want %dx%d", bm.Rows(), bm.Cols(), m*w, k*w)
	}
	if maxErasures <= 0 || maxErasures > m {
		return nil, errors.Wrapf(ErrTooManyErasures, "cache for %d erasures with m=%d", maxErasures, m)
	}
	return &ScheduleCache{
		k:           k,
		m:           m,
		w:           w,
		bm:          bm.Clone(),
		maxErasures: maxErasures,
		smart:       smart,
		schedules:   make(map[string]*schedule.Schedule),
	}, nil
}

// cacheKey encodes a sorted erasure pattern as a varint string.
func cacheKey(sorted []int) string {
	var key []byte
	for _, e := range sorted {
		key = append(key, proto.EncodeVarint(uint64(e))...)
	}
	return string(key)
}

// Lookup returns the decoding schedule for the erasures, compiling it on a
// miss.
func (c *ScheduleCache) Lookup(erasures []int) (*schedule.Schedule, error) {
	erased, err := ErasuresToErased(c.k, c.m, erasures)
	if err != nil {
		return nil, err
	}
	if len(erasures) > c.maxErasures {
		return nil, errors.Wrapf(ErrTooManyErasures, "%d erasures, cache holds up to %d", len(erasures), c.maxErasures)
	}
	key := cacheKey(sortedErasures(erasures))

	c.mutex.Lock()
	s, ok := c.schedules[key]
	c.mutex.Unlock()
	if ok {
		return s, nil
	}

	s, err = generateDecodingSchedule(c.k, c.m, c.w, c.bm, erased, c.smart)
	if err != nil {
		return nil, err
	}
	log.Debugf("schedule cache miss for %v, compiled %d operations", erasures, s.Len())

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if prev, ok := c.schedules[key]; ok {
		return prev, nil
	}
	c.schedules[key] = s
	return s, nil
}

// Warm compiles the schedules of every pattern of 1 to maxErasures erased
// devices, spreading the work over the available CPUs.
func (c *ScheduleCache) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	n := c.k + c.m
	for size := 1; size <= c.maxErasures; size++ {
		pattern := make([]int, size)
		for i := range pattern {
			pattern[i] = i
		}
		for {
			erasures := append([]int(nil), pattern...)
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				_, err := c.Lookup(erasures)
				return err
			})
			if !nextPattern(pattern, n) {
				break
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// nextPattern advances an increasing index set over [0, n) to the next one
// in lexicographic order.
func nextPattern(p []int, n int) bool {
	i := len(p) - 1
	for i >= 0 && p[i] == n-len(p)+i {
		i--
	}
	if i < 0 {
		return false
	}
	p[i]++
	for j := i + 1; j < len(p); j++ {
		p[j] = p[j-1] + 1
	}
	return true
}

// Len returns the number of cached schedules.
func (c *ScheduleCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.schedules)
}

// Release drops every cached schedule.
func (c *ScheduleCache) Release() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.schedules = make(map[string]*schedule.Schedule)
}

// MarshalBinary exports the cached schedules, ordered by key.
func (c *ScheduleCache) MarshalBinary() ([]byte, error) {
	c.mutex.Lock()
	keys := make([]string, 0, len(c.schedules))
	for key := range c.schedules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rawKeys := make([][]byte, len(keys))
	schedules := make([]*schedule.Schedule, len(keys))
	for i, key := range keys {
		rawKeys[i] = []byte(key)
		schedules[i] = c.schedules[key]
	}
	c.mutex.Unlock()

	return schedule.MarshalSchedules(rawKeys, schedules)
}

// UnmarshalBinary loads schedules exported by MarshalBinary into the cache.
// Every key must be a valid erasure pattern for the cache.
func (c *ScheduleCache) UnmarshalBinary(data []byte) error {
	keys, schedules, err := schedule.UnmarshalSchedules(data)
	if err != nil {
		return err
	}

	loaded := make(map[string]*schedule.Schedule, len(keys))
	for i, key := range keys {
		var pattern []int
		buf := proto.NewBuffer(key)
		for n := 0; n < len(key); n++ {
			v, err := buf.DecodeVarint()
			if err != nil {
				break
			}
			pattern = append(pattern, int(v))
		}
		if cacheKey(pattern) != string(key) || !sort.IntsAreSorted(pattern) || len(pattern) > c.maxErasures {
			return errors.Wrapf(schedule.ErrCorrupt, "bad erasure pattern key %x", key)
		}
		if _, err := ErasuresToErased(c.k, c.m, pattern); err != nil {
			return errors.Wrapf(schedule.ErrCorrupt, "erasure pattern %v: %v", pattern, err)
		}
		if err := c.checkOps(schedules[i]); err != nil {
			return errors.Wrapf(err, "erasure pattern %v", pattern)
		}
		loaded[string(key)] = schedules[i]
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, s := range loaded {
		c.schedules[key] = s
	}
	return nil
}

// checkOps verifies that every operation stays inside the k+m devices and
// the w packets of a stripe.
func (c *ScheduleCache) checkOps(s *schedule.Schedule) error {
	n := c.k + c.m
	for i, op := range s.Ops {
		if op.SrcDevice < 0 || op.SrcDevice >= n || op.DstDevice < c.k || op.DstDevice >= n ||
			op.SrcPacket < 0 || op.SrcPacket >= c.w || op.DstPacket < 0 || op.DstPacket >= c.w {
			return errors.Wrapf(schedule.ErrCorrupt, "operation %d out of range: %+v", i, op)
		}
	}
	return nil
}
