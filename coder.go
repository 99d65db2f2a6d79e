package jerasure

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ppopth/jerasure-go/codes/cauchy"
	"github.com/ppopth/jerasure-go/codes/liberation"
	"github.com/ppopth/jerasure-go/codes/reedsol"
	"github.com/ppopth/jerasure-go/galois"
	"github.com/ppopth/jerasure-go/matrix"
	"github.com/ppopth/jerasure-go/schedule"
)

// CoderConfig contains configuration for a Coder
type CoderConfig struct {
	// Coding construction
	Technique Technique
	// Number of data devices
	K int
	// Number of coding devices, 0 only with NoCoding
	M int
	// Field width in bits
	W int
	// Packet size in bytes for the bitmatrix techniques, 0 picks one with
	// SuggestPacketSize
	PacketSize int
	// Arithmetic backend of the field
	Backend galois.Backend
	// Compile schedules with the smart scheduler instead of the dumb one
	Smart bool
	// Keep decoding schedules in a ScheduleCache instead of compiling them
	// on every decode
	CacheSchedules bool
}

// DefaultCoderConfig returns default configuration
func DefaultCoderConfig() *CoderConfig {
	return &CoderConfig{
		Technique: CauchyGood,
		K:         4,
		M:         2,
		W:         8,
		Backend:   galois.BackendAuto,
		Smart:     true,
	}
}

// Coder encodes and decodes whole devices with one technique. It is safe for
// concurrent use; calls are serialized on a single Context.
type Coder struct {
	config *CoderConfig

	mutex sync.Mutex // Protects ctx
	ctx   *Context

	mat   *matrix.Matrix
	bm    *matrix.BitMatrix
	sched *schedule.Schedule
	cache *ScheduleCache
}

// NewCoder builds the coding matrix or bitmatrix of the configured technique
// and, for bitmatrix techniques, its encoding schedule.
func NewCoder(config *CoderConfig) (*Coder, error) {
	if config == nil {
		config = DefaultCoderConfig()
	}
	cfg := *config

	if cfg.K <= 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "k must be positive, got %d", cfg.K)
	}
	if cfg.Technique == NoCoding {
		if cfg.M != 0 {
			return nil, errors.Wrapf(ErrInvalidParams, "no_coding takes m=0, got %d", cfg.M)
		}
		return &Coder{config: &cfg}, nil
	}
	if cfg.M <= 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "m must be positive, got %d", cfg.M)
	}
	if cfg.PacketSize < 0 {
		return nil, errors.Wrapf(ErrPacketSize, "packet size %d", cfg.PacketSize)
	}

	ctx, err := NewContext(cfg.W, WithBackend(cfg.Backend))
	if err != nil {
		return nil, err
	}
	c := &Coder{config: &cfg, ctx: ctx}
	f := ctx.Field()

	switch cfg.Technique {
	case ReedSolVan:
		if err := checkWordWidth(cfg.W); err != nil {
			return nil, err
		}
		c.mat, err = reedsol.VandermondeCodingMatrix(f, cfg.K, cfg.M)
	case ReedSolR6Op:
		if cfg.M != 2 {
			return nil, errors.Wrapf(ErrInvalidParams, "reed_sol_r6_op needs m=2, got %d", cfg.M)
		}
		c.mat, err = reedsol.R6CodingMatrix(f, cfg.K)
	case CauchyOrig:
		c.mat, err = cauchy.OriginalCodingMatrix(f, cfg.K, cfg.M)
	case CauchyGood:
		c.mat, err = cauchy.GoodGeneralCodingMatrix(f, cfg.K, cfg.M)
	case Liberation, BlaumRoth, Liber8tion:
		if cfg.M != 2 {
			return nil, errors.Wrapf(ErrInvalidParams, "%s needs m=2, got %d", cfg.Technique, cfg.M)
		}
		switch cfg.Technique {
		case Liberation:
			c.bm, err = liberation.CodingBitmatrix(cfg.K, cfg.W)
		case BlaumRoth:
			c.bm, err = liberation.BlaumRothCodingBitmatrix(cfg.K, cfg.W)
		default:
			if cfg.W != 8 {
				return nil, errors.Wrapf(ErrInvalidParams, "liber8tion needs w=8, got %d", cfg.W)
			}
			c.bm, err = liberation.Liber8tionCodingBitmatrix(cfg.K)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidParams, "unknown technique %d", int(cfg.Technique))
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Technique.UsesBitmatrix() {
		return c, nil
	}
	if c.bm == nil {
		c.bm = matrix.ToBitMatrix(f, c.mat)
	}
	if cfg.PacketSize == 0 {
		cfg.PacketSize = SuggestPacketSize(cfg.K, cfg.M, cfg.W)
	}
	if cfg.Smart {
		c.sched, err = schedule.Smart(cfg.K, cfg.M, cfg.W, c.bm)
	} else {
		c.sched, err = schedule.Dumb(cfg.K, cfg.M, cfg.W, c.bm)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSchedules {
		if c.cache, err = NewScheduleCache(cfg.K, cfg.M, cfg.W, c.bm, cfg.M, cfg.Smart); err != nil {
			return nil, err
		}
	}
	log.Debugf("coder %s k=%d m=%d w=%d packet=%d, %d schedule operations",
		cfg.Technique, cfg.K, cfg.M, cfg.W, cfg.PacketSize, c.sched.Len())
	return c, nil
}

func checkWordWidth(w int) error {
	if w != 8 && w != 16 && w != 32 {
		return errors.Wrapf(ErrInvalidParams, "matrix coding needs w of 8, 16 or 32, got %d", w)
	}
	return nil
}

// Config returns the configuration in effect, with the packet size filled in.
func (c *Coder) Config() CoderConfig {
	return *c.config
}

// Matrix returns the coding matrix, or nil for the bitmatrix-only techniques.
func (c *Coder) Matrix() *matrix.Matrix {
	return c.mat
}

// BitMatrix returns the coding bitmatrix, or nil for the matrix techniques.
func (c *Coder) BitMatrix() *matrix.BitMatrix {
	return c.bm
}

// Schedule returns the encoding schedule, or nil for the matrix techniques.
func (c *Coder) Schedule() *schedule.Schedule {
	return c.sched
}

// Cache returns the decoding schedule cache, or nil when disabled.
func (c *Coder) Cache() *ScheduleCache {
	return c.cache
}

// Alignment returns the number of bytes every device size must be a
// multiple of.
func (c *Coder) Alignment() int {
	switch {
	case c.config.Technique == NoCoding:
		return 1
	case c.config.Technique.UsesBitmatrix():
		return c.config.W * c.config.PacketSize
	default:
		return c.config.W / 8
	}
}

// DeviceSize returns the smallest aligned device size holding a total of n
// bytes spread over the k data devices.
func (c *Coder) DeviceSize(n int) int {
	per := (n + c.config.K - 1) / c.config.K
	a := c.Alignment()
	if per == 0 {
		return a
	}
	return (per + a - 1) / a * a
}

func (c *Coder) deviceSize(data [][]byte) (int, error) {
	if len(data) < c.config.K {
		return 0, errors.Wrapf(ErrBufferSize, "%d data buffers for k=%d", len(data), c.config.K)
	}
	size := len(data[0])
	if size == 0 || size%c.Alignment() != 0 {
		return 0, errors.Wrapf(ErrBufferSize, "device size %d is not a positive multiple of %d", size, c.Alignment())
	}
	return size, nil
}

// Encode computes the coding devices from the data devices. All devices are
// as long as data[0].
func (c *Coder) Encode(data, coding [][]byte) error {
	size, err := c.deviceSize(data)
	if err != nil {
		return err
	}
	cfg := c.config
	if cfg.Technique == NoCoding {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch {
	case cfg.Technique == ReedSolR6Op:
		if err := checkBuffers(cfg.K, cfg.M, data, coding, size); err != nil {
			return err
		}
		c.ctx.ResetStats()
		return reedsol.R6Encode(cfg.W, cfg.K, data, coding, size, &c.ctx.stats)
	case cfg.Technique.UsesBitmatrix():
		return c.ctx.ScheduleEncode(cfg.K, cfg.M, c.sched, data, coding, size, cfg.PacketSize)
	default:
		return c.ctx.MatrixEncode(cfg.K, cfg.M, c.mat, data, coding, size)
	}
}

// Decode rebuilds the erased devices in place from the survivors.
func (c *Coder) Decode(erasures []int, data, coding [][]byte) error {
	size, err := c.deviceSize(data)
	if err != nil {
		return err
	}
	cfg := c.config
	if cfg.Technique == NoCoding {
		if len(erasures) > 0 {
			return errors.Wrapf(ErrTooManyErasures, "%d erasures without coding devices", len(erasures))
		}
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch {
	case c.cache != nil:
		return c.ctx.ScheduleDecodeCache(cfg.K, cfg.M, c.cache, erasures, data, coding, size, cfg.PacketSize)
	case cfg.Technique.UsesBitmatrix():
		return c.ctx.ScheduleDecodeLazy(cfg.K, cfg.M, c.bm, erasures, data, coding, size, cfg.PacketSize, cfg.Smart)
	default:
		// The first coding row of both Reed-Solomon matrices is all ones
		return c.ctx.MatrixDecode(cfg.K, cfg.M, c.mat, true, erasures, data, coding, size)
	}
}

// Stats returns the byte counts of the last Encode or Decode.
func (c *Coder) Stats() schedule.Stats {
	if c.ctx == nil {
		return schedule.Stats{}
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ctx.Stats()
}
