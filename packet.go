package jerasure

import (
	"github.com/klauspost/cpuid/v2"
)

const (
	defaultL1Cache = 32 << 10
	minPacketSize  = 64
)

// SuggestPacketSize picks a packet size for bitmatrix coding so that one
// stripe of every device fits in the L1 data cache. The result is a multiple
// of 64 bytes and at least 64.
func SuggestPacketSize(k, m, w int) int {
	cacheSize := cpuid.CPU.Cache.L1D
	if cacheSize <= 0 {
		cacheSize = defaultL1Cache
	}
	if cpuid.CPU.ThreadsPerCore > 1 {
		// Hyperthreads share the cache
		cacheSize /= cpuid.CPU.ThreadsPerCore
	}

	devices := k + m
	if devices <= 0 || w <= 0 {
		return minPacketSize
	}
	size := cacheSize / (devices * w)
	size = size / 64 * 64
	if size < minPacketSize {
		size = minPacketSize
	}
	return size
}
