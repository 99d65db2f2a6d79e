package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppopth/jerasure-go"
)

func TestCoderConfigFits(t *testing.T) {
	o := &options{k: 6, m: 3, w: 5}
	for _, tech := range jerasure.Techniques() {
		_, err := jerasure.NewCoder(coderConfig(tech, o))
		assert.NoError(t, err, "%s", tech)
	}

	cfg := coderConfig(jerasure.BlaumRoth, o)
	assert.Equal(t, 6, cfg.W)
	cfg = coderConfig(jerasure.Liberation, o)
	assert.Equal(t, 7, cfg.W)
	assert.Equal(t, 2, cfg.M)

	// Liber8tion tops out at eight data devices
	o = &options{k: 9, m: 2, w: 8}
	for _, tech := range jerasure.Techniques() {
		_, err := jerasure.NewCoder(coderConfig(tech, o))
		assert.NoError(t, err, "%s", tech)
	}
	assert.Equal(t, 8, coderConfig(jerasure.Liber8tion, o).K)
	assert.Equal(t, 9, coderConfig(jerasure.CauchyGood, o).K)
}

func TestNextPrime(t *testing.T) {
	assert.Equal(t, 2, nextPrime(0))
	assert.Equal(t, 3, nextPrime(3))
	assert.Equal(t, 11, nextPrime(8))
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "bench.json")
	o := &options{
		k: 4, m: 2, w: 8,
		packetSize: 8,
		bufferSize: 4096,
		techniques: []string{"all"},
		iterations: 2,
		output:     out,
		logLevel:   "error",
		seed:       1,
	}
	require.NoError(t, run(context.Background(), o))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var results []BenchmarkResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, len(jerasure.Techniques()))
	for i, r := range results {
		assert.Equal(t, jerasure.Techniques()[i], r.Technique)
		assert.NotZero(t, r.DeviceSize)
	}

	o.techniques = []string{"raid5"}
	assert.Error(t, run(context.Background(), o))
}
