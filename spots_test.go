package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpotWatcherCollect(t *testing.T) {
	fist := &Fist{Dit: 3, Dah: 9, Tid: 3, Letter: 9}
	w := runWaterfall(t, waterfallTestSignal(t, fist), 4096)

	watcher := NewSpotWatcher(w)

	spots := watcher.Collect()
	require.NotEmpty(t, spots)

	bySubchannel := make(map[int]Spot)
	for _, spot := range spots {
		bySubchannel[spot.Subchannel] = spot
	}

	assert.Contains(t, bySubchannel[12].Text, "MAJESTIC THIRTEEN")
	assert.Contains(t, bySubchannel[23].Text, "TWENTY THREE SKIDOO")
	_, carrier := bySubchannel[19]
	assert.False(t, carrier, "carrier channel must not spot")

	// nothing new on a second collection
	assert.Empty(t, watcher.Collect())
}

func TestNoiseFloorMeasure(t *testing.T) {
	fist := &Fist{Dit: 3, Dah: 9, Tid: 3, Letter: 9}
	w := runWaterfall(t, waterfallTestSignal(t, fist), 4096)

	nf := NewNoiseFloorMonitor(w, nil)
	m := nf.Measure()

	assert.Equal(t, float64(w.Threshold()), m.ThresholdDB)
	assert.GreaterOrEqual(t, m.P95DB, m.MedianDB)
	assert.GreaterOrEqual(t, m.MedianDB, m.P5DB)
	assert.GreaterOrEqual(t, m.MaxDB, m.P95DB)
	assert.Equal(t, m, nf.Latest())
}

func TestBytesToInt16Samples(t *testing.T) {
	samples := bytesToInt16Samples([]byte{0x00, 0x01, 0xFF, 0xFF, 0x80, 0x00})
	assert.Equal(t, []int16{1, -1, -32768}, samples)
}
