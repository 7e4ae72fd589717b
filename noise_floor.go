package main

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// NoiseFloorMonitor keeps band-wide statistics over the latest colour
// rings. The analyser's running average sets the decode threshold;
// these figures describe how the band looks around it, for the status
// API and the metrics surface.
type NoiseFloorMonitor struct {
	waterfall *Waterfall
	metrics   *Metrics

	latest BandMeasurement
	mu     sync.RWMutex
}

// BandMeasurement is one snapshot of the band's colour distribution.
type BandMeasurement struct {
	Time        time.Time `json:"time"`
	MeanDB      float64   `json:"mean_db"`
	MedianDB    float64   `json:"median_db"`
	P5DB        float64   `json:"p5_db"`
	P95DB       float64   `json:"p95_db"`
	MaxDB       float64   `json:"max_db"`
	ThresholdDB float64   `json:"threshold_db"`
	Occupancy   float64   `json:"occupancy_percent"`
}

// NewNoiseFloorMonitor returns a monitor over the waterfall's band.
func NewNoiseFloorMonitor(waterfall *Waterfall, metrics *Metrics) *NoiseFloorMonitor {
	return &NoiseFloorMonitor{waterfall: waterfall, metrics: metrics}
}

// Measure takes a snapshot across every sub-channel's newest colours.
func (nf *NoiseFloorMonitor) Measure() BandMeasurement {
	threshold := nf.waterfall.Threshold()

	var data []float64
	above := 0

	first := nf.waterfall.FirstSubchannel()
	for i := 0; i < nf.waterfall.Subchannels(); i++ {
		colours := nf.waterfall.Colours(first + i)
		for _, c := range colours {
			data = append(data, float64(c))
			if c > threshold {
				above++
			}
		}
	}

	m := BandMeasurement{
		Time:        time.Now(),
		ThresholdDB: float64(threshold),
	}

	if len(data) > 0 {
		sort.Float64s(data)
		m.MeanDB = stat.Mean(data, nil)
		m.MedianDB = stat.Quantile(0.5, stat.Empirical, data, nil)
		m.P5DB = stat.Quantile(0.05, stat.Empirical, data, nil)
		m.P95DB = stat.Quantile(0.95, stat.Empirical, data, nil)
		m.MaxDB = data[len(data)-1]
		m.Occupancy = 100 * float64(above) / float64(len(data))
	}

	nf.mu.Lock()
	nf.latest = m
	nf.mu.Unlock()

	if nf.metrics != nil {
		nf.metrics.NoiseFloorMean.Set(m.MeanDB)
		nf.metrics.NoiseFloorMedian.Set(m.MedianDB)
		nf.metrics.NoiseFloorP5.Set(m.P5DB)
		nf.metrics.NoiseFloorP95.Set(m.P95DB)
		nf.metrics.NoiseFloorOccupancy.Set(m.Occupancy)
	}

	return m
}

// Latest returns the most recent snapshot.
func (nf *NoiseFloorMonitor) Latest() BandMeasurement {
	nf.mu.RLock()
	defer nf.mu.RUnlock()
	return nf.latest
}
