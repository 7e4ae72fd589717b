package main

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// StatusServer serves the /api/status document: build, host load,
// waterfall geometry and the live decode state of every sub-channel.
type StatusServer struct {
	waterfall  *Waterfall
	noiseFloor *NoiseFloorMonitor
	hub        *WSHub
	sampleRate int
	startTime  time.Time
}

// ChannelStatus is one sub-channel's slice of the status document.
type ChannelStatus struct {
	Subchannel int    `json:"subchannel"`
	Text       string `json:"text"`
	WPM        int    `json:"wpm"`
	SNR        int    `json:"snr"`
}

// StatusDocument is the full /api/status body.
type StatusDocument struct {
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Goroutines    int             `json:"goroutines"`
	CPUCount      int             `json:"cpu_count"`
	CPUPercent    float64         `json:"cpu_percent"`
	HeapBytes     uint64          `json:"heap_bytes"`
	Clients       int             `json:"websocket_clients"`
	SampleRate    int             `json:"sample_rate"`
	BlockSize     int             `json:"block_size"`
	Subchannels   int             `json:"subchannels"`
	First         int             `json:"first_subchannel"`
	ThresholdDB   int             `json:"threshold_db"`
	NoiseFloor    BandMeasurement `json:"noise_floor"`
	Channels      []ChannelStatus `json:"channels"`
}

// NewStatusServer wires the status endpoint's data sources.
func NewStatusServer(waterfall *Waterfall, noiseFloor *NoiseFloorMonitor, hub *WSHub, sampleRate int) *StatusServer {
	return &StatusServer{
		waterfall:  waterfall,
		noiseFloor: noiseFloor,
		hub:        hub,
		sampleRate: sampleRate,
		startTime:  time.Now(),
	}
}

// HandleStatus answers GET /api/status.
func (ss *StatusServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	doc := StatusDocument{
		Version:       Version,
		UptimeSeconds: int64(time.Since(ss.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HeapBytes:     memStats.HeapAlloc,
		Clients:       ss.hub.ClientCount(),
		SampleRate:    ss.sampleRate,
		BlockSize:     ss.waterfall.BlockSize(),
		Subchannels:   ss.waterfall.Subchannels(),
		First:         ss.waterfall.FirstSubchannel(),
		ThresholdDB:   int(ss.waterfall.Threshold()),
		NoiseFloor:    ss.noiseFloor.Latest(),
	}

	if counts, err := cpu.Counts(true); err == nil {
		doc.CPUCount = counts
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		doc.CPUPercent = percents[0]
	}

	samplesPerMin := (60 * waterfallRate) / ss.waterfall.BlockSize()
	first := ss.waterfall.FirstSubchannel()
	for i := 0; i < ss.waterfall.Subchannels(); i++ {
		subchannel := first + i

		doc.Channels = append(doc.Channels, ChannelStatus{
			Subchannel: subchannel,
			Text:       ss.waterfall.Text(subchannel),
			WPM:        ss.waterfall.Fist(subchannel).WPM(samplesPerMin),
			SNR:        int(ss.waterfall.LastColour(subchannel)),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		log.Printf("Status: failed to encode document: %v", err)
	}
}
