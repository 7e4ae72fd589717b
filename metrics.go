package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors. Everything is registered
// on a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Audio ingress
	AudioPackets prometheus.Counter
	AudioSamples prometheus.Counter
	AudioErrors  prometheus.Counter

	// Analyser
	BlocksAnalysed prometheus.Counter
	BandAverageDB  prometheus.Gauge
	ThresholdDB    prometheus.Gauge

	// Decoder (by subchannel)
	CharactersDecoded *prometheus.CounterVec
	ChannelWPM        *prometheus.GaugeVec
	ChannelSNR        *prometheus.GaugeVec

	// Noise floor
	NoiseFloorMean      prometheus.Gauge
	NoiseFloorMedian    prometheus.Gauge
	NoiseFloorP5        prometheus.Gauge
	NoiseFloorP95       prometheus.Gauge
	NoiseFloorOccupancy prometheus.Gauge

	// WebSocket clients
	ActiveClients prometheus.Gauge
	SpotsPublished prometheus.Counter
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		AudioPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "morserator_audio_packets_total",
			Help: "RTP audio packets accepted",
		}),
		AudioSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "morserator_audio_samples_total",
			Help: "PCM samples received before decimation",
		}),
		AudioErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "morserator_audio_errors_total",
			Help: "Malformed RTP packets",
		}),

		BlocksAnalysed: factory.NewCounter(prometheus.CounterOpts{
			Name: "morserator_blocks_analysed_total",
			Help: "Analyser blocks processed",
		}),
		BandAverageDB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_band_average_db",
			Help: "Running band average power in dB units",
		}),
		ThresholdDB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_threshold_db",
			Help: "Band-derived decode threshold in dB units",
		}),

		CharactersDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "morserator_characters_decoded_total",
			Help: "Characters appended to sub-channel text",
		}, []string{"subchannel"}),
		ChannelWPM: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "morserator_channel_wpm",
			Help: "Estimated sender speed per sub-channel",
		}, []string{"subchannel"}),
		ChannelSNR: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "morserator_channel_snr_db",
			Help: "Latest sub-channel magnitude in dB units",
		}, []string{"subchannel"}),

		NoiseFloorMean: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_noise_floor_mean_db",
			Help: "Mean colour magnitude across the band",
		}),
		NoiseFloorMedian: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_noise_floor_median_db",
			Help: "Median colour magnitude across the band",
		}),
		NoiseFloorP5: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_noise_floor_p5_db",
			Help: "5th percentile colour magnitude (noise floor estimate)",
		}),
		NoiseFloorP95: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_noise_floor_p95_db",
			Help: "95th percentile colour magnitude (signal peaks)",
		}),
		NoiseFloorOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_noise_floor_occupancy_percent",
			Help: "Share of colours above the decode threshold",
		}),

		ActiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morserator_websocket_clients",
			Help: "Connected websocket clients",
		}),
		SpotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "morserator_spots_published_total",
			Help: "Decode spots emitted to log and MQTT",
		}),
	}
}

// Registry exposes the private registry for the /metrics handler and
// the MQTT snapshot publisher.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveChannel updates the per-subchannel gauges after a sync.
func (m *Metrics) ObserveChannel(subchannel, wpm int, snr DB) {
	label := strconv.Itoa(subchannel)
	m.ChannelWPM.WithLabelValues(label).Set(float64(wpm))
	m.ChannelSNR.WithLabelValues(label).Set(float64(snr))
}
