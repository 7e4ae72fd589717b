package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugMode gates verbose logging.
var DebugMode bool

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("No config file at %s, using defaults", *configPath)
			config = DefaultConfig()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	if err := run(config); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func run(config *Config) error {
	log.Printf("morserator %s starting", Version)

	// Persistent settings (audio device selection, stamped version).
	store := NewConfigStore()
	if err := store.Load("", config.Settings.Path); err != nil {
		log.Printf("No settings store at %s, starting fresh", config.Settings.Path)
	}
	if err := checkStoreVersion(store); err != nil {
		return err
	}
	if err := store.Save("", config.Settings.Path); err != nil {
		log.Printf("Warning: failed to save settings store: %v", err)
	}

	wf := config.Waterfall
	waterfall, err := NewWaterfall(wf.BlockPower, wf.Samples, wf.FirstChannel, wf.LastChannel, wf.Rows, wf.Cols)
	if err != nil {
		return fmt.Errorf("failed to create waterfall: %w", err)
	}
	log.Printf("Waterfall: %d sub-channels (%d..%d), %d-sample blocks, ring depth %d",
		waterfall.Subchannels(), wf.FirstChannel, wf.LastChannel, waterfall.BlockSize(), wf.Samples)

	metrics := NewMetrics()
	noiseFloor := NewNoiseFloorMonitor(waterfall, metrics)
	hub := NewWSHub(metrics)
	watcher := NewSpotWatcher(waterfall)

	textLog, err := NewTextLogger(config.TextLog.DataDir, config.TextLog.Enabled)
	if err != nil {
		return err
	}
	defer textLog.Close()

	var publisher *MQTTPublisher
	if config.MQTT.Enabled {
		publisher, err = NewMQTTPublisher(&config.MQTT, metrics.Registry())
		if err != nil {
			return err
		}
		defer publisher.Stop()
	}

	receiver, err := NewAudioReceiver(config.Audio, store, waterfall, metrics)
	if err != nil {
		return err
	}
	receiver.Start()
	defer receiver.Stop()

	// Consumer side: fold pending blocks into decodes and fan the
	// results out on a fixed cadence.
	stopSync := make(chan struct{})
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)

		ticker := time.NewTicker(time.Duration(config.Waterfall.SyncIntervalMs) * time.Millisecond)
		defer ticker.Stop()

		samplesPerMin := (60 * waterfallRate) / waterfall.BlockSize()

		for {
			select {
			case <-stopSync:
				return
			case <-ticker.C:
			}

			waterfall.SyncAll()

			metrics.BandAverageDB.Set(float64(DBFromPower(waterfall.Average())))
			metrics.ThresholdDB.Set(float64(waterfall.Threshold()))
			noiseFloor.Measure()

			first := waterfall.FirstSubchannel()
			for i := 0; i < waterfall.Subchannels(); i++ {
				subchannel := first + i

				metrics.ObserveChannel(subchannel, waterfall.Fist(subchannel).WPM(samplesPerMin), waterfall.LastColour(subchannel))

				hub.Broadcast(WaterfallFrame{
					Type:       "waterfall",
					Subchannel: subchannel,
					Colours:    waterfall.Colours(subchannel),
					Text:       waterfall.Text(subchannel),
					WPM:        waterfall.Fist(subchannel).WPM(samplesPerMin),
					Threshold:  waterfall.Threshold(),
				})
			}

			for _, spot := range watcher.Collect() {
				metrics.SpotsPublished.Inc()
				metrics.CharactersDecoded.WithLabelValues(strconv.Itoa(spot.Subchannel)).Add(float64(len(spot.Text)))
				textLog.Log(spot)
				if publisher != nil {
					publisher.PublishSpot(spot)
				}
				if DebugMode {
					log.Printf("Spot: subchannel %d %q (%d WPM, %d dB)", spot.Subchannel, spot.Text, spot.WPM, spot.SNR)
				}
			}
		}
	}()
	defer func() {
		close(stopSync)
		<-syncDone
	}()

	status := NewStatusServer(waterfall, noiseFloor, hub, config.Audio.SampleRate)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	mux.HandleFunc("/api/status", status.HandleStatus)
	if config.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		log.Printf("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	return nil
}
