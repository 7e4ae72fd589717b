package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// TextLogger appends decode spots to zstd-compressed JSON Lines
// files, one file per day. Writes are queued so the sync loop never
// waits on disk.
type TextLogger struct {
	dataDir string
	enabled bool

	file    *os.File
	encoder *zstd.Encoder
	date    string

	logChan  chan Spot
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTextLogger creates the logger and its worker.
func NewTextLogger(dataDir string, enabled bool) (*TextLogger, error) {
	if !enabled {
		return &TextLogger{enabled: false}, nil
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create text log directory: %w", err)
	}

	tl := &TextLogger{
		dataDir:  dataDir,
		enabled:  true,
		logChan:  make(chan Spot, 1000),
		stopChan: make(chan struct{}),
	}

	tl.wg.Add(1)
	go tl.logWorker()

	return tl, nil
}

// Log queues a spot for writing, dropping it if the queue is full.
func (tl *TextLogger) Log(spot Spot) {
	if !tl.enabled {
		return
	}

	select {
	case tl.logChan <- spot:
	default:
		log.Printf("Text log queue full, dropping spot for subchannel %d", spot.Subchannel)
	}
}

// Close drains the queue and flushes the compressor.
func (tl *TextLogger) Close() {
	if !tl.enabled {
		return
	}

	close(tl.stopChan)
	tl.wg.Wait()
}

func (tl *TextLogger) logWorker() {
	defer tl.wg.Done()
	defer tl.closeFile()

	for {
		select {
		case spot := <-tl.logChan:
			tl.writeSpot(spot)
		case <-tl.stopChan:
			for {
				select {
				case spot := <-tl.logChan:
					tl.writeSpot(spot)
				default:
					return
				}
			}
		}
	}
}

func (tl *TextLogger) writeSpot(spot Spot) {
	date := spot.Time.Format("2006-01-02")
	if tl.encoder == nil || date != tl.date {
		tl.closeFile()
		if err := tl.openFile(date); err != nil {
			log.Printf("Text log: %v", err)
			return
		}
	}

	line, err := json.Marshal(spot)
	if err != nil {
		log.Printf("Text log: failed to marshal spot: %v", err)
		return
	}
	line = append(line, '\n')

	if _, err := tl.encoder.Write(line); err != nil {
		log.Printf("Text log: write failed: %v", err)
	}
}

func (tl *TextLogger) openFile(date string) error {
	name := filepath.Join(tl.dataDir, fmt.Sprintf("decodes-%s.jsonl.zst", date))

	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	tl.file = file
	tl.encoder = encoder
	tl.date = date
	return nil
}

// closeFile flushes and releases the current day's file.
func (tl *TextLogger) closeFile() {
	if tl.encoder != nil {
		if err := tl.encoder.Close(); err != nil {
			log.Printf("Text log: flush failed: %v", err)
		}
		tl.encoder = nil
	}
	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}
