package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ConfigKey selects one entry of the persistent settings store.
type ConfigKey int

const (
	ConfigVersion ConfigKey = iota
	ConfigAudioIn
	ConfigAudioOut

	configCount
)

var configKeys = [configCount]string{
	"version",
	"audio_in",
	"audio_out",
}

// ConfigStore is the small line-oriented settings file the receiver
// keeps between runs: one "key: value" record per line. Unknown keys
// are ignored on load and only present keys are written on save.
type ConfigStore struct {
	mu      sync.Mutex
	values  [configCount]string
	present [configCount]bool
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// Get returns the value for key, empty when unset.
func (s *ConfigStore) Get(key ConfigKey) string {
	if key < 0 || key >= configCount {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set stores value under key; an empty value unsets it.
func (s *ConfigStore) Set(key ConfigKey, value string) {
	if key < 0 || key >= configCount {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.present[key] = value != ""
}

// Clear unsets every key.
func (s *ConfigStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.values {
		s.values[i] = ""
		s.present[i] = false
	}
}

// Load replaces the store's contents with the file's. Records that
// don't parse, and keys the store doesn't know, are skipped.
func (s *ConfigStore) Load(path, filename string) error {
	file, err := os.Open(storePath(path, filename))
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.values {
		s.values[i] = ""
		s.present[i] = false
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name, value, found := strings.Cut(scanner.Text(), ": ")
		if !found {
			continue
		}
		value = strings.TrimRight(value, "\r\n\t ")

		for key := ConfigKey(0); key < configCount; key++ {
			if name == configKeys[key] {
				s.values[key] = value
				s.present[key] = true
				break
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

// Save writes the present keys, one record per line.
func (s *ConfigStore) Save(path, filename string) error {
	file, err := os.Create(storePath(path, filename))
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	s.mu.Lock()
	for key := ConfigKey(0); key < configCount; key++ {
		if s.present[key] {
			fmt.Fprintf(file, "%s: %s\n", configKeys[key], s.values[key])
		}
	}
	s.mu.Unlock()

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func storePath(path, filename string) string {
	switch {
	case path != "" && filename != "":
		return filepath.Join(path, filename)
	case path != "":
		return path
	default:
		return filename
	}
}
