package main

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTPublisher pushes decode spots and periodic metric snapshots to
// a broker. Spots go to <prefix>/spots/<subchannel>; snapshots to
// <prefix>/metrics.
type MQTTPublisher struct {
	client   mqtt.Client
	config   *MQTTConfig
	gatherer prometheus.Gatherer

	stopChan chan struct{}
}

// MetricPayload is the snapshot message body.
type MetricPayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// generateClientID creates a random client ID for the connection.
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "morserator_" + hex.EncodeToString(bytes)
}

// loadTLSConfig loads TLS material from files.
func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// NewMQTTPublisher connects to the broker and starts the snapshot
// ticker.
func NewMQTTPublisher(config *MQTTConfig, gatherer prometheus.Gatherer) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	mp := &MQTTPublisher{
		client:   client,
		config:   config,
		gatherer: gatherer,
		stopChan: make(chan struct{}),
	}

	go mp.snapshotLoop()

	log.Printf("MQTT publisher connected to %s", config.Broker)
	return mp, nil
}

// Stop disconnects from the broker.
func (mp *MQTTPublisher) Stop() {
	close(mp.stopChan)
	mp.client.Disconnect(250)
}

// PublishSpot publishes one decode spot, fire and forget.
func (mp *MQTTPublisher) PublishSpot(spot Spot) {
	payload, err := json.Marshal(spot)
	if err != nil {
		log.Printf("MQTT: failed to marshal spot: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/spots/%d", mp.config.TopicPrefix, spot.Subchannel)
	mp.client.Publish(topic, 0, false, payload)
}

func (mp *MQTTPublisher) snapshotLoop() {
	interval := time.Duration(mp.config.MetricsInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mp.stopChan:
			return
		case <-ticker.C:
			mp.publishMetrics()
		}
	}
}

// publishMetrics walks the gathered metric families into one flat
// snapshot message.
func (mp *MQTTPublisher) publishMetrics() {
	families, err := mp.gatherer.Gather()
	if err != nil {
		log.Printf("MQTT: failed to gather metrics: %v", err)
		return
	}

	payload := MetricPayload{
		Timestamp: time.Now().Unix(),
		Metrics:   make(map[string]float64),
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName()
			for _, label := range metric.GetLabel() {
				name += "_" + label.GetValue()
			}

			switch family.GetType() {
			case dto.MetricType_COUNTER:
				payload.Metrics[name] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				payload.Metrics[name] = metric.GetGauge().GetValue()
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT: failed to marshal metrics: %v", err)
		return
	}

	mp.client.Publish(mp.config.TopicPrefix+"/metrics", 0, false, data)
}
