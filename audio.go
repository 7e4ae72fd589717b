package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// AudioReceiver taps PCM off the capture side: RTP over UDP
// multicast, big-endian 16-bit mono. Packets are decimated to the
// internal rate and pushed straight into the waterfall; the receive
// loop never blocks on anything downstream of the socket.
type AudioReceiver struct {
	dataAddr  *net.UDPAddr
	iface     *net.Interface
	conn      *net.UDPConn
	waterfall *Waterfall
	decimator *Decimator
	metrics   *Metrics

	// ssrc selects one stream on the group; zero accepts the first
	// stream seen. Persisted as the audio_in settings key.
	ssrc       uint32
	lockedSSRC uint32

	running bool
	mu      sync.RWMutex
}

// NewAudioReceiver opens the ingress socket for the configured group.
func NewAudioReceiver(config AudioConfig, store *ConfigStore, waterfall *Waterfall, metrics *Metrics) (*AudioReceiver, error) {
	dataAddr, err := net.ResolveUDPAddr("udp4", config.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("bad audio listen address: %w", err)
	}

	var iface *net.Interface
	if config.Interface != "" {
		iface, err = net.InterfaceByName(config.Interface)
		if err != nil {
			return nil, fmt.Errorf("bad audio interface %q: %w", config.Interface, err)
		}
	}

	decimator, err := NewDecimator(config.SampleRate)
	if err != nil {
		return nil, err
	}

	ar := &AudioReceiver{
		dataAddr:  dataAddr,
		iface:     iface,
		waterfall: waterfall,
		decimator: decimator,
		metrics:   metrics,
	}

	if in := store.Get(ConfigAudioIn); in != "" {
		ssrc, err := strconv.ParseUint(in, 10, 32)
		if err != nil {
			log.Printf("Ignoring bad audio_in setting %q: %v", in, err)
		} else {
			ar.ssrc = uint32(ssrc)
		}
	}

	conn, err := setupDataSocket(dataAddr, iface)
	if err != nil {
		return nil, fmt.Errorf("failed to setup data socket: %w", err)
	}
	ar.conn = conn

	log.Printf("Audio receiver listening on %s (iface: %v, rate: %d Hz)",
		dataAddr.String(), config.Interface, config.SampleRate)

	return ar, nil
}

// setupDataSocket creates a UDP socket for receiving multicast data,
// shareable with other receivers on the same group.
func setupDataSocket(addr *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEPORT: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	conn, err := lc.ListenPacket(context.Background(), "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	udpConn := conn.(*net.UDPConn)

	if err := udpConn.SetReadBuffer(1024 * 1024); err != nil {
		log.Printf("Warning: failed to set read buffer size: %v", err)
	}

	if addr.IP.IsMulticast() {
		p := ipv4.NewPacketConn(udpConn)
		if err := p.JoinGroup(iface, addr); err != nil {
			log.Printf("Warning: failed to join multicast group: %v", err)
		}
	}

	return udpConn, nil
}

// Start starts the receive loop.
func (ar *AudioReceiver) Start() {
	ar.mu.Lock()
	if ar.running {
		ar.mu.Unlock()
		return
	}
	ar.running = true
	ar.mu.Unlock()

	go ar.receiveLoop()
	log.Println("Audio receiver started")
}

// Stop stops the receive loop and closes the socket.
func (ar *AudioReceiver) Stop() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if !ar.running {
		return
	}

	ar.running = false
	if ar.conn != nil {
		ar.conn.Close()
	}

	log.Println("Audio receiver stopped")
}

func (ar *AudioReceiver) isRunning() bool {
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return ar.running
}

// receiveLoop reads RTP packets and feeds accepted payloads to the
// waterfall.
func (ar *AudioReceiver) receiveLoop() {
	buffer := make([]byte, 65536)

	for ar.isRunning() {
		n, _, err := ar.conn.ReadFromUDP(buffer)
		if err != nil {
			if !ar.isRunning() {
				break
			}
			log.Printf("Error reading UDP packet: %v", err)
			continue
		}

		if n < 12 {
			// too small to be valid RTP
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buffer[:n]); err != nil {
			log.Printf("Error parsing RTP packet: %v", err)
			if ar.metrics != nil {
				ar.metrics.AudioErrors.Inc()
			}
			continue
		}

		if !ar.acceptSSRC(packet.SSRC) {
			continue
		}

		samples := bytesToInt16Samples(packet.Payload)
		if len(samples) == 0 {
			continue
		}

		ar.waterfall.Update(ar.decimator.Decimate(samples))

		if ar.metrics != nil {
			ar.metrics.AudioPackets.Inc()
			ar.metrics.AudioSamples.Add(float64(len(samples)))
		}
	}
}

// acceptSSRC filters the group down to one stream. With no configured
// stream the first SSRC seen wins until Stop.
func (ar *AudioReceiver) acceptSSRC(ssrc uint32) bool {
	if ar.ssrc != 0 {
		return ssrc == ar.ssrc
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.lockedSSRC == 0 {
		ar.lockedSSRC = ssrc
		log.Printf("Audio receiver locked to SSRC %d", ssrc)
	}

	return ssrc == ar.lockedSSRC
}

// bytesToInt16Samples converts big-endian PCM bytes to int16 samples.
func bytesToInt16Samples(pcmBytes []byte) []int16 {
	sampleCount := len(pcmBytes) / 2
	samples := make([]int16, sampleCount)

	for i := 0; i < sampleCount; i++ {
		samples[i] = int16(pcmBytes[i*2])<<8 | int16(pcmBytes[i*2+1])
	}

	return samples
}
