package main

import "fmt"

// The analyser runs at a fixed internal rate; capture devices deliver
// whatever they deliver. The decimator drops samples on a phase
// accumulator so any supported input rate lands on the internal rate
// without floating point. CW sub-channels sit well below the folded
// spectrum, so plain decimation is enough here.

// waterfallRate is the internal sample rate in Hz.
const waterfallRate = 6400

// Decimator reduces one PCM stream to the internal rate. It keeps its
// phase between calls, so chunk boundaries don't shift the output.
type Decimator struct {
	inRate  int
	acc     int
	scratch []int16
}

// NewDecimator returns a decimator for one of the supported capture
// rates.
func NewDecimator(inRate int) (*Decimator, error) {
	switch inRate {
	case 8000, 16000, 32000, 44100:
	default:
		return nil, fmt.Errorf("unsupported capture rate %d Hz", inRate)
	}

	return &Decimator{
		inRate:  inRate,
		scratch: make([]int16, 0, 4096),
	}, nil
}

// Decimate returns the input reduced to the internal rate. The
// returned slice is valid until the next call.
func (d *Decimator) Decimate(in []int16) []int16 {
	out := d.scratch[:0]

	for _, s := range in {
		d.acc += waterfallRate
		if d.acc >= d.inRate {
			d.acc -= d.inRate
			out = append(out, s)
		}
	}

	d.scratch = out[:0]
	return out
}

// Rate returns the configured capture rate.
func (d *Decimator) Rate() int { return d.inRate }
