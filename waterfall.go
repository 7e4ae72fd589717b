package main

import (
	"fmt"
	"sync"
)

const (
	// Band threshold sits this many dB units over the running average,
	// roughly +5 dB of real signal-to-noise.
	waterfallThresholdDB = 8

	// Runs shorter than this decode to nothing.
	waterfallThresholdOnOff = 3

	// Running band average: avg <- (9*avg + block) / 10.
	waterfallThresholdCoefficient = 9

	waterfallFilterSize        = 4
	waterfallFilterCoefficient = 20
)

// waterfallChannel is the per-sub-channel state: the colour ring and
// its staging copy, the symbol run, the decoded text buffer, and the
// sender timing estimate. All of it is owned by the waterfall and
// sized once at construction.
type waterfallChannel struct {
	fist      *Fist
	colours   []DB
	inputs    []DB
	decodes   []Symbol
	text      []byte
	start     int
	textEnd   int
	filter    [waterfallFilterSize]DB
	updates   uint8
	threshold DB
}

// Waterfall splits an audio stream into narrow sub-channels, one DFT
// bin each, and decodes every sub-channel independently. The producer
// feeds Update from the capture callback; a consumer calls Sync to
// fold pending blocks into decodes and text, and reads the query
// surface for painting. A single mutex serialises both sides.
type Waterfall struct {
	mu sync.Mutex

	subchannels     int
	firstSubchannel int
	k               int // log2 of the analyser block size
	samples         int
	rows, cols      int

	buffer      []int16
	bufferCount int
	average     uint64

	channels []waterfallChannel
}

// NewWaterfall allocates a waterfall with fixed geometry: 2^k-sample
// analyser blocks, a colour ring of samples entries per sub-channel,
// sub-channels covering the bins from firstChannel to lastChannel,
// and a rows x cols text area each.
func NewWaterfall(k, samples, firstChannel, lastChannel, rows, cols int) (*Waterfall, error) {
	if k <= 2 {
		return nil, fmt.Errorf("block size 2^%d is too small", k)
	}
	if samples <= 0 {
		return nil, fmt.Errorf("invalid sample count %d", samples)
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid text geometry %dx%d", rows, cols)
	}
	if firstChannel < 0 || firstChannel >= 1<<(k-1) || lastChannel < 0 || lastChannel >= 1<<(k-1) {
		return nil, fmt.Errorf("bins %d..%d outside the %d-point analyser", firstChannel, lastChannel, 1<<k)
	}

	cos12Once.Do(cos12Init)

	first, count := firstChannel, 1+lastChannel-firstChannel
	if firstChannel > lastChannel {
		first, count = lastChannel, 1+firstChannel-lastChannel
	}

	w := &Waterfall{
		subchannels:     count,
		firstSubchannel: first,
		k:               k,
		samples:         samples,
		rows:            rows,
		cols:            cols,
		buffer:          make([]int16, 1<<k),
		channels:        make([]waterfallChannel, count),
	}

	for i := range w.channels {
		c := &w.channels[i]
		c.fist = NewFist()
		c.colours = make([]DB, samples)
		c.inputs = make([]DB, samples)
		c.decodes = make([]Symbol, samples)
		c.text = make([]byte, rows*cols)
		c.start = samples
	}

	return w, nil
}

// channel maps a sub-channel index to its state, nil when out of range.
func (w *Waterfall) channel(subchannel int) *waterfallChannel {
	if subchannel < w.firstSubchannel || subchannel >= w.firstSubchannel+w.subchannels {
		return nil
	}
	return &w.channels[subchannel-w.firstSubchannel]
}

// Update accepts any number of PCM samples at the internal rate,
// analysing each completed 2^k block into every sub-channel. Partial
// blocks are buffered across calls, so chunking does not change the
// result. The caller must not block inside the capture callback: this
// copies and returns.
func (w *Waterfall) Update(input []int16) {
	if w == nil || len(input) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	blocksize := 1 << w.k

	for len(input) > 0 {
		if w.bufferCount == 0 && len(input) >= blocksize {
			w.updateBlock(input[:blocksize])
			input = input[blocksize:]
			continue
		}

		n := copy(w.buffer[w.bufferCount:], input)
		w.bufferCount += n
		input = input[n:]

		if w.bufferCount == blocksize {
			w.updateBlock(w.buffer)
			w.bufferCount = 0
		}
	}
}

// updateBlock analyses one complete block: one DFT bin per
// sub-channel smoothed into the colour ring, and the block's mean
// power folded into the running band average.
func (w *Waterfall) updateBlock(block []int16) {
	blocksize := 1 << w.k

	var power uint64
	for _, x := range block {
		power += uint64(int64(x)*int64(x)) * 2
	}

	for i := range w.channels {
		c := &w.channels[i]

		copy(c.inputs, c.inputs[1:])

		copy(c.filter[:], c.filter[1:])
		c.filter[len(c.filter)-1] = w.dftBin(block, i+w.firstSubchannel)

		composite := 0
		for _, f := range c.filter {
			composite = (composite + (waterfallFilterCoefficient-1)*int(f)) / waterfallFilterCoefficient
		}
		c.inputs[w.samples-1] = DB(composite)

		if c.updates < 255 {
			c.updates++
		}
	}

	power /= uint64(blocksize * w.subchannels)

	w.average = (waterfallThresholdCoefficient*w.average + power) / (waterfallThresholdCoefficient + 1)
}

// dftBin evaluates a single bin of the block's spectrum and returns
// its power in dB units. Phase advances (4096*bin*i)>>k per sample
// through the 12-bit cosine table; the final shift removes the
// squared table scale and normalises to power per sample.
func (w *Waterfall) dftBin(block []int16, bin int) DB {
	var rl, im int64

	for i, x := range block {
		angle := (cos12Size * bin * i) >> w.k
		rl += int64(x) * int64(cos12(angle))
		im += int64(x) * int64(sin12(angle))
	}

	rl >>= w.k
	im >>= w.k

	return DBFromPower(uint64(rl*rl+im*im) >> (2 * cos12Bits))
}

// Sync flushes a sub-channel's pending analyser updates into its
// symbol run and text buffer, using the current band threshold. Safe
// to call from the consumer at any cadence; it processes whatever has
// accumulated since the last call.
func (w *Waterfall) Sync(subchannel int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return
	}

	threshold := DBFromPower(w.average) + waterfallThresholdDB

	for c.updates > 0 {
		updates := int(c.updates)
		if updates > w.samples {
			updates = w.samples
		}

		copy(c.colours, c.inputs)

		for w.textLines(c) >= w.rows {
			i := 0
			for i < len(c.text) && c.text[i] != 0 && i < w.cols && c.text[i] >= ' ' {
				i++
			}
			if i+1 >= len(c.text) {
				for j := range c.text {
					c.text[j] = 0
				}
				c.textEnd = 0
				break
			}
			copy(c.text, c.text[i+1:])
			for j := len(c.text) - i - 1; j < len(c.text); j++ {
				c.text[j] = 0
			}
			c.textEnd -= i + 1
			if c.textEnd < 0 {
				c.textEnd = 0
			}
		}

		c.threshold = threshold

		onoff := Decode(c.decodes, c.colours[w.samples-updates:], c.threshold, c.fist)

		if onoff < waterfallThresholdOnOff {
			*c.fist = Fist{}
			onoff = Decode(c.decodes, nil, c.threshold, c.fist)
		}

		if onoff < waterfallThresholdOnOff {
			for i := 0; i < w.samples && c.decodes[i].Age != 0; i++ {
				c.decodes[i].Text = 0
				c.decodes[i].Whitespace = 0
			}
			if c.textEnd < len(c.text) {
				c.text[c.textEnd] = 0
			}
		} else {
			SymbolText(c.text[c.textEnd:], c.decodes)
			c.textEnd += TrimAge(c.decodes, w.samples)
			if c.textEnd > len(c.text) {
				c.textEnd = len(c.text)
			}
		}

		c.updates -= uint8(updates)
	}
}

// SyncAll runs Sync over every sub-channel.
func (w *Waterfall) SyncAll() {
	for i := 0; i < w.subchannels; i++ {
		w.Sync(w.firstSubchannel + i)
	}
}

// Clear wipes a sub-channel's decoded text.
func (w *Waterfall) Clear(subchannel int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return
	}

	for i := range c.text {
		c.text[i] = 0
	}
	c.textEnd = 0
}

// Colours returns the sub-channel's colour ring, oldest first. The
// slice is a read-only view owned by the waterfall; nil when the
// sub-channel is out of range.
func (w *Waterfall) Colours(subchannel int) []DB {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return nil
	}
	return c.colours
}

// Symbols returns the sub-channel's symbol run as a read-only view.
func (w *Waterfall) Symbols(subchannel int) []Symbol {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return nil
	}
	return c.decodes
}

// LastColour returns the sub-channel's newest magnitude.
func (w *Waterfall) LastColour(subchannel int) DB {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil || len(c.colours) == 0 {
		return 0
	}
	return c.colours[len(c.colours)-1]
}

// Fist returns the sub-channel's current timing estimate.
func (w *Waterfall) Fist(subchannel int) *Fist {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return nil
	}
	return c.fist
}

// Start returns the paint offset of the sub-channel's ring.
func (w *Waterfall) Start(subchannel int) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return -1
	}
	return c.start
}

// Text returns the sub-channel's decoded text, empty when the
// sub-channel is out of range.
func (w *Waterfall) Text(subchannel int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return ""
	}

	end := 0
	for end < len(c.text) && c.text[end] != 0 {
		end++
	}
	return string(c.text[:end])
}

// TextLines counts display lines in the sub-channel's text, wrapping
// at the column width.
func (w *Waterfall) TextLines(subchannel int) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.channel(subchannel)
	if c == nil {
		return 0
	}
	return w.textLines(c)
}

func (w *Waterfall) textLines(c *waterfallChannel) int {
	if len(c.text) == 0 || c.text[0] == 0 {
		return 0
	}

	ret, cols := 1, 0
	for i := 0; i < len(c.text) && c.text[i] != 0; i++ {
		if c.text[i] == '\n' || cols >= w.cols {
			ret++
			cols = 0
		} else if c.text[i] >= ' ' {
			cols++
		}
	}

	return ret
}

// Average returns the running band average power.
func (w *Waterfall) Average() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.average
}

// Threshold returns the band-derived decode threshold in dB units.
func (w *Waterfall) Threshold() DB {
	w.mu.Lock()
	defer w.mu.Unlock()
	return DBFromPower(w.average) + waterfallThresholdDB
}

// FirstSubchannel returns the lowest sub-channel index.
func (w *Waterfall) FirstSubchannel() int { return w.firstSubchannel }

// Subchannels returns the sub-channel count.
func (w *Waterfall) Subchannels() int { return w.subchannels }

// Samples returns the colour ring depth.
func (w *Waterfall) Samples() int { return w.samples }

// BlockSize returns the analyser block size in samples.
func (w *Waterfall) BlockSize() int { return 1 << w.k }
