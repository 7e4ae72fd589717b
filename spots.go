package main

import (
	"strings"
	"time"
)

// Spot is one batch of freshly decoded text on a sub-channel,
// reported once per sync interval when a channel's text grew.
type Spot struct {
	Time       time.Time `json:"time"`
	Subchannel int       `json:"subchannel"`
	Text       string    `json:"text"`
	WPM        int       `json:"wpm"`
	SNR        int       `json:"snr"`
}

// SpotWatcher diffs each sub-channel's text buffer between syncs and
// turns the growth into spots. The waterfall trims its own text when
// the area fills, so the watcher keys on a per-channel running tail
// rather than buffer offsets.
type SpotWatcher struct {
	waterfall     *Waterfall
	samplesPerMin int
	lastText      map[int]string
}

// NewSpotWatcher returns a watcher over the waterfall's sub-channels.
// WPM figures come out in blocks of the internal rate.
func NewSpotWatcher(waterfall *Waterfall) *SpotWatcher {
	return &SpotWatcher{
		waterfall:     waterfall,
		samplesPerMin: (60 * waterfallRate) / waterfall.BlockSize(),
		lastText:      make(map[int]string),
	}
}

// Collect returns a spot per sub-channel whose text grew since the
// previous call.
func (sw *SpotWatcher) Collect() []Spot {
	var spots []Spot
	now := time.Now()

	first := sw.waterfall.FirstSubchannel()
	for i := 0; i < sw.waterfall.Subchannels(); i++ {
		subchannel := first + i
		text := sw.waterfall.Text(subchannel)
		prev := sw.lastText[subchannel]

		if text == prev {
			continue
		}
		sw.lastText[subchannel] = text

		fresh := text
		if prev != "" {
			if idx := strings.Index(text, prev); idx >= 0 {
				fresh = text[idx+len(prev):]
			} else if strings.HasPrefix(prev, textHead(text)) {
				// buffer was trimmed; report the whole tail
				fresh = text
			}
		}

		fresh = strings.TrimSpace(fresh)
		if fresh == "" {
			continue
		}

		spots = append(spots, Spot{
			Time:       now,
			Subchannel: subchannel,
			Text:       fresh,
			WPM:        sw.waterfall.Fist(subchannel).WPM(sw.samplesPerMin),
			SNR:        int(sw.waterfall.LastColour(subchannel)),
		})
	}

	return spots
}

func textHead(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
