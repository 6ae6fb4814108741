// ABOUTME: Peak reference values for PCM formats
// ABOUTME: Maps a format to the largest magnitude its samples can hold
package meter

import (
	"math"
	"sync"

	"github.com/voicerec/recmeter/pkg/audio"
)

// FloatPeak sits just above 1.0 so full-scale float samples never
// normalize to exactly 1.0.
const FloatPeak = 1.00003

// PeakValue returns the maximum possible sample magnitude for format,
// or 0 when the format cannot be normalized.
func PeakValue(format audio.Format) float64 {
	// Only the most common sample formats are supported
	if !format.Valid() || !format.IsPCM() {
		return 0
	}

	switch format.SampleType {
	case audio.Float:
		if format.SampleSize != 32 {
			return 0
		}
		return FloatPeak
	case audio.SignedInt:
		switch format.SampleSize {
		case 32:
			return math.MaxInt32
		case 16:
			return math.MaxInt16
		case 8:
			return math.MaxInt8
		}
	case audio.UnSignedInt:
		switch format.SampleSize {
		case 32:
			return math.MaxUint32
		case 16:
			return math.MaxUint16
		case 8:
			return math.MaxUint8
		}
	}

	return 0
}

// PeakCache memoizes PeakValue per format. The format of a capture
// session rarely changes, so lookups are almost always hits.
type PeakCache struct {
	mu    sync.RWMutex
	peaks map[audio.Format]float64
}

// NewPeakCache creates an empty cache
func NewPeakCache() *PeakCache {
	return &PeakCache{peaks: make(map[audio.Format]float64)}
}

// Peak returns the cached peak for format, resolving it on first use
func (c *PeakCache) Peak(format audio.Format) float64 {
	c.mu.RLock()
	peak, ok := c.peaks[format]
	c.mu.RUnlock()
	if ok {
		return peak
	}

	peak = PeakValue(format)

	c.mu.Lock()
	c.peaks[format] = peak
	c.mu.Unlock()
	return peak
}

// Len returns the number of formats seen so far
func (c *PeakCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peaks)
}
