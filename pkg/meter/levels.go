// ABOUTME: Normalized per-channel audio levels
// ABOUTME: Validates a captured buffer and scales channel maxima against the format peak
package meter

import (
	"math"

	"github.com/voicerec/recmeter/pkg/audio"
)

// peakEpsilon is the tolerance under which a peak counts as zero
const peakEpsilon = 1e-12

// Levels returns the audio level for each channel of buf, nominally in
// [0, 1]. It returns nil when the buffer is not little-endian PCM and a
// zero level per channel when the format cannot be normalized.
func Levels(buf audio.Buffer) []float64 {
	return levels(buf, PeakValue(buf.Format))
}

// levels does the work of Levels with an already resolved peak
func levels(buf audio.Buffer, peak float64) []float64 {
	format := buf.Format
	if !format.Valid() || format.ByteOrder != audio.LittleEndian {
		return nil
	}
	if !format.IsPCM() {
		return nil
	}

	values := make([]float64, format.Channels)
	if math.Abs(peak) < peakEpsilon {
		return values
	}

	view := buf.View()
	if view.Kind != audio.KindOf(format) {
		// Typed samples that disagree with the declared format
		return values
	}

	switch format.SampleType {
	case audio.UnSignedInt:
		if view.Kind == audio.KindNone {
			break
		}
		// Unsigned samples oscillate around peak/2, not zero
		half := peak / 2
		raw := viewMaxAbs(view, buf.Frames, format.Channels)
		for i, v := range raw {
			values[i] = math.Abs(v-half) / half
		}
	case audio.SignedInt, audio.Float:
		if view.Kind == audio.KindNone {
			break
		}
		raw := viewMaxAbs(view, buf.Frames, format.Channels)
		for i, v := range raw {
			values[i] = v / peak
		}
	}

	return values
}

// Scale multiplies every level by volume in place and returns levels
func Scale(levels []float64, volume float64) []float64 {
	for i := range levels {
		levels[i] *= volume
	}
	return levels
}
