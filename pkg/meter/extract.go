// ABOUTME: Per-channel maximum absolute sample extraction
// ABOUTME: Single pass over interleaved samples for any sample representation
package meter

import (
	"math"

	"github.com/voicerec/recmeter/pkg/audio"
)

// ChannelMaxAbs returns, for each channel, the largest absolute sample
// value across the first frames frames of an interleaved buffer.
func ChannelMaxAbs[T audio.Sample](samples []T, frames, channels int) []float64 {
	if channels <= 0 {
		return nil
	}

	maxValues := make([]float64, channels)

	// Never read past the samples actually delivered
	if avail := len(samples) / channels; frames > avail {
		frames = avail
	}

	for i := 0; i < frames; i++ {
		frame := samples[i*channels : (i+1)*channels]
		for j, s := range frame {
			if value := math.Abs(float64(s)); value > maxValues[j] {
				maxValues[j] = value
			}
		}
	}

	return maxValues
}

// viewMaxAbs dispatches a tagged view to the matching typed extraction
func viewMaxAbs(v audio.View, frames, channels int) []float64 {
	switch v.Kind {
	case audio.KindInt8:
		return ChannelMaxAbs(v.I8, frames, channels)
	case audio.KindInt16:
		return ChannelMaxAbs(v.I16, frames, channels)
	case audio.KindInt32:
		return ChannelMaxAbs(v.I32, frames, channels)
	case audio.KindUint8:
		return ChannelMaxAbs(v.U8, frames, channels)
	case audio.KindUint16:
		return ChannelMaxAbs(v.U16, frames, channels)
	case audio.KindUint32:
		return ChannelMaxAbs(v.U32, frames, channels)
	case audio.KindFloat32:
		return ChannelMaxAbs(v.F32, frames, channels)
	}
	return make([]float64, max(channels, 0))
}
