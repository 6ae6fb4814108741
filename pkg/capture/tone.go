// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave in any supported PCM format
package capture

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/voicerec/recmeter/pkg/audio"
)

// ToneConfig configures a ToneSource
type ToneConfig struct {
	Format       audio.Format
	Frequency    float64   // Hz, default 440
	Amplitude    float64   // 0..1 of full scale, default 0.5
	Gains        []float64 // optional per-channel gain applied on top of Amplitude
	BufferFrames int       // frames per buffer, default DefaultBufferFrames
}

// ToneSource generates a continuous sine wave
type ToneSource struct {
	config      ToneConfig
	kind        audio.Kind
	sampleIndex uint64
	sampleMu    sync.Mutex
}

// NewToneSource creates a new test tone generator
func NewToneSource(config ToneConfig) (*ToneSource, error) {
	kind := audio.KindOf(config.Format)
	if kind == audio.KindNone || !config.Format.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, config.Format)
	}
	if config.Frequency <= 0 {
		config.Frequency = 440.0 // A4 note
	}
	if config.Amplitude <= 0 || config.Amplitude > 1 {
		config.Amplitude = 0.5
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = DefaultBufferFrames
	}

	return &ToneSource{
		config: config,
		kind:   kind,
	}, nil
}

func (s *ToneSource) Format() audio.Format { return s.config.Format }
func (s *ToneSource) Name() string {
	return fmt.Sprintf("Test Tone (%.0fHz)", s.config.Frequency)
}
func (s *ToneSource) Close() error { return nil }

// Read generates the next buffer of samples
func (s *ToneSource) Read(ctx context.Context) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	format := s.config.Format
	frames := s.config.BufferFrames
	channels := format.Channels
	n := frames * channels

	values := make([]float64, n)
	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(format.SampleRate)
		sample := math.Sin(2*math.Pi*s.config.Frequency*t) * s.config.Amplitude

		for ch := 0; ch < channels; ch++ {
			values[i*channels+ch] = sample * s.gain(ch)
		}
	}
	s.sampleIndex += uint64(frames)

	return audio.NewSampleBuffer(format, s.toView(values)), nil
}

func (s *ToneSource) gain(ch int) float64 {
	if ch < len(s.config.Gains) {
		return s.config.Gains[ch]
	}
	return 1.0
}

// toView converts normalized [-1, 1] values to the source's sample kind
func (s *ToneSource) toView(values []float64) audio.View {
	switch s.kind {
	case audio.KindInt8:
		out := make([]int8, len(values))
		for i, v := range values {
			out[i] = int8(v * math.MaxInt8)
		}
		return audio.ViewInt8(out)
	case audio.KindInt16:
		out := make([]int16, len(values))
		for i, v := range values {
			out[i] = int16(v * math.MaxInt16)
		}
		return audio.ViewInt16(out)
	case audio.KindInt32:
		out := make([]int32, len(values))
		for i, v := range values {
			out[i] = int32(v * math.MaxInt32)
		}
		return audio.ViewInt32(out)
	case audio.KindUint8:
		out := make([]uint8, len(values))
		for i, v := range values {
			out[i] = uint8(math.Round(unsignedCenter(math.MaxUint8, v)))
		}
		return audio.ViewUint8(out)
	case audio.KindUint16:
		out := make([]uint16, len(values))
		for i, v := range values {
			out[i] = uint16(math.Round(unsignedCenter(math.MaxUint16, v)))
		}
		return audio.ViewUint16(out)
	case audio.KindUint32:
		out := make([]uint32, len(values))
		for i, v := range values {
			out[i] = uint32(math.Round(unsignedCenter(math.MaxUint32, v)))
		}
		return audio.ViewUint32(out)
	case audio.KindFloat32:
		out := make([]float32, len(values))
		for i, v := range values {
			out[i] = float32(v)
		}
		return audio.ViewFloat32(out)
	}
	return audio.View{}
}

// unsignedCenter maps v in [-1, 1] onto [0, peak] around peak/2
func unsignedCenter(peak, v float64) float64 {
	half := peak / 2
	return half + v*half
}
