// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM format descriptors and captured raw buffers
package audio

import (
	"fmt"
	"time"
)

// CodecPCM is the codec identifier for uncompressed linear PCM
const CodecPCM = "audio/pcm"

// SampleType describes how a single sample is encoded
type SampleType int

const (
	Unknown SampleType = iota
	SignedInt
	UnSignedInt
	Float
)

func (t SampleType) String() string {
	switch t {
	case SignedInt:
		return "SignedInt"
	case UnSignedInt:
		return "UnSignedInt"
	case Float:
		return "Float"
	default:
		return "Unknown"
	}
}

// ByteOrder of multi-byte samples in a raw buffer
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "BE"
	}
	return "LE"
}

// Format describes a PCM stream as reported by the capture device
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	SampleSize int // bits per sample
	SampleType SampleType
	ByteOrder  ByteOrder
}

// Valid reports whether every mandatory field of the format is set.
// The sample type is deliberately not checked here.
func (f Format) Valid() bool {
	return f.Codec != "" && f.SampleRate > 0 && f.Channels > 0 && f.SampleSize > 0
}

// IsPCM reports whether the codec is linear PCM
func (f Format) IsPCM() bool {
	return f.Codec == CodecPCM
}

// BytesPerFrame returns the size of one interleaved frame in bytes
func (f Format) BytesPerFrame() int {
	return f.Channels * f.SampleSize / 8
}

// Duration returns the playback time covered by the given number of frames
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// FramesIn returns how many frames fit in d
func (f Format) FramesIn(d time.Duration) int {
	return int(time.Duration(f.SampleRate) * d / time.Second)
}

func (f Format) String() string {
	if !f.IsPCM() {
		return fmt.Sprintf("%s %dHz %dch", f.Codec, f.SampleRate, f.Channels)
	}
	return fmt.Sprintf("%s %d-bit %s %dHz %dch", f.SampleType, f.SampleSize, f.ByteOrder, f.SampleRate, f.Channels)
}

// Buffer is one chunk of captured interleaved PCM (frame-major, channel-minor).
// It is only borrowed by consumers for the duration of a call.
type Buffer struct {
	Format    Format
	Frames    int
	Data      []byte    // raw bytes in Format.ByteOrder, may be nil when Samples is set
	Samples   View      // typed samples, takes precedence over Data when non-empty
	Timestamp time.Time // capture time
}

// NewBuffer wraps raw bytes, deriving the frame count from the format
func NewBuffer(format Format, data []byte) Buffer {
	frames := 0
	if bpf := format.BytesPerFrame(); bpf > 0 {
		frames = len(data) / bpf
	}
	return Buffer{
		Format:    format,
		Frames:    frames,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewSampleBuffer wraps already-typed samples without copying
func NewSampleBuffer(format Format, samples View) Buffer {
	frames := 0
	if format.Channels > 0 {
		frames = samples.Len() / format.Channels
	}
	return Buffer{
		Format:    format,
		Frames:    frames,
		Samples:   samples,
		Timestamp: time.Now(),
	}
}

// View returns the typed sample view of the buffer. Raw bytes are decoded
// according to the format; an unsupported layout yields an empty view.
func (b Buffer) View() View {
	if b.Samples.Kind != KindNone {
		return b.Samples
	}
	return DecodeView(b.Format, b.Data)
}

// Duration returns the playback time covered by the buffer
func (b Buffer) Duration() time.Duration {
	return b.Format.Duration(b.Frames)
}
