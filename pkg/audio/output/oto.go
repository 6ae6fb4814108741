// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays captured buffers as 16-bit PCM with software volume control using oto library
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/voicerec/recmeter/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	volume     int
	muted      bool
	ready      bool
	mu         sync.Mutex
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		volume: 100,
		muted:  false,
	}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	if audio.KindOf(format) == audio.KindNone {
		return fmt.Errorf("unsupported monitor format: %s", format)
	}

	// If already initialized with same format, reuse the existing context
	if o.otoCtx != nil && o.format.SampleRate == format.SampleRate && o.format.Channels == format.Channels {
		log.Printf("Monitor output already initialized with same format, reusing context")
		o.format = format
		return nil
	}

	// oto only allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("monitor format change (%dHz %dch -> %dHz %dch) not supported",
			o.format.SampleRate, o.format.Channels, format.SampleRate, format.Channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.ready = true

	log.Printf("Monitor output initialized: %dHz, %d channels", format.SampleRate, format.Channels)

	return nil
}

// Write plays a captured buffer (blocks until written)
func (o *Oto) Write(buf audio.Buffer) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	o.mu.Lock()
	multiplier := getVolumeMultiplier(o.volume, o.muted)
	o.mu.Unlock()

	output := EncodeS16LE(buf, multiplier)

	// Write to pipe (which feeds the persistent player)
	if _, err := o.pipeWriter.Write(output); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.mu.Unlock()
	log.Printf("Monitor muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// EncodeS16LE converts any supported buffer to 16-bit little-endian PCM,
// applying multiplier with clipping protection. Unsigned samples are
// re-centered around zero.
func EncodeS16LE(buf audio.Buffer, multiplier float64) []byte {
	view := buf.View()
	n := buf.Frames * buf.Format.Channels
	if n > view.Len() {
		n = view.Len()
	}

	scale, offset := normalization(view.Kind)

	output := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := (view.At(i) - offset) / scale * multiplier * math.MaxInt16

		// Clamp to 16-bit range to prevent overflow
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}

		binary.LittleEndian.PutUint16(output[i*2:], uint16(int16(math.Round(v))))
	}
	return output
}

// normalization returns the full-scale magnitude and zero offset of a sample kind
func normalization(kind audio.Kind) (scale, offset float64) {
	switch kind {
	case audio.KindInt8:
		return math.MaxInt8, 0
	case audio.KindInt16:
		return math.MaxInt16, 0
	case audio.KindInt32:
		return math.MaxInt32, 0
	case audio.KindUint8:
		return math.MaxUint8 / 2.0, math.MaxUint8 / 2.0
	case audio.KindUint16:
		return math.MaxUint16 / 2.0, math.MaxUint16 / 2.0
	case audio.KindUint32:
		return math.MaxUint32 / 2.0, math.MaxUint32 / 2.0
	default:
		return 1, 0
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
