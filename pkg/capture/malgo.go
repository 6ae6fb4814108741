// ABOUTME: Malgo-based microphone capture
// ABOUTME: Uses miniaudio via malgo and hands callback data to Read through a bounded channel
package capture

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/voicerec/recmeter/pkg/audio"
)

// malgoBacklog is how many captured buffers may wait for Read before new
// ones are dropped
const malgoBacklog = 32

// MalgoSource captures from the default input device
type MalgoSource struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format

	buffers chan audio.Buffer
	done    chan struct{}
	dropped atomic.Uint64

	closeOnce sync.Once
}

// NewMalgoSource opens and starts the default capture device
func NewMalgoSource(format audio.Format, bufferFrames int) (*MalgoSource, error) {
	deviceFormat, err := malgoFormat(format)
	if err != nil {
		return nil, err
	}
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	s := &MalgoSource{
		malgoCtx: malgoCtx,
		format:   format,
		buffers:  make(chan audio.Buffer, malgoBacklog),
		done:     make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = deviceFormat
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(bufferFrames)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.dataCallback(pInputSamples, frameCount)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		s.freeContext()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}
	s.device = device

	log.Printf("Audio capture initialized: %s (malgo/%s)", format, formatName(deviceFormat))
	return s, nil
}

// malgoFormat maps a PCM format to the device sample format
func malgoFormat(format audio.Format) (malgo.FormatType, error) {
	if !format.Valid() || !format.IsPCM() || format.ByteOrder != audio.LittleEndian {
		return malgo.FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	switch audio.KindOf(format) {
	case audio.KindUint8:
		return malgo.FormatU8, nil
	case audio.KindInt16:
		return malgo.FormatS16, nil
	case audio.KindInt32:
		return malgo.FormatS32, nil
	case audio.KindFloat32:
		return malgo.FormatF32, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("%w: %s (malgo supports u8, s16le, s32le, f32le)", ErrUnsupportedFormat, format)
	}
}

// dataCallback runs on the audio thread and must not block
func (s *MalgoSource) dataCallback(input []byte, frameCount uint32) {
	n := int(frameCount) * s.format.BytesPerFrame()
	if n > len(input) {
		n = len(input)
	}
	data := make([]byte, n)
	copy(data, input[:n])

	select {
	case s.buffers <- audio.NewBuffer(s.format, data):
	default:
		if s.dropped.Add(1)%100 == 1 {
			log.Printf("Capture backlog full, dropped %d buffers so far", s.dropped.Load())
		}
	}
}

func (s *MalgoSource) Format() audio.Format { return s.format }
func (s *MalgoSource) Name() string         { return "Default input (malgo)" }

// Dropped returns how many captured buffers were discarded because Read fell behind
func (s *MalgoSource) Dropped() uint64 { return s.dropped.Load() }

// Read waits for the next captured buffer
func (s *MalgoSource) Read(ctx context.Context) (audio.Buffer, error) {
	select {
	case buf := <-s.buffers:
		return buf, nil
	case <-s.done:
		return audio.Buffer{}, io.EOF
	case <-ctx.Done():
		return audio.Buffer{}, ctx.Err()
	}
}

// Close stops the device and releases the malgo context
func (s *MalgoSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				log.Printf("Warning: device stop error: %v", err)
			}
			s.device.Uninit()
			s.device = nil
		}
		s.freeContext()
	})
	return nil
}

func (s *MalgoSource) freeContext() {
	if s.malgoCtx == nil {
		return
	}
	if err := s.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	s.malgoCtx.Free()
	s.malgoCtx = nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
