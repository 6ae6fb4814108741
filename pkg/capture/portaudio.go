//go:build portaudio

// ABOUTME: PortAudio microphone capture
// ABOUTME: Blocking reads from the default input stream using PortAudio
package capture

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/voicerec/recmeter/pkg/audio"
)

// PortAudioSource captures from the default input device
type PortAudioSource struct {
	stream *portaudio.Stream
	format audio.Format
	kind   audio.Kind

	// exactly one of these is bound to the stream
	i16 []int16
	i32 []int32
	f32 []float32

	mu     sync.Mutex
	closed bool
}

// NewPortAudioSource opens and starts the default input stream
func NewPortAudioSource(format audio.Format, bufferFrames int) (Source, error) {
	if !format.Valid() || !format.IsPCM() || format.ByteOrder != audio.LittleEndian {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}

	s := &PortAudioSource{format: format, kind: audio.KindOf(format)}
	n := bufferFrames * format.Channels

	var buf interface{}
	switch s.kind {
	case audio.KindInt16:
		s.i16 = make([]int16, n)
		buf = s.i16
	case audio.KindInt32:
		s.i32 = make([]int32, n)
		buf = s.i32
	case audio.KindFloat32:
		s.f32 = make([]float32, n)
		buf = s.f32
	default:
		return nil, fmt.Errorf("%w: %s (portaudio supports s16le, s32le, f32le)", ErrUnsupportedFormat, format)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), bufferFrames, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}
	s.stream = stream

	log.Printf("Audio capture initialized: %s (portaudio)", format)
	return s, nil
}

func (s *PortAudioSource) Format() audio.Format { return s.format }
func (s *PortAudioSource) Name() string         { return "Default input (portaudio)" }

// Read blocks until the stream buffer has been filled
func (s *PortAudioSource) Read(ctx context.Context) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audio.Buffer{}, io.EOF
	}

	if err := s.stream.Read(); err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read from stream: %w", err)
	}

	// The bound slice is reused by the next Read, so hand out a copy
	var view audio.View
	switch s.kind {
	case audio.KindInt16:
		view = audio.ViewInt16(append([]int16(nil), s.i16...))
	case audio.KindInt32:
		view = audio.ViewInt32(append([]int32(nil), s.i32...))
	case audio.KindFloat32:
		view = audio.ViewFloat32(append([]float32(nil), s.f32...))
	}
	return audio.NewSampleBuffer(s.format, view), nil
}

// Close stops the stream and terminates PortAudio
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.stream.Stop(); err != nil {
		log.Printf("Warning: stream stop error: %v", err)
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
