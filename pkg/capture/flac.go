// ABOUTME: FLAC file capture source
// ABOUTME: Delivers FLAC frames as typed signed-integer PCM buffers at native bit depth
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/voicerec/recmeter/pkg/audio"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file         *os.File
	stream       *flac.Stream
	format       audio.Format
	bitDepth     int
	bufferFrames int
	title        string

	// decoded samples not yet delivered, interleaved
	pending []int32
}

// NewFLACSource creates a new FLAC capture source
func NewFLACSource(filePath string, bufferFrames int) (*FLACSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	sampleRate := int(info.SampleRate)
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	format, err := flacFormat(sampleRate, channels, bitDepth)
	if err != nil {
		f.Close()
		return nil, err
	}

	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		title, sampleRate, channels, bitDepth)

	return &FLACSource{
		file:         f,
		stream:       stream,
		format:       format,
		bitDepth:     bitDepth,
		bufferFrames: bufferFrames,
		title:        title,
	}, nil
}

// flacFormat picks the smallest meterable sample size that holds bitDepth.
// Depths above 16 bits are widened to 32.
func flacFormat(sampleRate, channels, bitDepth int) (audio.Format, error) {
	var size int
	switch {
	case bitDepth <= 0 || bitDepth > 32:
		return audio.Format{}, fmt.Errorf("%w: %d-bit FLAC", ErrUnsupportedFormat, bitDepth)
	case bitDepth <= 8:
		size = 8
	case bitDepth <= 16:
		size = 16
	default:
		size = 32
	}

	return audio.Format{
		Codec:      audio.CodecPCM,
		SampleRate: sampleRate,
		Channels:   channels,
		SampleSize: size,
		SampleType: audio.SignedInt,
		ByteOrder:  audio.LittleEndian,
	}, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }
func (s *FLACSource) Name() string         { return s.title }
func (s *FLACSource) Close() error         { return s.file.Close() }

// Read returns the next buffer of up to bufferFrames frames
func (s *FLACSource) Read(ctx context.Context) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	channels := s.format.Channels
	want := s.bufferFrames * channels

	var readErr error
	for len(s.pending) < want {
		frame, err := s.stream.ParseNext()
		if err != nil {
			readErr = err
			break
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				s.pending = append(s.pending, frame.Subframes[ch].Samples[i])
			}
		}
	}

	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return audio.Buffer{}, fmt.Errorf("failed to decode FLAC frame: %w", readErr)
	}
	if len(s.pending) == 0 {
		return audio.Buffer{}, io.EOF
	}

	n := min(want, len(s.pending))
	view := s.toView(s.pending[:n])
	s.pending = s.pending[n:]

	return audio.NewSampleBuffer(s.format, view), nil
}

// toView converts native-depth samples to the delivered sample size
func (s *FLACSource) toView(samples []int32) audio.View {
	switch s.format.SampleSize {
	case 8:
		out := make([]int8, len(samples))
		shift := 8 - s.bitDepth
		for i, v := range samples {
			out[i] = int8(v << shift)
		}
		return audio.ViewInt8(out)
	case 16:
		out := make([]int16, len(samples))
		shift := 16 - s.bitDepth
		for i, v := range samples {
			out[i] = int16(v << shift)
		}
		return audio.ViewInt16(out)
	default:
		out := make([]int32, len(samples))
		shift := 32 - s.bitDepth
		for i, v := range samples {
			out[i] = v << shift
		}
		return audio.ViewInt32(out)
	}
}

// Rewind restarts decoding from the beginning of the file
func (s *FLACSource) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new stream: %w", err)
	}
	s.stream = stream
	s.pending = nil
	return nil
}
