// ABOUTME: MP3 file capture source
// ABOUTME: Decodes MP3 to 16-bit little-endian stereo PCM buffers
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

	"github.com/hajimehoshi/go-mp3"
	"github.com/voicerec/recmeter/pkg/audio"
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file         *os.File
	decoder      *mp3.Decoder
	format       audio.Format
	bufferFrames int
	title        string
}

// NewMP3Source creates a new MP3 capture source
func NewMP3Source(filePath string, bufferFrames int) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", title, decoder.SampleRate())

	return &MP3Source{
		file:    f,
		decoder: decoder,
		// The decoder always produces 16-bit little-endian stereo
		format: audio.Format{
			Codec:      audio.CodecPCM,
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			SampleSize: 16,
			SampleType: audio.SignedInt,
			ByteOrder:  audio.LittleEndian,
		},
		bufferFrames: bufferFrames,
		title:        title,
	}, nil
}

func (s *MP3Source) Format() audio.Format { return s.format }
func (s *MP3Source) Name() string         { return s.title }
func (s *MP3Source) Close() error         { return s.file.Close() }

// Read decodes the next buffer. A short final buffer is returned before io.EOF.
func (s *MP3Source) Read(ctx context.Context) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	bpf := s.format.BytesPerFrame()
	data := make([]byte, s.bufferFrames*bpf)

	n, err := io.ReadFull(s.decoder, data)
	n -= n % bpf
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return audio.Buffer{}, err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return audio.Buffer{}, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return audio.NewBuffer(s.format, data[:n]), nil
}

// Rewind restarts decoding from the beginning of the file
func (s *MP3Source) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.decoder = decoder
	return nil
}
