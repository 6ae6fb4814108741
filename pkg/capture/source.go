// ABOUTME: Capture source abstraction
// ABOUTME: Defines the Source interface implemented by microphones, files and generators
package capture

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/voicerec/recmeter/pkg/audio"
)

// DefaultBufferFrames is the number of frames per delivered buffer
// (about 23ms at 44.1kHz)
const DefaultBufferFrames = 1024

// ErrUnsupportedFormat is returned when a source cannot produce the requested format
var ErrUnsupportedFormat = errors.New("unsupported capture format")

// ErrPortAudioDisabled is returned when the binary was built without PortAudio
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// Source delivers captured PCM buffers
type Source interface {
	// Format returns the format of every buffer this source produces.
	// It is constant for the lifetime of the source.
	Format() audio.Format

	// Read blocks until the next buffer is available. It returns io.EOF
	// when a finite source is exhausted.
	Read(ctx context.Context) (audio.Buffer, error)

	// Name identifies the source in logs and displays
	Name() string

	// Close releases the underlying device or file
	Close() error
}

// Rewinder is implemented by finite sources that can restart from the beginning
type Rewinder interface {
	Rewind() error
}

// OpenFile opens an audio file as a capture source, choosing the decoder
// by extension.
func OpenFile(path string, bufferFrames int) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return NewMP3Source(path, bufferFrames)
	case ".flac":
		return NewFLACSource(path, bufferFrames)
	default:
		return nil, fmt.Errorf("unsupported audio file: %s (supported: .mp3, .flac)", ext)
	}
}
