// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for monitor playback backends
package output

import "github.com/voicerec/recmeter/pkg/audio"

// Output represents an audio output device used to monitor captured audio
type Output interface {
	// Open initializes the output device for buffers of the given format
	Open(format audio.Format) error

	// Write plays one captured buffer (blocks until written)
	Write(buf audio.Buffer) error

	// Close releases output resources
	Close() error
}
