//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package capture

import "github.com/voicerec/recmeter/pkg/audio"

// NewPortAudioSource always fails in builds without the portaudio tag
func NewPortAudioSource(format audio.Format, bufferFrames int) (Source, error) {
	return nil, ErrPortAudioDisabled
}
