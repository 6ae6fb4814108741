// Package capture produces PCM buffers for metering.
//
// A Source delivers buffers from a microphone (malgo, or portaudio with
// the portaudio build tag), a decoded file (MP3, FLAC) or a generated
// test tone. A Session drives one source on its own goroutine and hands
// every buffer to a meter probe while owning the live volume setting.
//
// Example:
//
//	src, _ := capture.NewToneSource(capture.ToneConfig{Format: format})
//	session, _ := capture.NewSession(capture.SessionConfig{
//		Source:   src,
//		Meter:    meter.ProbeConfig{Queue: queue},
//		Realtime: true,
//	})
//	go session.Run(ctx)
package capture
