// ABOUTME: Level metering package for captured PCM buffers
// ABOUTME: Provides peak resolution, channel extraction, normalization and the display hand-off
// Package meter converts raw PCM buffers into per-channel loudness levels.
//
// The package is built from three pure pieces:
//   - PeakValue: the largest magnitude a format can represent
//   - ChannelMaxAbs: the largest absolute sample per channel
//   - Levels: validation, dispatch and normalization against the peak
//
// Unsupported formats never produce errors. Non-PCM, big-endian and
// invalid formats yield no levels; formats without a usable peak yield a
// zero level per channel.
//
// A Probe wraps Levels for use inside a capture callback: it samples the
// live volume, scales the levels and pushes an Update onto a bounded Queue
// that the display drains on its own goroutine.
//
// Example:
//
//	queue := meter.NewQueue(meter.DefaultQueueCapacity)
//	probe := meter.NewProbe(meter.ProbeConfig{Queue: queue})
//
//	// capture goroutine
//	probe.Process(buf)
//
//	// display goroutine
//	for u := range queue.Updates(ctx) {
//	    draw(u.Levels)
//	}
package meter
