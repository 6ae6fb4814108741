// ABOUTME: Audio fundamentals package providing core PCM types
// ABOUTME: Defines Format, Buffer and the typed sample View
// Package audio provides the PCM types shared by capture sources and the level meter.
//
// This package defines:
//   - Format: Describes a PCM stream (codec, sample type, sample size, byte order, channels, rate)
//   - Buffer: One chunk of captured interleaved samples, borrowed per call
//   - View: A tagged variant over the typed sample slices a buffer can hold
//
// Raw little- or big-endian bytes are decoded into a View with DecodeView;
// sources that already hold typed samples wrap them without copying.
//
// Example:
//
//	format := audio.Format{
//	    Codec:      audio.CodecPCM,
//	    SampleRate: 44100,
//	    Channels:   2,
//	    SampleSize: 16,
//	    SampleType: audio.SignedInt,
//	    ByteOrder:  audio.LittleEndian,
//	}
//
//	buf := audio.NewBuffer(format, data)
//	view := buf.View() // view.Kind == audio.KindInt16
package audio
