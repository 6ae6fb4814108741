// ABOUTME: Audio output package for monitoring captured audio
// ABOUTME: Provides the Output interface and an oto implementation
// Package output plays captured buffers back while they are metered.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(format)
//	err = out.Write(buf)
package output
