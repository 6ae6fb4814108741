// ABOUTME: Recording session driving a capture source
// ABOUTME: Reads buffers, paces file sources, owns the volume and feeds the meter probe
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

// BufferProbe inspects every captured buffer. *meter.Probe implements it.
type BufferProbe interface {
	Process(buf audio.Buffer) (meter.Update, bool)
}

// Monitor plays captured buffers back. *output.Oto implements it.
type Monitor interface {
	Write(buf audio.Buffer) error
}

// SessionConfig configures a Session
type SessionConfig struct {
	Source Source

	// Probe overrides the probe built from Meter
	Probe BufferProbe

	// Meter configures the session's probe when Probe is nil. A nil
	// Meter.Volume is bound to the session volume.
	Meter meter.ProbeConfig

	// Monitor is optional; write errors are logged and disable monitoring
	Monitor Monitor

	// Realtime paces reads to the buffer duration, for sources that are
	// faster than real time (files, generators)
	Realtime bool

	// Loop rewinds finite sources at EOF instead of ending the session
	Loop bool

	// Volume is the initial volume in [0, 1]; zero value means 1.0
	Volume float64
}

// Session pulls buffers from a source and hands them to the probe on the
// capture goroutine
type Session struct {
	config SessionConfig

	// volume stored as float64 bits
	volume atomic.Uint64

	buffers atomic.Uint64
}

// NewSession creates a new recording session
func NewSession(config SessionConfig) (*Session, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("session requires a source")
	}

	s := &Session{config: config}
	if s.config.Probe == nil {
		probeConfig := config.Meter
		if probeConfig.Volume == nil {
			probeConfig.Volume = s
		}
		s.config.Probe = meter.NewProbe(probeConfig)
	}

	volume := config.Volume
	if volume == 0 {
		volume = 1.0
	}
	s.SetVolume(volume)
	return s, nil
}

// SetVolume sets the volume, clamped to [0, 1]
func (s *Session) SetVolume(volume float64) {
	if math.IsNaN(volume) || volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	s.volume.Store(math.Float64bits(volume))
}

// Volume returns the current volume
func (s *Session) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// Buffers returns how many buffers have been read from the source
func (s *Session) Buffers() uint64 {
	return s.buffers.Load()
}

// Format returns the source format
func (s *Session) Format() audio.Format {
	return s.config.Source.Format()
}

// Run reads from the source until ctx is cancelled or the source ends.
// Cancellation and end of stream return nil.
func (s *Session) Run(ctx context.Context) error {
	source := s.config.Source
	monitor := s.config.Monitor

	log.Printf("Session started: %s (%s)", source.Name(), source.Format())

	var (
		start    time.Time
		captured time.Duration
	)

	for {
		buf, err := source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("Session stopped: %s", source.Name())
				return nil
			}
			if errors.Is(err, io.EOF) {
				if rw, ok := source.(Rewinder); ok && s.config.Loop {
					if err := rw.Rewind(); err != nil {
						return fmt.Errorf("failed to rewind %s: %w", source.Name(), err)
					}
					log.Printf("Looping %s", source.Name())
					continue
				}
				log.Printf("Session finished: %s (%d buffers)", source.Name(), s.buffers.Load())
				return nil
			}
			return fmt.Errorf("failed to read from %s: %w", source.Name(), err)
		}

		s.buffers.Add(1)

		s.config.Probe.Process(buf)

		if monitor != nil {
			if err := monitor.Write(buf); err != nil {
				log.Printf("Monitor write failed, disabling monitor: %v", err)
				monitor = nil
			}
		}

		if s.config.Realtime {
			if start.IsZero() {
				start = time.Now()
			}
			captured += buf.Duration()
			if err := sleepUntil(ctx, start.Add(captured)); err != nil {
				log.Printf("Session stopped: %s", source.Name())
				return nil
			}
		}
	}
}

// sleepUntil waits for deadline or ctx cancellation
func sleepUntil(ctx context.Context, deadline time.Time) error {
	wait := time.Until(deadline)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
