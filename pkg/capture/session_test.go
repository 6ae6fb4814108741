// ABOUTME: Tests for the recording session
// ABOUTME: Covers end of stream, looping, volume, monitoring and cancellation
package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

// sliceSource replays a fixed list of buffers
type sliceSource struct {
	format  audio.Format
	buffers []audio.Buffer
	pos     int
	rewinds int
	readErr error
	closed  bool
	mu      sync.Mutex
}

func newSliceSource(n int) *sliceSource {
	format := pcm(audio.SignedInt, 16, 2)
	s := &sliceSource{format: format}
	for i := 0; i < n; i++ {
		s.buffers = append(s.buffers, audio.NewSampleBuffer(format, audio.ViewInt16([]int16{-32767, 0, 16384, 0})))
	}
	return s
}

func (s *sliceSource) Format() audio.Format { return s.format }
func (s *sliceSource) Name() string         { return "slice" }

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func (s *sliceSource) Read(ctx context.Context) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return audio.Buffer{}, s.readErr
	}
	if s.pos >= len(s.buffers) {
		return audio.Buffer{}, io.EOF
	}
	buf := s.buffers[s.pos]
	s.pos++
	return buf, nil
}

func (s *sliceSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	s.rewinds++
	return nil
}

type countingProbe struct {
	mu    sync.Mutex
	count int
}

func (p *countingProbe) Process(buf audio.Buffer) (meter.Update, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return meter.Update{}, true
}

type failingMonitor struct {
	writes int
}

func (m *failingMonitor) Write(buf audio.Buffer) error {
	m.writes++
	return errors.New("device gone")
}

func TestSessionRequiresSource(t *testing.T) {
	if _, err := NewSession(SessionConfig{}); err == nil {
		t.Error("expected error without a source")
	}
}

func TestSessionRunsUntilEOF(t *testing.T) {
	src := newSliceSource(5)
	probe := &countingProbe{}

	session, err := NewSession(SessionConfig{Source: src, Probe: probe})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("expected nil error at EOF, got %v", err)
	}

	if probe.count != 5 {
		t.Errorf("expected 5 probed buffers, got %d", probe.count)
	}
	if session.Buffers() != 5 {
		t.Errorf("expected 5 buffers, got %d", session.Buffers())
	}
}

func TestSessionDefaultProbeUsesVolume(t *testing.T) {
	src := newSliceSource(3)
	queue := meter.NewQueue(8)

	session, err := NewSession(SessionConfig{
		Source: src,
		Meter:  meter.ProbeConfig{Queue: queue},
		Volume: 0.5,
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if queue.Len() != 3 {
		t.Fatalf("expected 3 updates, got %d", queue.Len())
	}

	u, _ := queue.TryPop()
	if u.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", u.Volume)
	}
	// Left channel peaks at full scale, right is silent
	if u.Levels[0] != 0.5 || u.Levels[1] != 0 {
		t.Errorf("expected [0.5 0], got %v", u.Levels)
	}
}

func TestSessionLoop(t *testing.T) {
	src := newSliceSource(2)
	probe := &countingProbe{}

	session, _ := NewSession(SessionConfig{Source: src, Probe: probe, Loop: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for session.Buffers() < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("expected nil on cancel, got %v", err)
	}

	src.mu.Lock()
	rewinds := src.rewinds
	src.mu.Unlock()
	if rewinds == 0 {
		t.Error("expected the source to be rewound")
	}
}

func TestSessionReadError(t *testing.T) {
	src := newSliceSource(1)
	src.readErr = errors.New("device unplugged")

	session, _ := NewSession(SessionConfig{Source: src, Probe: &countingProbe{}})

	err := session.Run(context.Background())
	if err == nil || !errors.Is(err, src.readErr) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestSessionMonitorFailureKeepsMetering(t *testing.T) {
	src := newSliceSource(4)
	probe := &countingProbe{}
	monitor := &failingMonitor{}

	session, _ := NewSession(SessionConfig{Source: src, Probe: probe, Monitor: monitor})
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if monitor.writes != 1 {
		t.Errorf("expected monitor to be disabled after first failure, got %d writes", monitor.writes)
	}
	if probe.count != 4 {
		t.Errorf("expected 4 probed buffers, got %d", probe.count)
	}
}

func TestSessionRealtimeCancel(t *testing.T) {
	src, _ := NewToneSource(ToneConfig{Format: pcm(audio.SignedInt, 16, 1), BufferFrames: 48000})
	session, _ := NewSession(SessionConfig{Source: src, Probe: &countingProbe{}, Realtime: true})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := session.Run(ctx); err != nil {
		t.Errorf("expected nil on cancel, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("realtime pacing ignored cancellation, took %v", elapsed)
	}
	if session.Buffers() != 1 {
		t.Errorf("expected 1 paced buffer, got %d", session.Buffers())
	}
}

func TestSessionVolume(t *testing.T) {
	session, _ := NewSession(SessionConfig{Source: newSliceSource(0)})

	if session.Volume() != 1.0 {
		t.Errorf("expected default volume 1.0, got %v", session.Volume())
	}

	tests := []struct {
		set      float64
		expected float64
	}{
		{0.25, 0.25},
		{1.5, 1.0},
		{-1, 0},
	}
	for _, tt := range tests {
		session.SetVolume(tt.set)
		if got := session.Volume(); got != tt.expected {
			t.Errorf("SetVolume(%v): expected %v, got %v", tt.set, tt.expected, got)
		}
	}
}
