// ABOUTME: Tests for the buffer probe
// ABOUTME: Tests volume scaling, sequencing, queue hand-off and observer events
package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
)

type recordingObserver struct {
	mu       sync.Mutex
	metered  int
	rejected int
	dropped  int
	depth    int
}

func (o *recordingObserver) BufferMetered(Update) {
	o.mu.Lock()
	o.metered++
	o.mu.Unlock()
}

func (o *recordingObserver) BufferRejected(audio.Format) {
	o.mu.Lock()
	o.rejected++
	o.mu.Unlock()
}

func (o *recordingObserver) UpdateDropped() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func (o *recordingObserver) QueueDepth(n int) {
	o.mu.Lock()
	o.depth = n
	o.mu.Unlock()
}

func fullScaleStereo() audio.Buffer {
	format := pcmFormat(audio.SignedInt, 16, 2)
	return audio.NewSampleBuffer(format, audio.ViewInt16([]int16{32767, 0, -32767, 0}))
}

func TestProbeScalesByVolume(t *testing.T) {
	volume := 0.5
	probe := NewProbe(ProbeConfig{
		Volume: VolumeFunc(func() float64 { return volume }),
	})

	u, ok := probe.Process(fullScaleStereo())
	if !ok {
		t.Fatal("expected buffer to be metered")
	}
	if u.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", u.Volume)
	}
	if !approxEqual(u.Levels[0], 0.5, tolerance) || u.Levels[1] != 0 {
		t.Errorf("expected [0.5 0], got %v", u.Levels)
	}

	// Volume is sampled per buffer
	volume = 0.25
	u, _ = probe.Process(fullScaleStereo())
	if !approxEqual(u.Levels[0], 0.25, tolerance) {
		t.Errorf("expected 0.25 after volume change, got %v", u.Levels[0])
	}
}

func TestProbeUnityWithoutVolumeSource(t *testing.T) {
	probe := NewProbe(ProbeConfig{})

	u, _ := probe.Process(fullScaleStereo())
	if u.Volume != 1.0 || !approxEqual(u.Levels[0], 1.0, tolerance) {
		t.Errorf("expected unity gain, got volume %v levels %v", u.Volume, u.Levels)
	}
}

func TestProbeSequenceAndTimestamp(t *testing.T) {
	probe := NewProbe(ProbeConfig{})
	buf := fullScaleStereo()
	buf.Timestamp = time.Time{}

	first, _ := probe.Process(buf)
	second, _ := probe.Process(buf)

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("expected seq 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if first.Time.IsZero() {
		t.Error("expected missing capture time to be filled in")
	}
	if probe.Processed() != 2 {
		t.Errorf("expected 2 processed, got %d", probe.Processed())
	}
}

func TestProbeQueueAndCallback(t *testing.T) {
	queue := NewQueue(1)
	obs := &recordingObserver{}
	var seen []uint64

	probe := NewProbe(ProbeConfig{
		Queue:    queue,
		Observer: obs,
		OnLevels: func(u Update) { seen = append(seen, u.Seq) },
	})

	probe.Process(fullScaleStereo())
	probe.Process(fullScaleStereo())

	if len(seen) != 2 {
		t.Errorf("expected callback for both buffers, got %v", seen)
	}
	if obs.metered != 2 {
		t.Errorf("expected 2 metered, got %d", obs.metered)
	}
	if obs.dropped != 1 {
		t.Errorf("expected 1 dropped update with capacity 1, got %d", obs.dropped)
	}
	if obs.depth != 1 {
		t.Errorf("expected queue depth 1, got %d", obs.depth)
	}

	u, ok := queue.TryPop()
	if !ok || u.Seq != 2 {
		t.Errorf("expected newest update to survive, got %+v", u)
	}
}

func TestProbeRejectedBuffer(t *testing.T) {
	queue := NewQueue(4)
	obs := &recordingObserver{}
	called := false

	probe := NewProbe(ProbeConfig{
		Queue:    queue,
		Observer: obs,
		OnLevels: func(Update) { called = true },
	})

	format := pcmFormat(audio.SignedInt, 16, 2)
	format.ByteOrder = audio.BigEndian

	if _, ok := probe.Process(audio.NewBuffer(format, make([]byte, 16))); ok {
		t.Error("expected big-endian buffer to be rejected")
	}
	if called || queue.Len() != 0 {
		t.Error("rejected buffer must not reach consumers")
	}
	if obs.rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", obs.rejected)
	}
	if probe.Processed() != 0 {
		t.Errorf("expected no sequence numbers consumed, got %d", probe.Processed())
	}
}
