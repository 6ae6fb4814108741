// ABOUTME: Buffer probe turning captured buffers into display updates
// ABOUTME: Samples the live volume, meters each buffer and hands levels to consumers
package meter

import (
	"sync/atomic"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
)

// VolumeSource provides the live output volume, typically in [0, 1]
type VolumeSource interface {
	Volume() float64
}

// VolumeFunc adapts a plain function to VolumeSource
type VolumeFunc func() float64

func (f VolumeFunc) Volume() float64 { return f() }

// Observer receives instrumentation events from a Probe
type Observer interface {
	BufferMetered(u Update)
	BufferRejected(format audio.Format)
	UpdateDropped()
	QueueDepth(n int)
}

// ProbeConfig wires a probe to its collaborators. Every field is optional.
type ProbeConfig struct {
	// Volume is sampled once per buffer; nil means unity gain
	Volume VolumeSource

	// Queue receives every update (drop-oldest when the display lags)
	Queue *Queue

	// OnLevels is called synchronously on the capture goroutine
	OnLevels func(Update)

	// Observer is notified about metered, rejected and dropped buffers
	Observer Observer
}

// Probe meters buffers delivered by a capture session. It keeps no
// reference to a buffer after Process returns.
type Probe struct {
	config ProbeConfig
	peaks  *PeakCache
	seq    atomic.Uint64
}

// NewProbe creates a probe
func NewProbe(config ProbeConfig) *Probe {
	return &Probe{
		config: config,
		peaks:  NewPeakCache(),
	}
}

// Process meters buf and forwards the volume-scaled levels. It returns
// false when the buffer format was rejected and nothing was emitted.
func (p *Probe) Process(buf audio.Buffer) (Update, bool) {
	volume := 1.0
	if p.config.Volume != nil {
		volume = p.config.Volume.Volume()
	}

	values := levels(buf, p.peaks.Peak(buf.Format))
	if values == nil {
		if p.config.Observer != nil {
			p.config.Observer.BufferRejected(buf.Format)
		}
		return Update{}, false
	}

	ts := buf.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	u := Update{
		Seq:    p.seq.Add(1),
		Time:   ts,
		Volume: volume,
		Levels: Scale(values, volume),
	}

	if p.config.OnLevels != nil {
		p.config.OnLevels(u)
	}

	if q := p.config.Queue; q != nil {
		dropped := q.Push(u)
		if obs := p.config.Observer; obs != nil {
			if dropped {
				obs.UpdateDropped()
			}
			obs.QueueDepth(q.Len())
		}
	}

	if p.config.Observer != nil {
		p.config.Observer.BufferMetered(u)
	}

	return u, true
}

// Processed returns how many buffers produced an update
func (p *Probe) Processed() uint64 {
	return p.seq.Load()
}
