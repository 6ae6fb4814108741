// ABOUTME: Tests for the Prometheus metrics
// ABOUTME: Drives a real probe against an isolated registry
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

var _ meter.Observer = (*Metrics)(nil)

func s16Stereo() audio.Format {
	return audio.Format{
		Codec:      audio.CodecPCM,
		SampleRate: 48000,
		Channels:   2,
		SampleSize: 16,
		SampleType: audio.SignedInt,
	}
}

func TestMetricsFromProbe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	queue := meter.NewQueue(2)
	probe := meter.NewProbe(meter.ProbeConfig{Queue: queue, Observer: m})

	buf := audio.NewSampleBuffer(s16Stereo(), audio.ViewInt16([]int16{32767, 0}))
	for i := 0; i < 3; i++ {
		probe.Process(buf)
	}

	bigEndian := s16Stereo()
	bigEndian.ByteOrder = audio.BigEndian
	probe.Process(audio.NewBuffer(bigEndian, make([]byte, 8)))

	if got := testutil.ToFloat64(m.BuffersMetered); got != 3 {
		t.Errorf("expected 3 metered buffers, got %v", got)
	}
	if got := testutil.ToFloat64(m.BuffersRejected.WithLabelValues(bigEndian.String())); got != 1 {
		t.Errorf("expected 1 rejected buffer, got %v", got)
	}
	if got := testutil.ToFloat64(m.LevelsDropped); got != 1 {
		t.Errorf("expected 1 dropped update, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueLength); got != 2 {
		t.Errorf("expected queue depth 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChannelLevel.WithLabelValues("0")); got != 1 {
		t.Errorf("expected channel 0 level 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChannelLevel.WithLabelValues("1")); got != 0 {
		t.Errorf("expected channel 1 level 0, got %v", got)
	}
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	// Registering twice on separate registries must not panic
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestMetricsNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.BufferMetered(meter.Update{Levels: []float64{0.5}})
	m.BufferRejected(s16Stereo())
	m.UpdateDropped()
	m.QueueDepth(1)
	m.RelayClients.Inc()
	m.RelayMessages.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"recmeter_buffers_total",
		"recmeter_buffers_rejected_total",
		"recmeter_levels_dropped_total",
		"recmeter_queue_depth",
		"recmeter_channel_level",
		"recmeter_level",
		"recmeter_relay_clients",
		"recmeter_relay_messages_total",
	} {
		if !names[want] {
			t.Errorf("expected metric %s to be registered", want)
		}
	}
}
