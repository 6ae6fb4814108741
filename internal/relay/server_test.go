// ABOUTME: Tests for the level relay
// ABOUTME: Connects protocol clients to an in-process relay and checks the stream
package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/voicerec/recmeter/internal/metrics"
	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
	"github.com/voicerec/recmeter/pkg/protocol"
)

var s16Stereo = audio.Format{
	Codec:      audio.CodecPCM,
	SampleRate: 48000,
	Channels:   2,
	SampleSize: 16,
	SampleType: audio.SignedInt,
	ByteOrder:  audio.LittleEndian,
}

type recordedVolume struct {
	mu     sync.Mutex
	volume float64
	calls  int
}

func (r *recordedVolume) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = v
	r.calls++
}

func (r *recordedVolume) get() (float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume, r.calls
}

func startRelay(t *testing.T, config Config) (*Server, string) {
	t.Helper()
	if config.Name == "" {
		config.Name = "Test Relay"
	}
	if config.Format == (audio.Format{}) {
		config.Format = s16Stereo
	}
	s := New(config)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, strings.TrimPrefix(ts.URL, "http://")
}

func connect(t *testing.T, addr, id string) *protocol.Client {
	t.Helper()
	c := protocol.NewClient(protocol.Config{ServerAddr: addr, ClientID: id, Name: "display " + id})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayHandshakeAndFormat(t *testing.T) {
	s, addr := startRelay(t, Config{Source: "Test Tone (440Hz)"})
	c := connect(t, addr, "a")

	hello := c.Server()
	if hello.ServerID != s.ID() {
		t.Errorf("expected server ID %s, got %s", s.ID(), hello.ServerID)
	}
	if hello.Source != "Test Tone (440Hz)" {
		t.Errorf("expected source to be announced, got %q", hello.Source)
	}

	select {
	case f := <-c.Formats:
		if f.AudioFormat() != s16Stereo {
			t.Errorf("expected %v, got %v", s16Stereo, f.AudioFormat())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no stream/format received")
	}
}

func TestRelayBroadcastsInOrder(t *testing.T) {
	s, addr := startRelay(t, Config{})
	a := connect(t, addr, "a")
	b := connect(t, addr, "b")
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })

	for seq := uint64(1); seq <= 5; seq++ {
		s.Broadcast(meter.Update{Seq: seq, Volume: 1, Levels: []float64{0.5, 0.25}})
	}

	for _, c := range []*protocol.Client{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		for seq := uint64(1); seq <= 5; seq++ {
			u, err := c.Queue().Pop(ctx)
			if err != nil {
				cancel()
				t.Fatalf("pop failed: %v", err)
			}
			if u.Seq != seq {
				t.Errorf("expected seq %d, got %d", seq, u.Seq)
			}
			if len(u.Levels) != 2 || u.Levels[0] != 0.5 || u.Levels[1] != 0.25 {
				t.Errorf("expected [0.5 0.25], got %v", u.Levels)
			}
		}
		cancel()
	}
}

func TestRelayVolumeCommand(t *testing.T) {
	vol := &recordedVolume{}
	_, addr := startRelay(t, Config{Volume: vol})
	c := connect(t, addr, "a")

	if err := c.SendVolume(0.25); err != nil {
		t.Fatalf("send volume failed: %v", err)
	}

	waitFor(t, "volume command", func() bool { _, n := vol.get(); return n == 1 })
	if v, _ := vol.get(); v != 0.25 {
		t.Errorf("expected volume 0.25, got %v", v)
	}
}

func TestRelayRejectsDuplicateClientID(t *testing.T) {
	s, addr := startRelay(t, Config{})
	connect(t, addr, "same")
	waitFor(t, "first client", func() bool { return s.ClientCount() == 1 })

	dup := protocol.NewClient(protocol.Config{ServerAddr: addr, ClientID: "same", Name: "dup"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dup.Connect(ctx); err == nil {
		dup.Close()
		t.Fatal("expected duplicate client ID to be rejected")
	}
	if s.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", s.ClientCount())
	}
}

func TestRelayAssignsMissingClientID(t *testing.T) {
	s, addr := startRelay(t, Config{})
	connect(t, addr, "")
	connect(t, addr, "")

	waitFor(t, "two anonymous clients", func() bool { return s.ClientCount() == 2 })
}

func TestRelayEnd(t *testing.T) {
	s, addr := startRelay(t, Config{})
	c := connect(t, addr, "a")
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })

	s.End("finished")

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not see stream/end")
	}
	if c.EndReason() != "finished" {
		t.Errorf("expected reason finished, got %q", c.EndReason())
	}
	waitFor(t, "client removal", func() bool { return s.ClientCount() == 0 })
}

func TestRelayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	s, addr := startRelay(t, Config{Metrics: m, Gatherer: reg})
	connect(t, addr, "a")
	waitFor(t, "client", func() bool { return s.ClientCount() == 1 })
	s.Broadcast(meter.Update{Seq: 1, Levels: []float64{0, 0}})

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"recmeter_relay_clients 1", "recmeter_relay_messages_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestServeStopsWhenQueueCloses(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	s := New(Config{Name: "Test Relay", Format: s16Stereo})
	queue := meter.NewQueue(4)
	queue.Push(meter.Update{Seq: 1, Levels: []float64{0.1, 0.2}})
	queue.Close()

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), listener, queue) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after queue closed")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	s := New(Config{Name: "Test Relay", Format: s16Stereo})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener, meter.NewQueue(4)) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
