// ABOUTME: Tests for the level relay client
// ABOUTME: Runs the handshake and stream against an in-process websocket server
package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicerec/recmeter/pkg/meter"
)

// fakeRelay answers the handshake and then runs script
func fakeRelay(t *testing.T, version int, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello Message
		if err := json.Unmarshal(data, &hello); err != nil || hello.Type != TypeClientHello {
			return
		}

		conn.WriteJSON(Message{Type: TypeServerHello, Payload: ServerHello{
			ServerID: "relay-1",
			Name:     "Test Relay",
			Version:  version,
			Source:   "Test Tone (440Hz)",
		}})

		script(conn)
	}))
}

func serverAddr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestClientReceivesLevelsInOrder(t *testing.T) {
	srv := fakeRelay(t, ProtocolVersion, func(conn *websocket.Conn) {
		conn.WriteJSON(Message{Type: TypeStreamFormat, Payload: StreamFormat{
			Codec: "audio/pcm", SampleRate: 48000, Channels: 2, SampleSize: 16, SampleType: "signed", ByteOrder: "le",
		}})
		for seq := uint64(1); seq <= 3; seq++ {
			conn.WriteJSON(Message{Type: TypeStreamLevels, Payload: StreamLevels{
				Seq:    seq,
				Volume: 1,
				Levels: []float64{float64(seq) / 10, 0},
			}})
		}
		conn.WriteJSON(Message{Type: TypeStreamEnd, Payload: StreamEnd{Reason: "eof"}})
		conn.ReadMessage()
	})
	defer srv.Close()

	queue := meter.NewQueue(8)
	client := NewClient(Config{ServerAddr: serverAddr(srv), ClientID: "c1", Name: "test", Queue: queue})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("timed out waiting for stream end")
	}

	if client.Server().Name != "Test Relay" {
		t.Errorf("expected server name Test Relay, got %s", client.Server().Name)
	}
	if client.Format().Channels != 2 {
		t.Errorf("expected 2 channels, got %d", client.Format().Channels)
	}
	if client.EndReason() != "eof" {
		t.Errorf("expected end reason eof, got %q", client.EndReason())
	}

	for seq := uint64(1); seq <= 3; seq++ {
		u, ok := queue.TryPop()
		if !ok {
			t.Fatalf("expected update %d, queue empty", seq)
		}
		if u.Seq != seq {
			t.Errorf("expected seq %d, got %d", seq, u.Seq)
		}
	}
}

func TestClientRejectsVersionMismatch(t *testing.T) {
	srv := fakeRelay(t, ProtocolVersion+1, func(conn *websocket.Conn) {})
	defer srv.Close()

	client := NewClient(Config{ServerAddr: serverAddr(srv)})
	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected handshake error for version mismatch")
	}
	if client.IsConnected() {
		t.Error("expected client to be disconnected after failed handshake")
	}
}

func TestClientSendVolume(t *testing.T) {
	received := make(chan ClientCommand, 1)
	srv := fakeRelay(t, ProtocolVersion, func(conn *websocket.Conn) {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil || msg.Type != TypeClientCommand {
			return
		}
		var cmd ClientCommand
		if err := DecodePayload(msg, &cmd); err == nil {
			received <- cmd
		}
	})
	defer srv.Close()

	client := NewClient(Config{ServerAddr: serverAddr(srv)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	if err := client.SendVolume(0.3); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case cmd := <-received:
		if cmd.Command != "volume" || cmd.Volume != 0.3 {
			t.Errorf("expected volume 0.3 command, got %+v", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestClientNotConnected(t *testing.T) {
	client := NewClient(Config{})
	if err := client.SendVolume(0.5); err == nil {
		t.Error("expected error sending while disconnected")
	}
}
