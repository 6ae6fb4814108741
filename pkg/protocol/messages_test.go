// ABOUTME: Tests for level relay message types
// ABOUTME: Verifies JSON decoding and conversions to and from meter types
package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

func TestDecodePayload(t *testing.T) {
	msg := Message{
		Type: TypeStreamLevels,
		Payload: StreamLevels{
			Seq:       7,
			Timestamp: 1700000000000000,
			Volume:    0.5,
			Levels:    []float64{0.25, 0.125},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded.Type != TypeStreamLevels {
		t.Errorf("expected type %s, got %s", TypeStreamLevels, decoded.Type)
	}

	var levels StreamLevels
	if err := DecodePayload(decoded, &levels); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if levels.Seq != 7 || levels.Volume != 0.5 || len(levels.Levels) != 2 || levels.Levels[1] != 0.125 {
		t.Errorf("unexpected payload: %+v", levels)
	}
}

func TestDecodePayloadTypeMismatch(t *testing.T) {
	msg := Message{Type: TypeStreamLevels, Payload: map[string]interface{}{"seq": "not a number"}}

	var levels StreamLevels
	if err := DecodePayload(msg, &levels); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

func TestStreamFormatRoundTrip(t *testing.T) {
	formats := []audio.Format{
		{Codec: audio.CodecPCM, SampleRate: 48000, Channels: 2, SampleSize: 16, SampleType: audio.SignedInt},
		{Codec: audio.CodecPCM, SampleRate: 8000, Channels: 1, SampleSize: 8, SampleType: audio.UnSignedInt},
		{Codec: audio.CodecPCM, SampleRate: 44100, Channels: 2, SampleSize: 32, SampleType: audio.Float, ByteOrder: audio.BigEndian},
		{Codec: "audio/opus", SampleRate: 48000, Channels: 2, SampleSize: 16},
	}

	for _, format := range formats {
		if got := NewStreamFormat(format).AudioFormat(); got != format {
			t.Errorf("expected %v, got %v", format, got)
		}
	}
}

func TestStreamFormatWireNames(t *testing.T) {
	wire := NewStreamFormat(audio.Format{
		Codec:      audio.CodecPCM,
		SampleRate: 44100,
		Channels:   1,
		SampleSize: 8,
		SampleType: audio.UnSignedInt,
	})

	if wire.SampleType != "unsigned" {
		t.Errorf("expected unsigned, got %s", wire.SampleType)
	}
	if wire.ByteOrder != "le" {
		t.Errorf("expected le, got %s", wire.ByteOrder)
	}
}

func TestStreamLevelsUpdate(t *testing.T) {
	now := time.Now().Truncate(time.Microsecond)
	u := meter.Update{Seq: 42, Time: now, Volume: 0.75, Levels: []float64{0.1, 0.9}}

	got := NewStreamLevels(u).Update()

	if got.Seq != u.Seq || got.Volume != u.Volume {
		t.Errorf("expected %+v, got %+v", u, got)
	}
	if !got.Time.Equal(now) {
		t.Errorf("expected time %v, got %v", now, got.Time)
	}
	if len(got.Levels) != 2 || got.Levels[0] != 0.1 || got.Levels[1] != 0.9 {
		t.Errorf("expected levels %v, got %v", u.Levels, got.Levels)
	}
}
