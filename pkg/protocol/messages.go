// ABOUTME: Level relay message type definitions
// ABOUTME: Defines the JSON messages exchanged between a meter relay and remote displays
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

// ProtocolVersion is sent in both hello messages
const ProtocolVersion = 1

// Path is the websocket endpoint served by relays
const Path = "/levels"

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientCommand = "client/command"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerError   = "server/error"
	TypeStreamFormat  = "stream/format"
	TypeStreamLevels  = "stream/levels"
	TypeStreamEnd     = "stream/end"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload re-decodes a generically unmarshalled payload into v
func DecodePayload(msg Message, v interface{}) error {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(payloadBytes, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", msg.Type, err)
	}
	return nil
}

// ClientHello is sent by displays to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the relay's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Source   string `json:"source"` // name of the capture source
}

// StreamFormat describes the captured stream the levels are computed from
type StreamFormat struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	SampleSize int    `json:"sample_size"`
	SampleType string `json:"sample_type"` // "signed", "unsigned", "float" or "unknown"
	ByteOrder  string `json:"byte_order"`  // "le" or "be"
}

// StreamLevels carries one volume-scaled level update
type StreamLevels struct {
	Seq       uint64    `json:"seq"`
	Timestamp int64     `json:"timestamp"` // capture time, Unix microseconds
	Volume    float64   `json:"volume"`
	Levels    []float64 `json:"levels"` // one entry per channel, in channel order
}

// StreamEnd is sent when the capture session finishes
type StreamEnd struct {
	Reason string `json:"reason"` // "eof", "shutdown" or "error"
}

// ServerError is sent before the relay drops a connection
type ServerError struct {
	Error   string `json:"error"` // "duplicate_client_id", "invalid_hello"
	Message string `json:"message"`
}

// ClientCommand is a control command from a display
type ClientCommand struct {
	Command string  `json:"command"` // "volume"
	Volume  float64 `json:"volume,omitempty"`
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// NewStreamFormat describes format on the wire
func NewStreamFormat(format audio.Format) StreamFormat {
	var sampleType string
	switch format.SampleType {
	case audio.SignedInt:
		sampleType = "signed"
	case audio.UnSignedInt:
		sampleType = "unsigned"
	case audio.Float:
		sampleType = "float"
	default:
		sampleType = "unknown"
	}

	byteOrder := "le"
	if format.ByteOrder == audio.BigEndian {
		byteOrder = "be"
	}

	return StreamFormat{
		Codec:      format.Codec,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		SampleSize: format.SampleSize,
		SampleType: sampleType,
		ByteOrder:  byteOrder,
	}
}

// AudioFormat converts the wire description back to an audio.Format
func (f StreamFormat) AudioFormat() audio.Format {
	format := audio.Format{
		Codec:      f.Codec,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		SampleSize: f.SampleSize,
	}

	switch f.SampleType {
	case "signed":
		format.SampleType = audio.SignedInt
	case "unsigned":
		format.SampleType = audio.UnSignedInt
	case "float":
		format.SampleType = audio.Float
	}

	if f.ByteOrder == "be" {
		format.ByteOrder = audio.BigEndian
	}
	return format
}

// NewStreamLevels converts a meter update to its wire form
func NewStreamLevels(u meter.Update) StreamLevels {
	return StreamLevels{
		Seq:       u.Seq,
		Timestamp: u.Time.UnixMicro(),
		Volume:    u.Volume,
		Levels:    u.Levels,
	}
}

// Update converts the wire form back to a meter update
func (l StreamLevels) Update() meter.Update {
	return meter.Update{
		Seq:    l.Seq,
		Time:   time.UnixMicro(l.Timestamp),
		Volume: l.Volume,
		Levels: l.Levels,
	}
}
