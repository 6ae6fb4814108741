// ABOUTME: WebSocket client for the level relay protocol
// ABOUTME: Handles connection, handshake, and routes level updates into a meter queue
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicerec/recmeter/pkg/meter"
)

// handshakeTimeout bounds the wait for server/hello
const handshakeTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string
	DeviceInfo DeviceInfo

	// Queue receives every stream/levels update; required
	Queue *meter.Queue
}

// Client is a remote display connected to a relay
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	server ServerHello
	format StreamFormat

	// Formats receives each stream/format announcement
	Formats chan StreamFormat

	// State
	connected bool
	endReason string
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Queue == nil {
		config.Queue = meter.NewQueue(meter.DefaultQueueCapacity)
	}
	return &Client{
		config:  config,
		Formats: make(chan StreamFormat, 1),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    ProtocolVersion,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type != TypeServerHello {
		return fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}

	var server ServerHello
	if err := DecodePayload(msg, &server); err != nil {
		return err
	}
	if server.Version != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version %d (want %d)", server.Version, ProtocolVersion)
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (source: %s)", server.Name, server.Source)
	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsConnected() {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Ignoring non-text WebSocket message type: %d", messageType)
			continue
		}

		if end := c.handleJSONMessage(data); end {
			return
		}
	}
}

// handleJSONMessage routes one message and reports whether the stream ended
func (c *Client) handleJSONMessage(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return false
	}

	switch msg.Type {
	case TypeStreamLevels:
		var levels StreamLevels
		if err := DecodePayload(msg, &levels); err != nil {
			log.Printf("%v", err)
			return false
		}
		c.config.Queue.Push(levels.Update())

	case TypeStreamFormat:
		var format StreamFormat
		if err := DecodePayload(msg, &format); err != nil {
			log.Printf("%v", err)
			return false
		}
		c.mu.Lock()
		c.format = format
		c.mu.Unlock()
		log.Printf("Stream format: %s", format.AudioFormat())

		// Keep only the latest announcement
		select {
		case <-c.Formats:
		default:
		}
		c.Formats <- format

	case TypeStreamEnd:
		var end StreamEnd
		if err := DecodePayload(msg, &end); err != nil {
			log.Printf("%v", err)
		}
		c.mu.Lock()
		c.endReason = end.Reason
		c.mu.Unlock()
		log.Printf("Stream ended: %s", end.Reason)
		return true

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
	return false
}

// SendVolume asks the relay to change the session volume
func (c *Client) SendVolume(volume float64) error {
	return c.sendJSON(Message{
		Type:    TypeClientCommand,
		Payload: ClientCommand{Command: "volume", Volume: volume},
	})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{
		Type:    TypeClientGoodbye,
		Payload: ClientGoodbye{Reason: reason},
	})
}

// Queue returns the queue receiving level updates
func (c *Client) Queue() *meter.Queue {
	return c.config.Queue
}

// Server returns the relay's hello
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Format returns the most recently announced stream format
func (c *Client) Format() StreamFormat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.format
}

// EndReason returns the reason sent with stream/end, if any
func (c *Client) EndReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endReason
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.conn.Close()
		log.Printf("Connection closed")
	}
	c.closeOnce.Do(func() { close(c.done) })
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
