// ABOUTME: WebSocket relay streaming channel levels to remote displays
// ABOUTME: Manages display connections, broadcasts level updates and serves /metrics
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voicerec/recmeter/internal/metrics"
	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
	"github.com/voicerec/recmeter/pkg/protocol"
)

const (
	// clientBacklog is how many messages may wait for a slow display
	clientBacklog = 64

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// VolumeSetter receives volume commands from displays
type VolumeSetter interface {
	SetVolume(volume float64)
}

// Config holds relay configuration
type Config struct {
	Port    int
	Address string
	Name    string
	Debug   bool

	// Source and Format describe the metered stream to displays
	Source string
	Format audio.Format

	// Volume receives client/command volume requests; nil ignores them
	Volume VolumeSetter

	// Metrics is optional; Gatherer enables the /metrics endpoint
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server is the level relay
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected display
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// Output channel for messages
	sendChan chan protocol.Message
	dropped  atomic.Uint64
}

// New creates a new relay instance
func New(config Config) *Server {
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Relays run on trusted local networks; displays may be browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}

	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	if config.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}

	return s
}

// ID returns the relay's server ID
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the relay endpoints
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves displays and broadcasts updates from queue until ctx is
// cancelled or the queue is closed.
func (s *Server) Run(ctx context.Context, queue *meter.Queue) error {
	addr := net.JoinHostPort(s.config.Address, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener, queue)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener, queue *meter.Queue) error {
	log.Printf("Relay starting: %s (ID: %s)", s.config.Name, s.serverID)
	log.Printf("WebSocket relay listening on %s", listener.Addr())

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for u := range queue.Updates(ctx) {
			s.Broadcast(u)
		}
	}()

	var serverErr error
	reason := "shutdown"
	select {
	case <-ctx.Done():
		log.Printf("Relay shutting down...")
	case <-updatesDone:
		log.Printf("Level stream ended, shutting down relay...")
		reason = "end_of_stream"
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdown(reason)

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// shutdown ends all streams and stops the HTTP server
func (s *Server) shutdown(reason string) {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.End(reason)

	// Give displays a moment to receive stream/end and hang up
	deadline := time.Now().Add(time.Second)
	for s.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	log.Printf("Relay stopped cleanly")
}

// Broadcast sends one level update to every display. A display that has
// fallen behind misses the update instead of stalling the others.
func (s *Server) Broadcast(u meter.Update) {
	msg := protocol.Message{Type: protocol.TypeStreamLevels, Payload: protocol.NewStreamLevels(u)}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.sendChan <- msg:
			if s.config.Metrics != nil {
				s.config.Metrics.RelayMessages.Inc()
			}
		default:
			if n := client.dropped.Add(1); s.config.Debug || n == 1 {
				log.Printf("Display %s is falling behind, dropped %d updates", client.Name, n)
			}
		}
	}
}

// End tells every display that the stream is over
func (s *Server) End(reason string) {
	msg := protocol.Message{Type: protocol.TypeStreamEnd, Payload: protocol.StreamEnd{Reason: reason}}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.sendChan <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected displays
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

// handleConnection manages a display connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	if s.config.Debug {
		log.Printf("[DEBUG] New connection, waiting for handshake")
	}

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		writeError(conn, "invalid_hello", err.Error())
		return
	}

	// Displays without an identity get a fresh one
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}
	if hello.Name == "" {
		hello.Name = hello.ClientID
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan protocol.Message, clientBacklog),
	}

	// The hello exchange and format announcement are queued before the
	// client becomes visible to Broadcast so they are always sent first
	client.sendChan <- protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.ProtocolVersion,
		Source:   s.config.Source,
	}}
	client.sendChan <- protocol.Message{Type: protocol.TypeStreamFormat, Payload: protocol.NewStreamFormat(s.config.Format)}

	// Check for duplicate client ID and register atomically
	s.clientsMu.Lock()
	if existing, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", client.ID, existing.Name)
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	s.clients[client.ID] = client
	count := len(s.clients)
	s.clientsMu.Unlock()

	if s.config.Metrics != nil {
		s.config.Metrics.RelayClients.Set(float64(count))
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		count := len(s.clients)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone

		if s.config.Metrics != nil {
			s.config.Metrics.RelayClients.Set(float64(count))
		}
		log.Printf("Client disconnected: %s", client.Name)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if done := s.handleClientMessage(client, data); done {
			return
		}
	}
}

// readHello waits for and validates client/hello
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(writeDeadline))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg, &hello); err != nil {
		return hello, err
	}
	if hello.Version != protocol.ProtocolVersion {
		return hello, fmt.Errorf("unsupported protocol version %d", hello.Version)
	}
	return hello, nil
}

// writeError sends server/error directly on a connection without a writer
func writeError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeServerError,
		Payload: protocol.ServerError{Error: code, Message: message},
	})
}

// clientWriter sends queued messages to the display
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing message to %s: %v", client.Name, err)
				client.Conn.Close()
				// Drain so the reader's deferred close never blocks Broadcast
				for range client.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				for range client.sendChan {
				}
				return
			}
		}
	}
}

// handleClientMessage processes messages from displays and reports
// whether the display is leaving
func (s *Server) handleClientMessage(client *Client, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return false
	}

	switch msg.Type {
	case protocol.TypeClientCommand:
		var cmd protocol.ClientCommand
		if err := protocol.DecodePayload(msg, &cmd); err != nil {
			log.Printf("%v", err)
			return false
		}
		s.handleCommand(client, cmd)

	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		protocol.DecodePayload(msg, &bye)
		log.Printf("Client %s said goodbye: %s", client.Name, bye.Reason)
		return true

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
	return false
}

// handleCommand applies a display's control command
func (s *Server) handleCommand(client *Client, cmd protocol.ClientCommand) {
	switch cmd.Command {
	case "volume":
		if s.config.Volume == nil {
			log.Printf("Ignoring volume command from %s: volume control disabled", client.Name)
			return
		}
		log.Printf("Volume set to %.2f by %s", cmd.Volume, client.Name)
		s.config.Volume.SetVolume(cmd.Volume)
	default:
		log.Printf("Unknown command from %s: %s", client.Name, cmd.Command)
	}
}
