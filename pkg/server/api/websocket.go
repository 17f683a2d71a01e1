package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/scanner"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
	"github.com/San4ouzs/Flight-deals-eu/pkg/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WebSocketServer streams newly recorded prices to connected clients.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates   chan scanner.Recorded
	broadcast sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn             *websocket.Conn
	send             chan []byte
	server           *WebSocketServer
	subscribedAll    bool
	subscribedRoutes map[string]bool
	mu               sync.RWMutex
}

// WebSocketMessage is a client request.
type WebSocketMessage struct {
	Type   string   `json:"type"`   // "subscribe", "unsubscribe", "ping"
	Routes []string `json:"routes"` // "RIX-FRA" or "*"
}

// PriceRecordedMessage is sent to clients after each appended price.
type PriceRecordedMessage struct {
	Type      string       `json:"type"` // "price_recorded"
	Timestamp string       `json:"timestamp"`
	Data      RecordedData `json:"data"`
}

// RecordedData is one appended observation.
type RecordedData struct {
	RunID         string `json:"run_id"`
	Route         string `json:"route"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	Source        string `json:"source"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
	Airline       string `json:"airline,omitempty"`
	Stops         int    `json:"stops"`
	ObservedAt    string `json:"observed_at"`
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan scanner.Recorded, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the upgrade handler and starts the broadcast loop.
func (s *WebSocketServer) Handler() http.Handler {
	s.broadcast.Do(func() {
		go s.broadcastUpdates()
	})
	return http.HandlerFunc(s.handleWebSocket)
}

// Start serves /ws until Stop is called.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-s.ctx.Done():
	case <-ctx.Done():
		s.cancel()
	case err := <-errCh:
		s.cancel()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// Publish queues rec for broadcast. It is meant to be registered with
// scanner.Scanner.OnRecorded and never blocks the scan for long.
func (s *WebSocketServer) Publish(rec scanner.Recorded) {
	select {
	case s.updates <- rec:
	case <-s.ctx.Done():
	case <-time.After(100 * time.Millisecond):
		s.logger.Warn("Update channel full, dropping price update", "route", route(rec.Quote))
	}
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:             conn,
		send:             make(chan []byte, 256),
		server:           s,
		subscribedAll:    true,
		subscribedRoutes: make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			s.closeClients()
			return
		case rec := <-s.updates:
			s.send(rec)
		}
	}
}

func (s *WebSocketServer) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *WebSocketServer) send(rec scanner.Recorded) {
	q := rec.Quote
	message := PriceRecordedMessage{
		Type:      "price_recorded",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: RecordedData{
			RunID:         rec.RunID,
			Route:         route(q),
			Origin:        q.Origin,
			Destination:   q.Destination,
			DepartureDate: q.DepartureDate.Format(sources.DateLayout),
			Source:        q.Source,
			Price:         q.Price.StringFixed(2),
			Currency:      q.Currency,
			Airline:       q.Airline,
			Stops:         q.Stops,
			ObservedAt:    rec.ObservedAt.UTC().Format(store.TimestampLayout),
		},
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal price update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(message.Data.Route) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

func route(q sources.Quote) string {
	return q.Origin + "-" + q.Destination
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Routes)
		c.reply(map[string]interface{}{"type": "subscribed", "routes": msg.Routes})
	case "unsubscribe":
		c.unsubscribe(msg.Routes)
		c.reply(map[string]interface{}{"type": "unsubscribed", "routes": msg.Routes})
	case "ping":
		c.reply(map[string]string{"type": "pong"})
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

func isWildcard(routes []string) bool {
	return len(routes) == 0 || (len(routes) == 1 && routes[0] == "*")
}

func (c *WebSocketClient) subscribe(routes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isWildcard(routes) {
		c.subscribedAll = true
		c.subscribedRoutes = make(map[string]bool)
		return
	}
	c.subscribedAll = false
	for _, r := range routes {
		c.subscribedRoutes[strings.ToUpper(strings.TrimSpace(r))] = true
	}
}

func (c *WebSocketClient) unsubscribe(routes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isWildcard(routes) {
		c.subscribedAll = false
		c.subscribedRoutes = make(map[string]bool)
		return
	}
	for _, r := range routes {
		delete(c.subscribedRoutes, strings.ToUpper(strings.TrimSpace(r)))
	}
}

func (c *WebSocketClient) shouldReceive(route string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribedAll || c.subscribedRoutes[route]
}

// reply queues a control message for a client that is still registered.
func (c *WebSocketClient) reply(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	if !c.server.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
