package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// ErrNotConnected is returned when the user has no open connection
var ErrNotConnected = errors.New("user not connected")

// Message types
const (
	MessageTypeNotification = "notification"
	MessageTypeStatus       = "status"
	MessageTypePing         = "ping"
)

// Message is the frame exchanged with clients
type Message struct {
	Type      string                 `json:"type"`
	Kind      string                 `json:"kind,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Target    string                 `json:"target,omitempty"`
}

// Connection is one client socket
type Connection struct {
	ID          string
	UserID      string
	Conn        *websocket.Conn
	Send        chan Message
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string

	mu           sync.Mutex
	lastActivity time.Time
}

// Manager tracks client sockets per user and pushes notifications to them
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closed      bool
}

// NewManager creates a new WebSocket manager. allowedOrigins empty accepts any origin.
func NewManager(logger *zap.Logger, allowedOrigins []string) *Manager {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleConnection upgrades the request and registers the socket for userID
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := time.Now()
	connection := &Connection{
		ID:           uuid.New().String(),
		UserID:       userID,
		Conn:         conn,
		Send:         make(chan Message, sendBuffer),
		ConnectedAt:  now,
		UserAgent:    r.Header.Get("User-Agent"),
		IPAddress:    r.RemoteAddr,
		lastActivity: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, errors.New("websocket manager closed")
	}
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Info("websocket connected",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID),
	)

	connection.Send <- Message{
		Type:      MessageTypeStatus,
		Data:      map[string]interface{}{"status": "connected", "connection_id": connection.ID},
		Timestamp: now,
		Target:    userID,
	}

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// readPump drains client frames. Clients only send pings; anything else is ignored.
func (m *Manager) readPump(conn *Connection) {
	defer m.unregister(conn)

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read failed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}

		conn.mu.Lock()
		conn.lastActivity = time.Now()
		conn.mu.Unlock()

		if msg.Type == MessageTypePing {
			m.enqueue(conn, Message{Type: MessageTypeStatus, Data: map[string]interface{}{"status": "pong"}, Timestamp: time.Now()})
		}
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) unregister(conn *Connection) {
	m.mu.Lock()
	if _, ok := m.connections[conn.ID]; ok {
		delete(m.connections, conn.ID)
		close(conn.Send)
	}
	m.mu.Unlock()
	conn.Conn.Close()

	m.logger.Info("websocket disconnected",
		zap.String("connection_id", conn.ID),
		zap.String("user_id", conn.UserID),
	)
}

// enqueue never blocks; a full buffer drops the frame
func (m *Manager) enqueue(conn *Connection, message Message) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.connections[conn.ID]; !ok {
		return false
	}
	select {
	case conn.Send <- message:
		return true
	default:
		return false
	}
}

// SendToUser delivers the message to every open connection of the user
func (m *Manager) SendToUser(userID string, message Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	found, delivered := 0, 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		found++
		select {
		case conn.Send <- message:
			delivered++
		default:
			m.logger.Warn("websocket buffer full, dropping message",
				zap.String("connection_id", conn.ID),
				zap.String("user_id", userID),
			)
		}
	}

	if found == 0 {
		return ErrNotConnected
	}
	if delivered == 0 {
		return fmt.Errorf("user connection buffer full")
	}
	return nil
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// IsConnected reports whether the user has at least one open socket
func (m *Manager) IsConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

// Close disconnects every client. The manager accepts no new connections afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}
