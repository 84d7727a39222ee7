package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one user's live connection.
type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager tracks the live connections of online users. Delivery here is
// best-effort: a full send buffer or an absent connection drops the frame,
// persistence has already happened by the time anything is pushed.
type Manager struct {
	clients map[uint]*Client
	lock    sync.RWMutex
}

var manager = &Manager{
	clients: make(map[uint]*Client),
}

// GetManager returns the process-wide connection manager.
func GetManager() *Manager {
	return manager
}

// AddClient registers a connection, replacing any previous one for the user.
func (m *Manager) AddClient(userID uint, client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if old, ok := m.clients[userID]; ok {
		close(old.Send)
	}
	m.clients[userID] = client
}

// RemoveClient drops a connection if it is still the registered one.
func (m *Manager) RemoveClient(userID uint, client *Client) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.clients[userID]; ok && c == client {
		close(c.Send)
		delete(m.clients, userID)
	}
}

// SendToUser queues a frame for one user. Returns false when the user has
// no live connection or the buffer is full.
func (m *Manager) SendToUser(userID uint, msg []byte) bool {
	m.lock.RLock()
	client, ok := m.clients[userID]
	m.lock.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// IsConnected reports whether the user has a live connection.
func (m *Manager) IsConnected(userID uint) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.clients[userID]
	return ok
}
