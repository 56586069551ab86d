package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveReporter broadcasts each finding as JSON to a single connected
// WebSocket client, so a watching UI can show findings as they're
// confirmed. It holds at most one active connection; a new connection
// replaces the previous one.
type LiveReporter struct {
	log *zap.Logger

	client     *liveClient
	broadcast  chan []byte
	register   chan *liveClient
	unregister chan *liveClient
	mutex      sync.RWMutex
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

type liveMessage struct {
	Type      string `json:"type"`
	Finding   Finding `json:"finding"`
	Timestamp int64  `json:"timestamp"`
}

// NewLiveReporter builds a LiveReporter and starts its dispatch loop.
// The dispatch loop stops when ctx is cancelled.
func NewLiveReporter(ctx context.Context, log *zap.Logger) *LiveReporter {
	l := &LiveReporter{
		log:        log,
		broadcast:  make(chan []byte, 256),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
	}
	go l.run(ctx)
	return l
}

func (l *LiveReporter) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-l.register:
			l.mutex.Lock()
			if l.client != nil {
				close(l.client.send)
			}
			l.client = c
			l.mutex.Unlock()
			l.log.Info("live reporting client connected")
		case c := <-l.unregister:
			l.mutex.Lock()
			if l.client == c {
				close(l.client.send)
				l.client = nil
				l.log.Info("live reporting client disconnected")
			}
			l.mutex.Unlock()
		case message := <-l.broadcast:
			l.mutex.RLock()
			if l.client != nil {
				select {
				case l.client.send <- message:
				default:
					l.log.Warn("live reporting client too slow, dropping it")
					close(l.client.send)
					l.client = nil
				}
			}
			l.mutex.RUnlock()
		}
	}
}

// Report pushes finding onto the broadcast channel for delivery to
// whichever client is currently connected, if any.
func (l *LiveReporter) Report(_ context.Context, f Finding) error {
	msg := liveMessage{Type: "finding", Finding: f, Timestamp: time.Now().Unix()}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	l.mutex.RLock()
	hasClient := l.client != nil
	l.mutex.RUnlock()
	if !hasClient {
		return nil
	}
	l.broadcast <- data
	return nil
}

// ServeWS upgrades r to a WebSocket connection and registers it as the
// active live client.
func (l *LiveReporter) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &liveClient{conn: conn, send: make(chan []byte, 256)}
	l.register <- c

	go l.writePump(c)
	go l.readPump(c)
}

func (l *LiveReporter) readPump(c *liveClient) {
	defer func() {
		l.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (l *LiveReporter) writePump(c *liveClient) {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
