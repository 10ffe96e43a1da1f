// Package status broadcasts scene notifications to websocket clients.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mogaika/assetpipe/scene"
)

const (
	INFO = iota
	ERROR
	PROGRESS
	WARNING
	CHANGE
)

type status struct {
	Message string
	Time    time.Time
	Type    int
	// Change and Key are set for CHANGE messages.
	Change string `json:",omitempty"`
	Key    int
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains client frames so pings and closes are handled.
func (c *client) readPump() {
	defer c.hub.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub implements the scene observer interfaces. Subscribe it with
// scene.Manager.Subscribe; every notification becomes one JSON message for
// every connected client. A late client receives the last message first.
type Hub struct {
	broadcast chan *status
	done      chan struct{}

	lock        sync.Mutex
	clients     map[*client]bool
	lastMessage []byte
}

func NewHub() *Hub {
	h := &Hub{
		broadcast: make(chan *status, 16),
		done:      make(chan struct{}),
		clients:   make(map[*client]bool),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case s := <-h.broadcast:
			data, err := json.Marshal(s)
			if err != nil {
				log.Printf("[status] marshal error: %v", err)
				continue
			}
			h.lock.Lock()
			h.lastMessage = data
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					log.Printf("[status] client too slow, dropping it")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.lock.Unlock()
		case <-h.done:
			h.lock.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.lock.Unlock()
			return
		}
	}
}

func (h *Hub) Close() {
	close(h.done)
}

// Serve takes ownership of conn until it closes.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.lock.Lock()
	h.clients[c] = true
	if h.lastMessage != nil {
		c.send <- h.lastMessage
	}
	h.lock.Unlock()
	go c.writePump()
	c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) Status(msg string, _type int) {
	h.send(&status{Message: msg, Time: time.Now(), Type: _type})
}

func (h *Hub) send(s *status) {
	select {
	case h.broadcast <- s:
	case <-h.done:
	}
}

func (h *Hub) Info(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), INFO)
}

func (h *Hub) Error(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), ERROR)
}

func (h *Hub) OnProgress(s string) { h.Status(s, PROGRESS) }
func (h *Hub) OnError(err error)   { h.Status(err.Error(), ERROR) }
func (h *Hub) OnWarning(err error) { h.Status(err.Error(), WARNING) }

func (h *Hub) OnChange(kind scene.ChangeKind, key int, payload interface{}) {
	model, bone := scene.SplitKey(key)
	msg := fmt.Sprintf("%v scene", kind)
	if key != scene.SceneKey {
		msg = fmt.Sprintf("%v model %d bone %d", kind, model, bone)
	}
	h.send(&status{Message: msg, Time: time.Now(), Type: CHANGE, Change: kind.String(), Key: key})
}
