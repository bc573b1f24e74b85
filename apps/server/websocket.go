package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notedhq/noted/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// client is one live chat connection: the middleman between the websocket
// and the hub. Its group and identity are fixed at the handshake; membership
// is not re-checked mid-session, so removal from a group takes effect on the
// next connect.
type client struct {
	srv  *server
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	// done is closed exactly once at teardown; Deliver refuses frames after.
	done      chan struct{}
	closeOnce sync.Once

	groupID int64
	user    model.Sender
}

// Deliver implements hub.Conn. False means the connection is closed or its
// buffer is full; the hub then deregisters and closes it.
func (c *client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close implements hub.Conn. Safe to call from any teardown path.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump pumps inbound frames from the websocket into the persist-and-
// broadcast path. Teardown always deregisters, whatever ended the loop.
func (c *client) readPump() {
	defer func() {
		c.srv.hub.Deregister(c.groupID, c)
		c.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("chat: read error: %v", err)
			}
			break
		}
		c.handleFrame(raw)
	}
}

// inboundFrame accepts both field spellings clients have used.
type inboundFrame struct {
	Message string `json:"message"`
	Content string `json:"content"`
}

// handleFrame processes one inbound frame. Malformed frames are dropped and
// the connection stays open; a persistence failure is reported to this
// connection only.
func (c *client) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("chat: dropping malformed frame from user %d", c.user.ID)
		return
	}
	content := frame.Message
	if content == "" {
		content = frame.Content
	}
	if content == "" {
		log.Printf("chat: dropping empty frame from user %d", c.user.ID)
		return
	}

	if _, err := c.srv.saveAndBroadcast(context.Background(), c.groupID, c.user, content); err != nil {
		log.Printf("chat: failed to persist message from user %d: %v", c.user.ID, err)
		if errRaw, merr := json.Marshal(model.ErrorEvent(c.groupID, "message could not be saved")); merr == nil {
			c.Deliver(errRaw)
		}
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleChat runs the channel handshake: resolve the credential, confirm
// membership, then upgrade and register. Every rejection is the same
// response, leaking neither group existence nor credential validity.
func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	reject := func() {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}

	groupID, ok := pathID(r, "group_id")
	if !ok {
		reject()
		return
	}

	token := bearerToken(r)
	if token == "" {
		reject()
		return
	}
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		reject()
		return
	}

	user, err := s.store.UserByID(r.Context(), claims.UserID)
	if err != nil {
		reject()
		return
	}

	member, err := s.store.IsMember(r.Context(), groupID, user.ID)
	if err != nil || !member {
		reject()
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		log.Printf("chat: upgrade failed: %v", err)
		return
	}

	c := &client{
		srv:     s,
		conn:    conn,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		groupID: groupID,
		user:    user.Sender(),
	}
	s.hub.Register(groupID, user.ID, c)

	go c.writePump()
	go c.readPump()
}
