package server

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Kanishk2Kumar/CampusPulse/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one websocket connection. A connection is a member of at most one
// room, the one it joined.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.joinRoom(&msg)
		case msg.Leave != nil:
			c.leaveRoom(&msg)
		case msg.Publish != nil:
			c.publish(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) publish(msg *ClientMessage) {
	// reject blank bodies locally, without a store round-trip
	if strings.TrimSpace(msg.Publish.Content) == "" {
		c.queueMessage(ErrEmptyMessage(msg.Id))
		return
	}

	r := c.currentRoom()
	if r == nil || r.externalId != msg.Publish.RoomId {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case r.publishChan <- msg:
	default:
		c.log.Printf("publish channel full for room %q", r.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) joinRoom(msg *ClientMessage) {
	// one room per connection: joining another room leaves the current one
	if cur := c.currentRoom(); cur != nil {
		if cur.externalId == msg.Join.RoomId {
			c.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": cur.externalId, "title": cur.title}))
			return
		}
		c.sendLeave(cur, 0)
	}

	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.currentRoom()
	if r == nil || r.externalId != msg.Leave.RoomId {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	c.sendLeave(r, msg.Id)
}

func (c *Client) sendLeave(r *Room, id int) {
	leave := &ClientMessage{
		BaseMessage: BaseMessage{Id: id, Timestamp: Now()},
		Leave:       &Leave{RoomId: r.externalId},
		UserId:      c.user.Id,
		client:      c,
	}

	select {
	case r.leaveChan <- leave:
	default:
		c.log.Printf("leave channel full for room %q", r.externalId)
		if id > 0 {
			c.queueMessage(ErrServiceUnavailable(id))
		}
	}
}

// queueMessage hands msg to the write pump. Returns false when the client is
// stopped or its buffer is full, which broadcast treats as a dead connection.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case <-c.stop:
		return false
	default:
	}

	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deRegisterChan <- c
	if r := c.currentRoom(); r != nil {
		c.sendLeave(r, 0)
	}
	c.stopClient()
}

func (c *Client) attachRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	c.room = r
}

func (c *Client) detachRoom(id string) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	if c.room != nil && c.room.externalId == id {
		c.room = nil
	}
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()

	return c.room
}
