package server

import (
	"log"
	"sync"
	"time"

	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/types"
)

const idleRoomTimeout = time.Second * 5

type exitReq struct {
	closed bool
	reason string
}

// Room is the live session for one help request's chat. It exists only while
// connections do; all of its state is rebuilt from the store on next load.
type Room struct {
	id         int
	externalId string
	title      string
	ownerId    int
	cs         *ChatServer
	joinChan   chan *ClientMessage
	leaveChan  chan *ClientMessage
	publishChan chan *ClientMessage
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
	// lastTs is the timestamp of the newest persisted message; publishes are
	// stamped strictly after it even if the wall clock regresses.
	lastTs time.Time
	nowFn  func() time.Time
	log    *log.Logger
	// killTimer unloads the room once it has been empty for a while
	killTimer *time.Timer
	exit      chan exitReq
	done      chan struct{}
}

func newRoom(cs *ChatServer, req database.HelpRequest, lastTs time.Time) *Room {
	return &Room{
		id:          req.Id,
		externalId:  req.ExternalId,
		title:       req.Title,
		ownerId:     req.OwnerId,
		cs:          cs,
		joinChan:    make(chan *ClientMessage, 256),
		leaveChan:   make(chan *ClientMessage, 256),
		publishChan: make(chan *ClientMessage, 256),
		clients:     make(map[*Client]struct{}),
		lastTs:      lastTs,
		nowFn:       Now,
		log:         cs.log,
		exit:        make(chan exitReq),
		done:        make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	defer close(r.done)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.publishChan:
			r.saveAndBroadcast(msg)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	r.addClient(c)

	c.queueMessage(NoErrOK(join.Id, map[string]any{
		"room_id": r.externalId,
		"title":   r.title,
	}))
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	r.removeClient(leaveMsg.client)

	// acknowledge only explicit leave requests, not connection cleanup
	if leaveMsg.Id > 0 {
		leaveMsg.client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}
}

func (r *Room) handleRoomTimeout() {
	r.clientLock.RLock()
	empty := len(r.clients) == 0
	r.clientLock.RUnlock()
	if !empty {
		return
	}

	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
	default:
		// unload queue full, try again later
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)
	if e.closed {
		r.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				RoomClosed: &RoomClosed{RoomId: r.externalId, Reason: e.reason},
			},
		})
	}

	// detach every member so further publishes bounce with room-not-found
	r.clientLock.Lock()
	for c := range r.clients {
		c.detachRoom(r.externalId)
	}
	r.clients = make(map[*Client]struct{})
	r.clientLock.Unlock()
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.attachRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	r.log.Printf("removing client %q from room %q", c.user.Username, r.externalId)
	delete(r.clients, c)
	c.detachRoom(r.externalId)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// nextTimestamp assigns a creation time no earlier than the previously stored
// message in this room, so history order always matches broadcast order.
func (r *Room) nextTimestamp() time.Time {
	ts := r.nowFn()
	if !ts.After(r.lastTs) {
		ts = r.lastTs.Add(time.Millisecond)
	}
	return ts
}

func (r *Room) saveAndBroadcast(msg *ClientMessage) {
	ts := r.nextTimestamp()

	stored, err := r.cs.db.AppendMessage(database.Message{
		RoomId:    r.id,
		UserId:    msg.UserId,
		Username:  msg.client.user.Username,
		Content:   msg.Publish.Content,
		CreatedAt: ts,
	})
	if err != nil {
		// not persisted, so not broadcast: peers never see phantom messages
		r.log.Println("error saving message:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	r.lastTs = ts
	r.cs.stats.Incr(messagesSavedMetric)
	msg.client.queueMessage(NoErrAccepted(msg.Id))

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: ts,
		},
		Message: &types.ChatMessage{
			Id:        stored.Id,
			RoomId:    r.externalId,
			UserId:    stored.UserId,
			Username:  stored.Username,
			Content:   stored.Content,
			Timestamp: ts,
		},
	})
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	var dead []*Client
	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		if !client.queueMessage(msg) {
			dead = append(dead, client)
		}
	}

	// prune members whose connection is gone but never sent a leave
	for _, client := range dead {
		r.log.Printf("pruning unreachable client %q from room %q", client.user.Username, r.externalId)
		delete(r.clients, client)
		client.detachRoom(r.externalId)
	}

	if len(dead) > 0 && len(r.clients) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}
