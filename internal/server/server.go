package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/stats"
)

const (
	activeClientsMetric = "ActiveClients"
	activeRoomsMetric   = "ActiveRooms"
	messagesSavedMetric = "MessagesSaved"
)

type unloadRoomRequest struct {
	roomId string
}

type closeRoomRequest struct {
	roomId string
	reason string
	done   chan struct{}
}

// ChatServer tracks live rooms and connections. Rooms are created on first
// join and unloaded when idle-empty or closed by the resolution workflow.
type ChatServer struct {
	log            *log.Logger
	db             database.CampusRepository
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	registerChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	closeRoomChan  chan closeRoomRequest
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.CampusRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client, 256),
		unloadRoomChan: make(chan unloadRoomRequest, 256),
		closeRoomChan:  make(chan closeRoomRequest),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	sp.RegisterMetric(activeClientsMetric)
	sp.RegisterMetric(activeRoomsMetric)
	sp.RegisterMetric(messagesSavedMetric)

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case client := <-cs.registerChan:
			cs.log.Printf("adding connection from %q", client.user.Username)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection from %q", client.user.Username)
			cs.removeClient(client)
		case req := <-cs.unloadRoomChan:
			if r, ok := cs.rooms[req.roomId]; ok {
				cs.unloadRoom(r.externalId)
				r.exit <- exitReq{}
				<-r.done
			}
		case req := <-cs.closeRoomChan:
			if r, ok := cs.rooms[req.roomId]; ok {
				cs.unloadRoom(r.externalId)
				r.exit <- exitReq{closed: true, reason: req.reason}
				<-r.done
			}
			close(req.done)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				close(r.exit)
				<-r.done
			}

			close(cs.done)
			return
		}
	}
}

// handleJoin routes a join to the room, loading it from the request store if
// it is not yet live. A join for an unknown (or already resolved) request id
// is answered with a room-not-found error.
func (cs *ChatServer) handleJoin(joinMsg *ClientMessage) {
	if room, ok := cs.rooms[joinMsg.Join.RoomId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			cs.log.Printf("join channel full on room %q", room.externalId)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	req, err := cs.db.GetRequestByExternalId(joinMsg.Join.RoomId)
	if err != nil {
		joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
		return
	}

	lastTs, err := cs.db.LastMessageTime(req.Id)
	if err != nil {
		cs.log.Println("LastMessageTime:", err)
		joinMsg.client.queueMessage(ErrInternalError(joinMsg.Id))
		return
	}

	room := newRoom(cs, req, lastTs)
	cs.rooms[room.externalId] = room
	cs.stats.Incr(activeRoomsMetric)
	room.joinChan <- joinMsg

	go room.start()
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

// CloseRoom broadcasts the terminal room-closed event and evicts all members.
// Closing a room that is not live is a no-op: there is nobody to notify.
func (cs *ChatServer) CloseRoom(ctx context.Context, roomId, reason string) error {
	req := closeRoomRequest{roomId: roomId, reason: reason, done: make(chan struct{})}

	select {
	case cs.closeRoomChan <- req:
	case <-ctx.Done():
		return fmt.Errorf("close room %q: %w", roomId, ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close room %q: %w", roomId, ctx.Err())
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
	cs.stats.Incr(activeClientsMetric)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	if _, ok := cs.clients[c]; ok {
		delete(cs.clients, c)
		cs.stats.Decr(activeClientsMetric)
	}
}

func (cs *ChatServer) unloadRoom(roomId string) {
	if _, ok := cs.rooms[roomId]; ok {
		cs.log.Printf("removing room %q", roomId)
		delete(cs.rooms, roomId)
		cs.stats.Decr(activeRoomsMetric)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chat server shutdown: %w", ctx.Err())
	}
}
