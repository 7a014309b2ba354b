package server

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/stats"
	"github.com/Kanishk2Kumar/CampusPulse/internal/testutil"
	"github.com/Kanishk2Kumar/CampusPulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestChatServer(t *testing.T, db database.CampusRepository, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything).Times(3)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func newTestClient(user types.User) *Client {
	return &Client{
		user: user,
		send: make(chan *ServerMessage, 256),
		stop: make(chan struct{}),
	}
}

func recvMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout: client did not receive a message")
		return nil
	}
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockCampusRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, db, su)
	assert.NotNil(t, cs.joinChan, "expected joinChan to be initialized")
	assert.NotNil(t, cs.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func Test_handleJoin(t *testing.T) {
	t.Run("unknown room id", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRequestByExternalId", "missing").Return(database.HelpRequest{}, sql.ErrNoRows)

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)

		c := newTestClient(types.User{Id: 1, Username: "user1"})
		cs.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "missing"},
			UserId:      1,
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Response, "expected a response message")
		assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected room not found")
		assert.Empty(t, cs.rooms, "expected no room to be created")
	})

	t.Run("loads room on first join", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRequestByExternalId", "req1").Return(database.HelpRequest{
			Id:         7,
			ExternalId: "req1",
			OwnerId:    1,
			Title:      "need help with calculus",
		}, nil)
		db.On("LastMessageTime", 7).Return(time.Time{}, nil)

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)

		c := newTestClient(types.User{Id: 1, Username: "user1"})
		cs.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "req1"},
			UserId:      1,
			client:      c,
		})

		room, ok := cs.rooms["req1"]
		assert.True(t, ok, "expected room to be registered")

		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Response, "expected a join response")
		assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected OK join response")
		assert.Equal(t, "req1", msg.Response.Data["room_id"], "expected room id in join response")
		assert.Equal(t, "need help with calculus", msg.Response.Data["title"], "expected title in join response")
		assert.Equal(t, room, c.currentRoom(), "expected client to be attached to the room")

		close(room.exit)
		<-room.done
	})
}

func TestCloseRoom(t *testing.T) {
	t.Run("closes a live room", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRequestByExternalId", "req1").Return(database.HelpRequest{
			Id:         7,
			ExternalId: "req1",
			OwnerId:    1,
			Title:      "flat hunting",
		}, nil)
		db.On("LastMessageTime", 7).Return(time.Time{}, nil)

		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		go cs.Run()

		c := newTestClient(types.User{Id: 2, Username: "helper"})
		cs.joinChan <- &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "req1"},
			UserId:      2,
			client:      c,
		}

		joinResp := recvMessage(t, c)
		assert.Equal(t, http.StatusOK, joinResp.Response.ResponseCode, "expected join to succeed")

		err := cs.CloseRoom(context.Background(), "req1", "resolved")
		assert.NoError(t, err, "expected CloseRoom to succeed")

		closed := recvMessage(t, c)
		assert.NotNil(t, closed.Notification, "expected a notification")
		assert.NotNil(t, closed.Notification.RoomClosed, "expected a room closed notification")
		assert.Equal(t, "req1", closed.Notification.RoomClosed.RoomId, "expected room id in notification")
		assert.Equal(t, "resolved", closed.Notification.RoomClosed.Reason, "expected close reason")
		assert.Len(t, c.send, 0, "expected exactly one room closed event")
		assert.Nil(t, c.currentRoom(), "expected client to be detached after close")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown")
	})

	t.Run("room not loaded is a no-op", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		go cs.Run()

		err := cs.CloseRoom(context.Background(), "nobody-here", "resolved")
		assert.NoError(t, err, "expected CloseRoom on unloaded room to succeed")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown")
	})

	t.Run("expired context", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		su := &stats.MockStatsUpdater{}
		cs := newTestChatServer(t, db, su)
		// Run loop intentionally not started

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := cs.CloseRoom(ctx, "req1", "resolved")
		assert.Error(t, err, "expected CloseRoom to fail with cancelled context")
	})
}

func Test_addClient_removeClient(t *testing.T) {
	db := &database.MockCampusRepository{}
	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, db, su)

	c := newTestClient(types.User{Id: 1, Username: "user1"})
	cs.addClient(c)
	assert.Contains(t, cs.clients, c, "expected client to be tracked")

	cs.removeClient(c)
	assert.NotContains(t, cs.clients, c, "expected client to be removed")

	// removing twice must not underflow the client count
	cs.removeClient(c)
	su.AssertNumberOfCalls(t, "Decr", 1)
}
