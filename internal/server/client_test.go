package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/Kanishk2Kumar/CampusPulse/internal/database"
	"github.com/Kanishk2Kumar/CampusPulse/internal/stats"
	"github.com/Kanishk2Kumar/CampusPulse/internal/testutil"
	"github.com/Kanishk2Kumar/CampusPulse/internal/types"
	"github.com/stretchr/testify/assert"
)

func newAttachedTestClient(t *testing.T, cs *ChatServer, user types.User) *Client {
	c := newTestClient(user)
	c.chatServer = cs
	c.log = testutil.TestLogger(t)
	return c
}

func Test_publish(t *testing.T) {
	t.Run("blank body is rejected locally", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		defer db.AssertExpectations(t) // no store calls expected

		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

		for _, content := range []string{"", "   ", "\n\t "} {
			c.publish(&ClientMessage{
				BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
				Publish:     &Publish{RoomId: "req1", Content: content},
			})

			msg := recvMessage(t, c)
			assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode, "expected bad request for blank body")
			assert.Equal(t, "message body is empty", msg.Response.Error, "expected empty body error")
		}
	})

	t.Run("not in a room", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

		c.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "req1", Content: "hi"},
		})

		msg := recvMessage(t, c)
		assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected room not found")
	})

	t.Run("room id does not match the joined room", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		c.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "other", Content: "hi"},
		})

		msg := recvMessage(t, c)
		assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected room not found")
		assert.Len(t, r.publishChan, 0, "expected nothing to be queued for the room")
	})

	t.Run("forwards to the room", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		c.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "req1", Content: "hi"},
		})

		select {
		case msg := <-r.publishChan:
			assert.Equal(t, "hi", msg.Publish.Content, "expected message to be forwarded")
		case <-time.After(time.Second):
			t.Fatal("timeout: message was not forwarded to the room")
		}
		assert.Len(t, c.send, 0, "expected no error response")
	})

	t.Run("room queue full", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		for i := 0; i < cap(r.publishChan); i++ {
			r.publishChan <- &ClientMessage{}
		}

		c.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "req1", Content: "hi"},
		})

		msg := recvMessage(t, c)
		assert.Equal(t, http.StatusServiceUnavailable, msg.Response.ResponseCode, "expected service unavailable")
	})
}

func Test_joinRoom(t *testing.T) {
	t.Run("forwards the join request", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

		c.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "req1"},
			client:      c,
		})

		select {
		case msg := <-cs.joinChan:
			assert.Equal(t, "req1", msg.Join.RoomId, "expected join to be forwarded")
		case <-time.After(time.Second):
			t.Fatal("timeout: join was not forwarded to the server")
		}
	})

	t.Run("rejoining the same room is a local ack", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1", Title: "lost keys"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		c.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Join:        &Join{RoomId: "req1"},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected an OK ack")
		assert.Equal(t, "req1", msg.Response.Data["room_id"], "expected the current room id")
		assert.Len(t, cs.joinChan, 0, "expected no join to be forwarded")
	})

	t.Run("joining another room leaves the current one", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		c.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Join:        &Join{RoomId: "req2"},
			client:      c,
		})

		select {
		case leave := <-r.leaveChan:
			assert.Equal(t, "req1", leave.Leave.RoomId, "expected a leave for the current room")
			assert.Zero(t, leave.Id, "expected an internal leave with no request id")
		case <-time.After(time.Second):
			t.Fatal("timeout: leave was not sent to the current room")
		}

		select {
		case msg := <-cs.joinChan:
			assert.Equal(t, "req2", msg.Join.RoomId, "expected the join to be forwarded")
		case <-time.After(time.Second):
			t.Fatal("timeout: join was not forwarded to the server")
		}
	})
}

func Test_leaveRoom(t *testing.T) {
	t.Run("not in the named room", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

		c.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{RoomId: "req1"},
			client:      c,
		})

		msg := recvMessage(t, c)
		assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected room not found")
	})

	t.Run("forwards the leave request", func(t *testing.T) {
		db := &database.MockCampusRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
		r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.attachRoom(r)

		c.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4, Timestamp: Now()},
			Leave:       &Leave{RoomId: "req1"},
			client:      c,
		})

		select {
		case leave := <-r.leaveChan:
			assert.Equal(t, 4, leave.Id, "expected the request id to be preserved")
		case <-time.After(time.Second):
			t.Fatal("timeout: leave was not forwarded to the room")
		}
	})
}

func Test_queueMessage(t *testing.T) {
	t.Run("stopped client", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
		c.stopClient()

		assert.False(t, c.queueMessage(NoErrOK(1, nil)), "expected enqueue to fail for a stopped client")
		assert.Len(t, c.send, 0, "expected nothing to be queued")
	})

	t.Run("full buffer", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
		c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

		for i := 0; i < cap(c.send); i++ {
			c.send <- NoErrOK(i, nil)
		}

		assert.False(t, c.queueMessage(NoErrOK(1, nil)), "expected enqueue to fail when the buffer is full")
	})
}

func Test_stopClient_idempotent(t *testing.T) {
	cs := newTestChatServer(t, &database.MockCampusRepository{}, &stats.MockStatsUpdater{})
	c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})

	c.stopClient()
	assert.NotPanics(t, c.stopClient, "expected repeated stop to be safe")
}

func Test_cleanup(t *testing.T) {
	db := &database.MockCampusRepository{}
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
	r := newRoom(cs, database.HelpRequest{Id: 7, ExternalId: "req1"}, time.Time{})

	c := newAttachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
	cs.addClient(c)
	c.attachRoom(r)

	c.cleanup()

	select {
	case gone := <-cs.deRegisterChan:
		assert.Equal(t, c, gone, "expected the client to deregister itself")
	case <-time.After(time.Second):
		t.Fatal("timeout: client did not deregister")
	}

	select {
	case leave := <-r.leaveChan:
		assert.Zero(t, leave.Id, "expected an internal leave with no request id")
	case <-time.After(time.Second):
		t.Fatal("timeout: client did not leave its room")
	}

	select {
	case <-c.stop:
	default:
		t.Fatal("expected the client to be stopped")
	}
}
