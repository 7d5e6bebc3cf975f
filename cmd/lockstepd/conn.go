package main

import (
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/race/lockstep/internal/metrics"
	"github.com/race/lockstep/internal/room"
	"github.com/race/lockstep/internal/wire"
)

// errConnectionClosed is returned by Send once the connection's done
// channel has already fired.
var errConnectionClosed = errors.New("lockstepd: connection closed")

const writeWait = 10 * time.Second

// hardReadLimit bounds what gorilla will ever buffer for a single frame,
// set well above any configured max_input_size so an oversized envelope
// is something dispatch can drop-and-count (spec.md S5) instead of
// something that kills the connection outright.
const hardReadLimit = 64 * 1024

// clientConn is one WebSocket connection's lifecycle: admission, then
// dispatch of input/reconnect/leave messages, generalizing the teacher's
// ClientConnection (cmd/gameserver/main.go before this rewrite) from the
// racing protocol to the CBOR envelope vocabulary in internal/wire.
type clientConn struct {
	ws       *websocket.Conn
	server   *Server
	sendChan chan []byte
	done     chan struct{}

	room     *room.Room
	playerID string

	heartbeatTimeout time.Duration
	pingPeriod       time.Duration
}

// Send queues data for delivery, satisfying room.Connection. Non-blocking:
// a full buffer drops the message rather than stalling the tick loop's
// broadcast (spec.md §4.7: "sending is best-effort").
func (c *clientConn) Send(data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return errConnectionClosed
	default:
		return nil
	}
}

// Close gracefully shuts the connection down. Safe to call more than once.
func (c *clientConn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.ws.Close()
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump runs the admission handshake (spec.md §4.7 step 1: a 5s
// window to send auth or reconnect) and then dispatches every subsequent
// message until the socket closes.
func (c *clientConn) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(hardReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.heartbeatTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.heartbeatTimeout))
		return nil
	})

	if !c.admit() {
		return
	}

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error from %s: %v", c.playerID, err)
			}
			return
		}
		if max := c.room.MaxInputSize(); max > 0 && len(data) > max {
			// spec.md S5: an oversized envelope is dropped and counted as
			// a violation, not a reason to close the connection outright.
			if c.room.Violate(c.playerID, time.Now()) == room.ResultClose {
				c.closeWithCode(wire.ClosePolicyViolation, "too many violations")
				return
			}
			continue
		}
		c.dispatch(data)
	}
}

// admit runs the auth-or-reconnect handshake under the spec's 5s
// auth_timeout and returns whether the connection is now a room member
// in good standing.
func (c *clientConn) admit() bool {
	c.ws.SetReadDeadline(time.Now().Add(c.server.config.AuthTimeout))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.closeWithCode(wire.CloseAuthTimeout, "auth timeout")
		return false
	}
	c.ws.SetReadDeadline(time.Now().Add(c.heartbeatTimeout))

	env, err := wire.Decode(data)
	if err != nil {
		c.closeWithCode(wire.CloseAuthFailed, "malformed auth")
		return false
	}

	switch env.Type {
	case wire.TypeAuth:
		return c.admitJoin(env)
	case wire.TypeReconnect:
		return c.admitReconnect(env)
	default:
		c.closeWithCode(wire.CloseAuthFailed, "expected auth or reconnect")
		return false
	}
}

// admitCloseCode maps a Manager.Admit failure to the close code spec.md
// §7 assigns it: a full room gets 4004 (room_full), everything else
// (invalid identifier, already a member) is an auth failure.
func admitCloseCode(err error) int {
	if errors.Is(err, room.ErrRoomFull) {
		return wire.CloseRoomFull
	}
	return wire.CloseAuthFailed
}

func (c *clientConn) admitJoin(env wire.Envelope) bool {
	var auth wire.AuthPayload
	if err := wire.DecodePayload(env, &auth); err != nil {
		c.closeWithCode(wire.CloseAuthFailed, "malformed auth payload")
		return false
	}

	result, err := c.server.manager.Admit(auth, c)
	if err != nil {
		c.closeWithCode(admitCloseCode(err), err.Error())
		return false
	}

	c.room = result.Room
	c.playerID = auth.PlayerID

	if data, err := wire.Encode(wire.TypeJoinSuccess, result.JoinSuccess); err == nil {
		c.Send(data)
	}
	if data, err := wire.Encode(wire.TypePlayerJoined, result.PlayerJoined); err == nil {
		c.room.BroadcastExcept(data, c.playerID)
	}
	if result.GameStart != nil {
		if data, err := wire.Encode(wire.TypeGameStart, *result.GameStart); err == nil {
			c.room.Broadcast(data)
		}
	}

	log.Printf("player %s joined room %s", c.playerID, c.room.ID)
	return true
}

func (c *clientConn) admitReconnect(env wire.Envelope) bool {
	var rec wire.ReconnectPayload
	if err := wire.DecodePayload(env, &rec); err != nil {
		c.closeWithCode(wire.CloseAuthFailed, "malformed reconnect payload")
		return false
	}

	r, ok := c.server.manager.Get(rec.RoomID)
	if !ok {
		c.closeWithCode(wire.CloseAuthFailed, "unknown room")
		return false
	}

	data, err := r.Reconnect(rec.PlayerID, c, rec.LastFrame)
	if err != nil {
		c.closeWithCode(wire.CloseAuthFailed, err.Error())
		return false
	}

	c.room = r
	c.playerID = rec.PlayerID
	c.Send(data)

	log.Printf("player %s reconnected to room %s", c.playerID, r.ID)
	return true
}

// dispatch routes one post-admission message to its handler, closing the
// connection on a policy violation per spec.md §7.
func (c *clientConn) dispatch(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		return
	}

	switch env.Type {
	case wire.TypeInput:
		c.handleInput(env)
	case wire.TypeLeave:
		c.handleLeave()
	case wire.TypeReconnect:
		// Already a member; a reconnect here would only apply after a
		// disconnect, which this dispatch loop never survives.
	}
}

func (c *clientConn) handleInput(env wire.Envelope) {
	var in wire.InputPayload
	if err := wire.DecodePayload(env, &in); err != nil {
		return
	}

	result := c.room.HandleInput(c.playerID, in.FrameID, in.InputData, time.Now())
	switch result {
	case room.ResultClose:
		c.closeWithCode(wire.ClosePolicyViolation, "too many violations")
	case room.ResultRateLimited:
		c.closeWithCode(wire.CloseRateLimited, "rate limit exceeded")
	}
}

func (c *clientConn) handleLeave() {
	c.Close()
}

func (c *clientConn) closeWithCode(code int, message string) {
	if data, err := wire.Encode(wire.TypeError, wire.ErrorPayload{Code: code, Message: message}); err == nil {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, message), time.Now().Add(writeWait))
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.BinaryMessage, data)
	}
	c.Close()
}

// cleanup removes the connection from its room on any terminal read
// error or explicit close, mirroring the teacher's cleanup().
func (c *clientConn) cleanup() {
	metrics.ConnectionsActive.Dec()
	if c.room != nil && c.playerID != "" {
		if c.room.RemoveMember(c.playerID) {
			if data, err := wire.Encode(wire.TypePlayerLeft, wire.PlayerLeftPayload{PlayerID: c.playerID}); err == nil {
				c.room.Broadcast(data)
			}
		}
	}
	c.Close()
}
