package server

import (
	"time"

	"github.com/google/uuid"

	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

// Conn is the transport-side handle for one client. Send must be safe to
// call from the hub goroutine while the transport reads concurrently.
type Conn interface {
	Send(data []byte) error
	Close(reason string)
}

// session is the hub's view of one connected client. All fields are owned
// by the hub goroutine.
type session struct {
	cookie uuid.UUID
	name   string
	conn   Conn

	nextNumber protocol.PacketNumber
	dedup      protocol.Dedup
	outbox     protocol.Outbox

	lastHeard time.Time

	lobby *lobby
	match *match

	// player and lastAckedTick are only meaningful while match is set.
	player        game.PlayerID
	lastAckedTick game.Tick
}

// send encodes and transmits a message. Reliable messages stay in the
// outbox and are retransmitted until the client's ack covers them.
func (s *session) send(msg protocol.Message, now time.Time, reliable bool) error {
	s.nextNumber++
	data, err := protocol.Encode(s.nextNumber, s.dedup.Last(), s.cookie, msg)
	if err != nil {
		return err
	}
	if reliable {
		s.outbox.Add(s.nextNumber, data, now)
	}
	return s.conn.Send(data)
}

// silent reports whether the session has not been heard from for at least
// the given window.
func (s *session) silent(now time.Time, window time.Duration) bool {
	return now.Sub(s.lastHeard) >= window
}
