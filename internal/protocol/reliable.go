package protocol

import "time"

// Outbox tracks encoded packets that must reach the peer. A packet stays
// pending until the peer's ack covers its number; Due returns everything
// whose last transmission is older than the resend interval.
type Outbox struct {
	pending []pendingPacket
}

type pendingPacket struct {
	number PacketNumber
	data   []byte
	sentAt time.Time
}

// Add registers an already-transmitted packet for retransmission tracking.
// Numbers must be added in increasing order.
func (o *Outbox) Add(number PacketNumber, data []byte, now time.Time) {
	o.pending = append(o.pending, pendingPacket{number: number, data: data, sentAt: now})
}

// Ack drops every pending packet with a number at or below n and returns how
// many were dropped. Acks are cumulative.
func (o *Outbox) Ack(n PacketNumber) int {
	i := 0
	for i < len(o.pending) && o.pending[i].number <= n {
		i++
	}
	if i > 0 {
		o.pending = append(o.pending[:0], o.pending[i:]...)
	}
	return i
}

// Due returns the packets whose last transmission is older than the resend
// interval and stamps them as sent now.
func (o *Outbox) Due(now time.Time, resend time.Duration) [][]byte {
	var due [][]byte
	for i := range o.pending {
		if now.Sub(o.pending[i].sentAt) >= resend {
			due = append(due, o.pending[i].data)
			o.pending[i].sentAt = now
		}
	}
	return due
}

// Len returns the number of unacknowledged packets.
func (o *Outbox) Len() int { return len(o.pending) }

// Dedup tracks the highest packet number seen from one sender.
type Dedup struct {
	last PacketNumber
	seen bool
}

// Accept reports whether the packet number is new, advancing the watermark
// when it is. Duplicates and stale packets return false.
func (d *Dedup) Accept(n PacketNumber) bool {
	if d.seen && n <= d.last {
		return false
	}
	d.last = n
	d.seen = true
	return true
}

// Last returns the highest accepted number, to echo in the ack field.
func (d *Dedup) Last() PacketNumber { return d.last }
