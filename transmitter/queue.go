package transmitter

import "github.com/eapache/queue"

// PacketQueue is the inbound FIFO of a transmitter. It is not synchronized;
// backends guard it with their own lock.
type PacketQueue struct {
	q *queue.Queue
}

// NewPacketQueue returns an empty queue.
func NewPacketQueue() *PacketQueue {
	return &PacketQueue{q: queue.New()}
}

// Push appends p.
func (pq *PacketQueue) Push(p *RawPacket) {
	pq.q.Add(p)
}

// Pop removes and returns the oldest packet, or nil when empty.
func (pq *PacketQueue) Pop() *RawPacket {
	if pq.q.Length() == 0 {
		return nil
	}
	return pq.q.Remove().(*RawPacket)
}

// Len returns the number of queued packets.
func (pq *PacketQueue) Len() int {
	return pq.q.Length()
}

// Clear drops every queued packet.
func (pq *PacketQueue) Clear() {
	pq.q = queue.New()
}
