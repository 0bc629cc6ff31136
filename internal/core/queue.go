package core

import "sync"

// OutboundQueue is the per-connection FIFO of fully framed packets awaiting
// transmission. The hub goroutine pushes, the connection's write pump pops.
// Packets are opaque byte slices; frame boundaries are never merged.
type OutboundQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	packets [][]byte
	closed  bool
}

// NewOutboundQueue returns an empty open queue.
func NewOutboundQueue() *OutboundQueue {
	q := &OutboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a framed packet. Returns false if the queue is closed.
func (q *OutboundQueue) Push(packet []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.packets = append(q.packets, packet)
	q.cond.Signal()
	return true
}

// Pop blocks until a packet is available or the queue is closed. The second
// return is false once the queue is closed and drained of nothing — a close
// discards anything still queued.
func (q *OutboundQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.packets) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	packet := q.packets[0]
	q.packets = q.packets[1:]
	return packet, true
}

// Close discards queued packets and wakes any blocked Pop. Safe to call more
// than once.
func (q *OutboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.packets = nil
	q.cond.Broadcast()
}

// Len reports how many packets are queued.
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}
