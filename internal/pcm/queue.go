package pcm

import "sync"

// queue is a bounded PCM byte queue. When the producer outruns the
// consumer, the oldest audio is discarded; recording glitches are preferred
// over unbounded memory and growing latency.
type queue struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	dropped int
}

func newQueue(max int) *queue {
	return &queue{max: max}
}

func (q *queue) push(p []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.buf = append(q.buf, p...)
	if over := len(q.buf) - q.max; over > 0 {
		q.buf = q.buf[over:]
		q.dropped += over
	}
}

func (q *queue) pop(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n
}

func (q *queue) droppedBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
