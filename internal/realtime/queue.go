package realtime

import "sync"

// frameQueue is the unbounded single-producer single-consumer queue of
// outbound text frames owned by a session. The writer task drains it.
type frameQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frames []string
	closed bool
}

func newFrameQueue() *frameQueue {
	q := &frameQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame. Pushes after Close are dropped.
func (q *frameQueue) Push(frame string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.frames = append(q.frames, frame)
	q.cond.Signal()
}

// Pop blocks until a frame is available or the queue is closed.
// The second return is false once the queue is closed and drained.
func (q *frameQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.frames) == 0 {
		return "", false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// Close wakes the consumer; queued frames may still be drained.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}
