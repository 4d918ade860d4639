package chat

import "sync"

// SessionQueue serializes work per session id: calls to Do with the same key
// run one at a time, in the order Do was entered. Different keys never wait
// on each other.
type SessionQueue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	tail chan struct{}
	refs int
}

func NewSessionQueue() *SessionQueue {
	return &SessionQueue{lanes: make(map[string]*lane)}
}

func (q *SessionQueue) Do(key string, fn func()) {
	q.mu.Lock()
	l := q.lanes[key]
	if l == nil {
		l = &lane{}
		q.lanes[key] = l
	}
	prev := l.tail
	done := make(chan struct{})
	l.tail = done
	l.refs++
	q.mu.Unlock()

	defer func() {
		close(done)
		q.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(q.lanes, key)
		}
		q.mu.Unlock()
	}()

	if prev != nil {
		<-prev
	}
	fn()
}

// Active returns the number of sessions with queued or running work.
func (q *SessionQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
