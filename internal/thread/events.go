package thread

// CountUpdate is published whenever the post-wide comment total changes.
type CountUpdate struct {
	PostID string `json:"post_id"`
	Count  int    `json:"count"`
}

// CountListener observes total comment count changes of a Store.
// Listeners are called outside the store lock, one update at a time, and
// must not block. Concurrent changes may be coalesced into the latest total.
type CountListener interface {
	CommentCountUpdated(CountUpdate)
}

type ListenerFunc func(CountUpdate)

func (f ListenerFunc) CommentCountUpdated(u CountUpdate) { f(u) }

// ChannelListener delivers updates on a buffered channel. Updates are dropped
// when the buffer is full.
type ChannelListener chan CountUpdate

func NewChannelListener(buffer int) ChannelListener {
	if buffer <= 0 {
		buffer = 16
	}
	return make(ChannelListener, buffer)
}

func (c ChannelListener) CommentCountUpdated(u CountUpdate) {
	select {
	case c <- u:
	default:
	}
}

// Subscribe registers l and returns a func that removes it.
func (s *Store) Subscribe(l CountListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || l == nil {
		return func() {}
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// setTotalLocked stores n, floored at zero, and reports whether it changed.
func (s *Store) setTotalLocked(n int) bool {
	n = max(n, 0)
	if n == s.total {
		return false
	}
	s.total = n
	return true
}

// notify publishes the current total. Only one goroutine delivers at a time;
// a change arriving meanwhile is picked up by that goroutine's next round, so
// listeners see totals in the order they were set and never a stale one.
func (s *Store) notify(changed bool) {
	if !changed {
		return
	}
	s.mu.Lock()
	s.notifyPending = true
	if s.notifying {
		s.mu.Unlock()
		return
	}
	s.notifying = true
	for s.notifyPending && !s.closed {
		s.notifyPending = false
		if s.total == s.notified {
			continue
		}
		s.notified = s.total
		u := CountUpdate{PostID: s.postID, Count: s.total}
		ls := make([]CountListener, 0, len(s.listeners))
		for _, l := range s.listeners {
			ls = append(ls, l)
		}
		s.mu.Unlock()

		for _, l := range ls {
			l.CommentCountUpdated(u)
		}
		s.mu.Lock()
	}
	s.notifying = false
	s.mu.Unlock()
}
