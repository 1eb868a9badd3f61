package store

import "sync"

// Subscription is a cancellable snapshot stream. Snapshots are delivered
// in the order the store emits them; the channel closes after Cancel or
// after a terminal error (inspect Err once the channel is closed).
type Subscription struct {
	out  chan []Document
	wake chan struct{}
	done chan struct{}

	mu     sync.Mutex
	queue  [][]Document
	err    error
	failed bool

	once sync.Once
	stop func()
}

func newSubscription(stop func()) *Subscription {
	s := &Subscription{
		out:  make(chan []Document),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		stop: stop,
	}
	go s.pump()
	return s
}

func (s *Subscription) Snapshots() <-chan []Document { return s.out }

// Err reports the terminal subscription error, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel releases the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		close(s.done)
	})
}

// push queues a snapshot without blocking the emitter.
func (s *Subscription) push(docs []Document) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, docs)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// fail records the terminal error; queued snapshots are still delivered.
func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if !s.failed {
		s.failed = true
		s.err = err
	}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				failed := s.failed
				s.mu.Unlock()
				if failed {
					return
				}
				break
			}
			docs := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			select {
			case s.out <- docs:
			case <-s.done:
				return
			}
		}
	}
}
