package host

import (
	"fmt"
	"sync"

	"github.com/samcharles93/vecstream/internal/device"
)

type task struct {
	run     func() error
	barrier chan struct{}
}

// stream executes tasks one at a time in the order they were enqueued. The
// first failing task poisons the stream: later work is skipped and the error
// is reported by Synchronize.
type stream struct {
	id    int
	dev   *Device
	tasks chan task
	done  chan struct{}

	mu        sync.RWMutex
	destroyed bool

	errMu sync.Mutex
	err   error
}

func newStream(dev *Device, id, depth int) *stream {
	s := &stream{
		id:    id,
		dev:   dev,
		tasks: make(chan task, depth),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *stream) ID() int {
	return s.id
}

func (s *stream) String() string {
	return fmt.Sprintf("host stream %d", s.id)
}

func (s *stream) loop() {
	defer close(s.done)
	for t := range s.tasks {
		if t.barrier != nil {
			close(t.barrier)
			continue
		}
		if s.failed() != nil {
			continue
		}
		if err := t.run(); err != nil {
			s.fail(err)
		}
	}
}

// enqueue blocks while the queue is full.
func (s *stream) enqueue(run func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return device.ErrReleased
	}
	if err := s.failed(); err != nil {
		return err
	}
	s.tasks <- task{run: run}
	return nil
}

func (s *stream) Synchronize() error {
	s.mu.RLock()
	if s.destroyed {
		s.mu.RUnlock()
		return device.ErrReleased
	}
	barrier := make(chan struct{})
	s.tasks <- task{barrier: barrier}
	s.mu.RUnlock()

	<-barrier
	return s.failed()
}

// Destroy waits for queued work to drain before releasing the stream.
func (s *stream) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return device.ErrReleased
	}
	s.destroyed = true
	close(s.tasks)
	s.mu.Unlock()

	<-s.done
	s.dev.releaseStream(s.id)
	return nil
}

func (s *stream) fail(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) failed() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
