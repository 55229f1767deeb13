package channel

import (
	"errors"
	"sync"

	"floroexpress/internal/domain"
)

// ErrScopeClosed is returned when emitting through a closed scope.
var ErrScopeClosed = errors.New("channel scope closed")

// Scope groups the requests owned by one screen so their pending responses
// can be cancelled together.
type Scope struct {
	ch *Channel

	mu     sync.Mutex
	tasks  []Task
	closed bool
}

// NewScope opens a lifetime group on c.
func (c *Channel) NewScope() *Scope {
	return &Scope{ch: c}
}

// Emit sends a request whose response chain is cancelled by Close.
func (s *Scope) Emit(payload domain.Payload) (Task, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrScopeClosed
	}

	task, err := s.ch.Emit(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		task.Cancel()
		return task, nil
	}
	s.tasks = append(s.tasks, task)
	return task, nil
}

// Close cancels every pending task.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, task := range tasks {
		task.Cancel()
	}
}
