package state

import "sync"

// SelectedActivity is the process-wide "which activity am I viewing" value.
// A zero ActivityID means nothing is selected.
type SelectedActivity struct {
	ActivityID uint
	Name       string
	SkillLevel string
	Emoji      string
}

// SelectedActivityStore is constructed once at startup and shared by every
// activity-scoped consumer. Set is a strict no-op when nothing changed so
// consumers keyed on the value never re-render in a loop.
type SelectedActivityStore struct {
	mu        sync.Mutex
	current   SelectedActivity
	listeners map[int]func(SelectedActivity)
	nextID    int
}

func NewSelectedActivityStore() *SelectedActivityStore {
	return &SelectedActivityStore{listeners: make(map[int]func(SelectedActivity))}
}

func (s *SelectedActivityStore) Get() SelectedActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the held value and notifies listeners. No-op when all four
// fields are unchanged.
func (s *SelectedActivityStore) Set(v SelectedActivity) {
	s.mu.Lock()
	if s.current == v {
		s.mu.Unlock()
		return
	}
	s.current = v
	notify := make([]func(SelectedActivity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		notify = append(notify, fn)
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(v)
	}
}

// Subscribe registers a listener and returns its unsubscribe func
func (s *SelectedActivityStore) Subscribe(fn func(SelectedActivity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
