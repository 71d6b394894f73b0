package application

import (
	"sync"
	"sync/atomic"

	"webcam-transfer/capture/internal/domain"
)

// configStore хранит публикуемую конфигурацию трека.
// Значение заменяется целиком, читатели никогда не видят частичного обновления.
type configStore struct {
	current atomic.Pointer[domain.TrackConfiguration]

	mu       sync.Mutex
	watchers map[int]func(domain.TrackConfiguration)
	nextID   int
}

func newConfigStore(initial domain.TrackConfiguration) *configStore {
	s := &configStore{watchers: make(map[int]func(domain.TrackConfiguration))}
	s.current.Store(&initial)
	return s
}

func (s *configStore) Load() domain.TrackConfiguration {
	return *s.current.Load()
}

// Swap публикует новое значение и уведомляет наблюдателей вне блокировки
func (s *configStore) Swap(next domain.TrackConfiguration) domain.TrackConfiguration {
	prev := s.current.Swap(&next)
	s.notify(next)
	return *prev
}

func (s *configStore) notify(next domain.TrackConfiguration) {
	s.mu.Lock()
	watchers := make([]func(domain.TrackConfiguration), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(next)
	}
}

func (s *configStore) Watch(fn func(domain.TrackConfiguration)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}
