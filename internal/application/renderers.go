package application

import "sync"

// RendererSet упорядоченное множество потребителей кадров логического трека.
// Порядок добавления сохраняется при любых заменах конвейера.
type RendererSet struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewRendererSet создает пустое множество
func NewRendererSet() *RendererSet {
	return &RendererSet{}
}

// Add добавляет потребителя в конец. Возвращает false, если он уже есть.
func (s *RendererSet) Add(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(sink) >= 0 {
		return false
	}
	s.sinks = append(s.sinks, sink)
	return true
}

// Remove удаляет потребителя. Возвращает false, если его не было.
func (s *RendererSet) Remove(sink Sink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(sink)
	if i < 0 {
		return false
	}
	s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
	return true
}

// Sinks возвращает копию списка в порядке добавления
func (s *RendererSet) Sinks() []Sink {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Sink, len(s.sinks))
	copy(out, s.sinks)
	return out
}

// Len возвращает число потребителей
func (s *RendererSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sinks)
}

// Migrate переносит всех потребителей со старого трека на новый в порядке добавления.
// Любой из треков может быть nil.
func (s *RendererSet) Migrate(from, to TrackHandle) {
	for _, sink := range s.Sinks() {
		if from != nil {
			from.RemoveSink(sink)
		}
		if to != nil {
			to.AddSink(sink)
		}
	}
}

func (s *RendererSet) indexOf(sink Sink) int {
	for i, existing := range s.sinks {
		if existing == sink {
			return i
		}
	}
	return -1
}
