package camera

import (
	"sync"

	"webcam-transfer/capture/internal/domain"
)

// FrameSource медиаисточник: захватчик пишет в него кадры,
// источник раздает их привязанным трекам
type FrameSource struct {
	screencast bool

	mu       sync.RWMutex
	tracks   []*Track
	disposed bool
}

// NewFrameSource создает новый источник
func NewFrameSource(screencast bool) *FrameSource {
	return &FrameSource{screencast: screencast}
}

// Screencast сообщает, что источник захватывает экран
func (s *FrameSource) Screencast() bool {
	return s.screencast
}

// Deliver передает кадр всем привязанным трекам
func (s *FrameSource) Deliver(frame *domain.VideoFrame) {
	s.mu.RLock()
	if s.disposed {
		s.mu.RUnlock()
		return
	}
	tracks := make([]*Track, len(s.tracks))
	copy(tracks, s.tracks)
	s.mu.RUnlock()

	for _, t := range tracks {
		t.deliver(frame)
	}
}

func (s *FrameSource) attach(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.disposed {
		s.tracks = append(s.tracks, t)
	}
}

func (s *FrameSource) detach(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tracks {
		if existing == t {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			return
		}
	}
}

// Dispose отвязывает все треки, дальнейшие кадры отбрасываются
func (s *FrameSource) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.tracks = nil
	return nil
}
