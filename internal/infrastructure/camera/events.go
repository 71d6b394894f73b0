package camera

import (
	"sync"

	"webcam-transfer/capture/internal/domain"
)

// eventHub рассылает события захватчика подписчикам
type eventHub struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(domain.CameraEvent)
}

func newEventHub() *eventHub {
	return &eventHub{handlers: make(map[int]func(domain.CameraEvent))}
}

func (h *eventHub) subscribe(handler func(domain.CameraEvent)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.handlers[id] = handler
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.handlers, id)
		h.mu.Unlock()
	}
}

// emit вызывает обработчики вне блокировки, они могут отписываться
func (h *eventHub) emit(event domain.CameraEvent) {
	h.mu.Lock()
	handlers := make([]func(domain.CameraEvent), 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler)
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (h *eventHub) clear() {
	h.mu.Lock()
	h.handlers = make(map[int]func(domain.CameraEvent))
	h.mu.Unlock()
}

func (h *eventHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}
