package application

import (
	"io"
	"sync"
)

// ResourceRegistry связывает идентификатор трека ровно с одним
// вспомогательным нативным ресурсом и гарантирует не более одного закрытия.
type ResourceRegistry struct {
	mu      sync.Mutex
	live    map[string]io.Closer
	retired map[string]struct{}
	logger  Logger
}

// NewResourceRegistry создает пустой реестр
func NewResourceRegistry(logger Logger) *ResourceRegistry {
	return &ResourceRegistry{
		live:    make(map[string]io.Closer),
		retired: make(map[string]struct{}),
		logger:  logger,
	}
}

// Register регистрирует ресурс под ключом трека.
// Ключ можно зарегистрировать только один раз за все время жизни реестра.
func (r *ResourceRegistry) Register(key string, resource io.Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.retired[key]; ok {
		return ErrRetiredKey
	}
	if _, ok := r.live[key]; ok {
		return ErrAlreadyRegistered
	}

	r.live[key] = resource
	r.logger.Debug("Ресурс зарегистрирован: %s", key)
	return nil
}

// Release закрывает ресурс ключа. Повторный вызов ничего не делает.
func (r *ResourceRegistry) Release(key string) error {
	r.mu.Lock()
	resource, ok := r.live[key]
	if ok {
		delete(r.live, key)
		// retired не очищается: выведенный ключ нельзя зарегистрировать
		// повторно, ключи уникальны (uuid), рост ограничен числом перезапусков
		r.retired[key] = struct{}{}
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	r.logger.Debug("Освобождение ресурса: %s", key)
	return resource.Close()
}

// Live возвращает число неосвобожденных ресурсов
func (r *ResourceRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Has сообщает, зарегистрирован ли живой ресурс под ключом
func (r *ResourceRegistry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[key]
	return ok
}
