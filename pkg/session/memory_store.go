package session

import (
	"sync"

	"profilegrab/pkg/models"
)

// MemoryStore is an in-process Store with error injection for tests
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[models.Platform]*Credentials

	LoadError   error
	SaveError   error
	DeleteError error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[models.Platform]*Credentials{}}
}

func (m *MemoryStore) Load(platform models.Platform) (*Credentials, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[platform]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (m *MemoryStore) Save(creds *Credentials) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if err := creds.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[creds.Platform] = clone(creds)
	return nil
}

func (m *MemoryStore) Delete(platform models.Platform) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[platform]; !ok {
		return ErrNotFound
	}
	delete(m.creds, platform)
	return nil
}

func (m *MemoryStore) Platforms() ([]models.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Platform
	for _, p := range models.Platforms {
		if _, ok := m.creds[p]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Count returns how many platforms have saved cookies
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
