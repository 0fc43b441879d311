package store

import (
	"context"
	"sync"

	"github.com/msi-products/capwatch/internal/model"
)

// MemoryStore provides an in-memory implementation for testing when Redis is
// not available.
type MemoryStore struct {
	mu            sync.RWMutex
	entries       []model.Entry
	settings      *model.Settings
	notifications []model.Notification
	subscribers   []func(key string)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) GetEntries(ctx context.Context) ([]model.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]model.Entry, len(m.entries))
	copy(entries, m.entries)
	return entries, nil
}

func (m *MemoryStore) SetEntries(ctx context.Context, entries []model.Entry) error {
	m.mu.Lock()
	m.entries = make([]model.Entry, len(entries))
	copy(m.entries, entries)
	m.mu.Unlock()
	m.notify(KeyEntries)
	return nil
}

func (m *MemoryStore) GetSettings(ctx context.Context) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return model.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *MemoryStore) SetSettings(ctx context.Context, settings model.Settings) error {
	m.mu.Lock()
	m.settings = &settings
	m.mu.Unlock()
	m.notify(KeySettings)
	return nil
}

func (m *MemoryStore) AppendNotification(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	m.notifications = append([]model.Notification{n}, m.notifications...)
	if len(m.notifications) > notificationLimit {
		m.notifications = m.notifications[:notificationLimit]
	}
	m.mu.Unlock()
	m.notify(KeyNotifications)
	return nil
}

func (m *MemoryStore) Notifications(ctx context.Context) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notifications := make([]model.Notification, len(m.notifications))
	copy(notifications, m.notifications)
	return notifications, nil
}

func (m *MemoryStore) Subscribe(fn func(key string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *MemoryStore) notify(key string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, fn := range m.subscribers {
		fn(key)
	}
}
