package store

import (
	"context"

	"github.com/msi-products/capwatch/internal/model"
)

// Storage keys, relative to the configured prefix.
const (
	KeyEntries       = "entries"
	KeySettings      = "settings"
	KeyNotifications = "notifications"
)

// notifications kept per store
const notificationLimit = 20

// Store is the key-value persistence layer behind the pipeline. All reads and
// writes move the entire value for a key (read-before-use, write-after-mutate);
// callers that need atomicity across a read-modify-write funnel it through
// ingest.Service.
type Store interface {
	GetEntries(ctx context.Context) ([]model.Entry, error)
	SetEntries(ctx context.Context, entries []model.Entry) error

	GetSettings(ctx context.Context) (model.Settings, error)
	SetSettings(ctx context.Context, settings model.Settings) error

	AppendNotification(ctx context.Context, n model.Notification) error
	Notifications(ctx context.Context) ([]model.Notification, error)

	// Subscribe registers a callback invoked with the key name after every
	// successful write. Callbacks must be fast; they run on the writer's
	// goroutine.
	Subscribe(fn func(key string))

	Close() error
}
