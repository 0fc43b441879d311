package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/crm"
	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/model"
	"github.com/msi-products/capwatch/internal/store"
	"github.com/msi-products/capwatch/internal/summary"
	"github.com/msi-products/capwatch/internal/views"
)

// FlagPatch carries the user-settable flag changes for one entry. Nil fields
// are left untouched.
type FlagPatch struct {
	Read    *bool `json:"read"`
	Saved   *bool `json:"saved"`
	Deleted *bool `json:"deleted"`
}

// Service owns the ingestion pipeline: fetch, dedup against the seen-set,
// summarize, merge into the persisted collection. Every collection
// read-modify-write (cycle merge, flag updates, mark-all-read) is funneled
// through one mutex so overlapping triggers cannot lose updates.
type Service struct {
	cfg        *config.Config
	store      store.Store
	crm        *crm.Client
	summarizer *summary.Summarizer

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewService hydrates the seen-set from the persisted collection; it is a
// derived cache of the store, never persisted itself.
func NewService(ctx context.Context, cfg *config.Config, st store.Store, crmClient *crm.Client, summarizer *summary.Summarizer) (*Service, error) {
	entries, err := st.GetEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate seen-set: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Guid] = struct{}{}
	}

	logger.Get().Info().
		Int("seeded_guids", len(seen)).
		Msg("Ingest service initialized")

	return &Service{
		cfg:        cfg,
		store:      st,
		crm:        crmClient,
		summarizer: summarizer,
		seen:       seen,
	}, nil
}

// FilterNew returns the entries whose guid has not been seen this process
// lifetime and records those guids. Membership test and insertion happen as
// one step under the lock, so an entry is returned at most once.
func (s *Service) FilterNew(entries []model.Entry) []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []model.Entry
	for _, e := range entries {
		if _, ok := s.seen[e.Guid]; ok {
			continue
		}
		s.seen[e.Guid] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh
}

// RunCycle executes one poll cycle. A fetch failure aborts the cycle and is
// returned for logging; the next scheduled tick retries naturally.
// Summarization failures degrade to no summaries.
func (s *Service) RunCycle(ctx context.Context) error {
	log := logger.Get()
	start := time.Now()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	if settings.CRMToken == "" {
		log.Debug().Msg("No CRM token configured, skipping cycle")
		return nil
	}

	entries, err := s.crm.FetchEntries(ctx, settings.CRMToken)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	fresh := s.FilterNew(entries)
	log.Info().
		Int("fetched", len(entries)).
		Int("new", len(fresh)).
		Dur("fetch_duration", time.Since(start)).
		Msg("Fetched CRM entries")

	if len(fresh) == 0 {
		return nil
	}

	summaries := s.summarizer.Summarize(ctx, settings.SummariesEnabled, settings.OpenAIKey, fresh)
	for i := range fresh {
		if text, ok := summaries[fresh[i].Guid]; ok {
			fresh[i].Summary = text
		}
	}

	if err := s.merge(ctx, fresh); err != nil {
		return err
	}

	if settings.NotificationsEnabled {
		if err := s.notify(ctx, fresh, settings.SoundEnabled); err != nil {
			log.Error().Err(err).Msg("Failed to record notification")
		}
	}

	log.Info().
		Int("ingested", len(fresh)).
		Int("summarized", len(summaries)).
		Dur("cycle_duration", time.Since(start)).
		Msg("Cycle completed")
	return nil
}

// merge prepends the new entries to the persisted collection and applies the
// retention cap. The merged list is not re-sorted here; readers that depend on
// order sort by date themselves.
func (s *Service) merge(ctx context.Context, fresh []model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	merged := append(append([]model.Entry{}, fresh...), existing...)
	if s.cfg.MaxEntries > 0 && len(merged) > s.cfg.MaxEntries {
		merged = merged[:s.cfg.MaxEntries]
	}

	if err := s.store.SetEntries(ctx, merged); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

// notify records one aggregated notification for the cycle: up to 5 item
// titles plus an overflow count.
func (s *Service) notify(ctx context.Context, fresh []model.Entry, sound bool) error {
	items := make([]string, 0, model.MaxNotificationItems)
	for _, e := range fresh {
		if len(items) == model.MaxNotificationItems {
			break
		}
		items = append(items, e.Title)
	}

	return s.store.AppendNotification(ctx, model.Notification{
		Title:     "New CRM Activity",
		Items:     items,
		Overflow:  len(fresh) - len(items),
		Sound:     sound,
		CreatedAt: time.Now(),
	})
}

// SetFlags applies a flag patch to every stored entry with the given guid and
// re-sorts the collection by date descending before writing it back.
func (s *Service) SetFlags(ctx context.Context, guid string, patch FlagPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.GetEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	found := false
	for i := range entries {
		if entries[i].Guid != guid {
			continue
		}
		found = true
		if patch.Read != nil {
			entries[i].Read = *patch.Read
		}
		if patch.Saved != nil {
			entries[i].Saved = *patch.Saved
		}
		if patch.Deleted != nil {
			entries[i].Deleted = *patch.Deleted
		}
	}

	if !found {
		return fmt.Errorf("entry %s not found", guid)
	}

	model.SortByDateDesc(entries)
	if err := s.store.SetEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

// MarkRecentRead marks the entries inside the recent window as read.
func (s *Service) MarkRecentRead(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.GetEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection: %w", err)
	}

	recent := make(map[string]struct{})
	for _, guid := range views.RecentGuids(entries) {
		recent[guid] = struct{}{}
	}

	for i := range entries {
		if _, ok := recent[entries[i].Guid]; ok {
			entries[i].Read = true
		}
	}

	model.SortByDateDesc(entries)
	if err := s.store.SetEntries(ctx, entries); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

// Resolve maps a notification click-through back to a navigation target. An
// unknown guid falls back to the CRM base URL rather than a broken link.
func (s *Service) Resolve(ctx context.Context, guid string) (string, error) {
	entries, err := s.store.GetEntries(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read collection: %w", err)
	}

	for _, e := range entries {
		if e.Guid == guid && e.Link != "" {
			return e.Link, nil
		}
	}
	return s.cfg.CRMBaseURL, nil
}
