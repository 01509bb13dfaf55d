// Package settings serializes access to the shared settings document. The
// document carries fields owned by different components (focus session state,
// trigger history, presets); routing every read-modify-write cycle through
// one service keeps a writer from clobbering another component's fields with
// a stale copy.
package settings

import (
	"context"
	"sync"

	"github.com/example/reminder-engine/internal/alarm"
)

// Store is the persistence slice the service wraps.
type Store interface {
	LoadSettings(ctx context.Context) (alarm.Settings, error)
	SaveSettings(ctx context.Context, settings alarm.Settings) error
}

// Service is the single owner of settings document writes.
type Service struct {
	mu    sync.Mutex
	store Store
}

// NewService wraps a store. All components that touch the settings document
// must share one Service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// LoadSettings returns the current document.
func (s *Service) LoadSettings(ctx context.Context) (alarm.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadSettings(ctx)
}

// UpdateSettings loads the document, applies mutate and writes the result
// back as one step. Concurrent updates are serialized, so a mutation never
// observes or resurrects a stale document.
func (s *Service) UpdateSettings(ctx context.Context, mutate func(*alarm.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	mutate(&settings)
	return s.store.SaveSettings(ctx, settings)
}
