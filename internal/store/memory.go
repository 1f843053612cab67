package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/guarzo/listforge/internal/model"
)

// Memory implements Store in process memory. Values are copied in and out.
type Memory struct {
	mu       sync.RWMutex
	listings map[string]model.Listing
	sales    map[string]model.SaleTransaction // by listing id
	profiles map[string]model.UserProfile
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		listings: make(map[string]model.Listing),
		sales:    make(map[string]model.SaleTransaction),
		profiles: make(map[string]model.UserProfile),
	}
}

func (m *Memory) SaveListing(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listings[l.ID]; exists {
		return fmt.Errorf("listing %s already exists", l.ID)
	}
	m.listings[l.ID] = *l
	return nil
}

func (m *Memory) GetListing(_ context.Context, id string) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
	}
	return &l, nil
}

func (m *Memory) RecordObservation(_ context.Context, id string, obs Observation) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
	}
	if obs.Views != nil {
		views := *obs.Views
		l.Views = &views
	}
	if obs.WatchCount != nil {
		watchers := *obs.WatchCount
		l.WatchCount = &watchers
	}
	at := obs.At
	l.LastCheckedAt = &at
	l.UpdatedAt = obs.At
	m.listings[id] = l
	return &l, nil
}

func (m *Memory) ListingsByUser(_ context.Context, userID string) ([]model.Listing, error) {
	return m.filterListings(func(l model.Listing) bool { return l.UserID == userID }), nil
}

func (m *Memory) ListingsByStatus(_ context.Context, status model.ListingStatus) ([]model.Listing, error) {
	return m.filterListings(func(l model.Listing) bool { return l.Status == status }), nil
}

func (m *Memory) filterListings(keep func(model.Listing) bool) []model.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Listing, 0)
	for _, l := range m.listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Memory) TransitionListing(_ context.Context, id string, from, to model.ListingStatus, at time.Time, sale *model.SaleTransaction) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, model.ErrNotFound)
	}
	if l.Status != from {
		return nil, fmt.Errorf("listing %s is %s: %w", id, l.Status, model.ErrInvalidTransition)
	}
	if sale != nil {
		if _, exists := m.sales[id]; exists {
			return nil, fmt.Errorf("listing %s already has a sale transaction", id)
		}
		m.sales[id] = *sale
	}

	l.Status = to
	l.UpdatedAt = at
	m.listings[id] = l
	return &l, nil
}

func (m *Memory) Sales(_ context.Context, f SaleFilter) ([]model.SaleTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SaleTransaction, 0)
	for _, s := range m.sales {
		if f.UserID != "" && s.UserID != f.UserID {
			continue
		}
		if f.Marketplace != "" && s.Marketplace != f.Marketplace {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SoldAt.After(out[j].SoldAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) SaleByListing(_ context.Context, listingID string) (*model.SaleTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sales[listingID]
	if !ok {
		return nil, fmt.Errorf("sale for listing %s: %w", listingID, model.ErrNotFound)
	}
	return &s, nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, model.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) SaveProfile(_ context.Context, p *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = *p
	return nil
}
