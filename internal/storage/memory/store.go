package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Store is an in-memory pricing.Store for development and tests.
type Store struct {
	mu      sync.RWMutex
	items   map[string]pricing.Item
	records []pricing.PriceRecord
	alerts  []pricing.Alert
}

var _ pricing.Store = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]pricing.Item)}
}

// SeedItem inserts or replaces an item after validating it.
func (s *Store) SeedItem(item pricing.Item) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("item id is required")
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("item %s: %w", item.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

// FindItem returns the item or pricing.ErrItemNotFound.
func (s *Store) FindItem(_ context.Context, id string) (pricing.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return pricing.Item{}, fmt.Errorf("%w: %s", pricing.ErrItemNotFound, id)
	}
	return item, nil
}

// CreatePriceRecord appends a price observation.
func (s *Store) CreatePriceRecord(_ context.Context, record pricing.PriceRecord) error {
	if record.ItemID == "" || record.Retailer == "" {
		return errors.New("price record requires item id and retailer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[record.ItemID]; !ok {
		return fmt.Errorf("%w: %s", pricing.ErrItemNotFound, record.ItemID)
	}
	s.records = append(s.records, record)
	return nil
}

// CreateAlert appends an alert.
func (s *Store) CreateAlert(_ context.Context, alert pricing.Alert) error {
	if alert.ItemID == "" || alert.Retailer == "" {
		return errors.New("alert requires item id and retailer")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[alert.ItemID]; !ok {
		return fmt.Errorf("%w: %s", pricing.ErrItemNotFound, alert.ItemID)
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

// PriceRecords returns a copy of the records stored for itemID.
func (s *Store) PriceRecords(itemID string) []pricing.PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pricing.PriceRecord
	for _, r := range s.records {
		if r.ItemID == itemID {
			out = append(out, r)
		}
	}
	return out
}

// Alerts returns a copy of the alerts stored for itemID.
func (s *Store) Alerts(itemID string) []pricing.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pricing.Alert
	for _, a := range s.alerts {
		if a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out
}
