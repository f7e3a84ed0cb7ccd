// Package master holds the per-year configuration masters that supply display
// names for products, side items and toppings.
//
// Masters are never diffed. They are looked up once per log row during
// normalization, and a missing entry falls back to the raw key rather than
// failing. A master can be edited or deleted after an order was placed.
package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by a Source when no master exists for a year.
var ErrNotFound = errors.New("master not found")

// Topping is one selectable topping on a product.
type Topping struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Item is a product or side item entry of a master.
type Item struct {
	Name     string    `json:"name" yaml:"name"`
	Price    int64     `json:"price" yaml:"price"`
	Toppings []Topping `json:"toppings,omitempty" yaml:"toppings,omitempty"`
}

// Master is the configuration master for one business year.
type Master struct {
	Year  int             `json:"year" yaml:"year"`
	Items map[string]Item `json:"items" yaml:"items"`
}

// ItemName returns the display name for key.
func (m Master) ItemName(key string) (string, bool) {
	it, ok := m.Items[key]
	if !ok || it.Name == "" {
		return "", false
	}
	return it.Name, true
}

// ToppingName resolves a topping id within the given item.
func (m Master) ToppingName(itemKey, toppingID string) (string, bool) {
	it, ok := m.Items[itemKey]
	if !ok {
		return "", false
	}
	for _, t := range it.Toppings {
		if t.ID == toppingID && t.Name != "" {
			return t.Name, true
		}
	}
	return "", false
}

// Source loads the master for a year.
// Implementations return an error wrapping ErrNotFound when the year has no master.
type Source interface {
	Load(ctx context.Context, year int) (Master, error)
}

// Partition maps a year to its settings partition name.
// Every backend uses the same mapping so a master written through one can
// be located by any other.
func Partition(year int) string {
	return fmt.Sprintf("settings_%d", year)
}

// MemorySource is a thread-safe in-memory Source.
type MemorySource struct {
	mu   sync.RWMutex
	data map[int]Master
}

// NewMemorySource creates a MemorySource seeded with masters.
func NewMemorySource(masters ...Master) *MemorySource {
	s := &MemorySource{data: make(map[int]Master, len(masters))}
	for _, m := range masters {
		s.data[m.Year] = m
	}
	return s
}

// Put stores or replaces the master for m.Year.
func (s *MemorySource) Put(m Master) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[m.Year] = m
}

// Load implements Source.
func (s *MemorySource) Load(_ context.Context, year int) (Master, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[year]
	if !ok {
		return Master{}, fmt.Errorf("%s: %w", Partition(year), ErrNotFound)
	}
	return m, nil
}
