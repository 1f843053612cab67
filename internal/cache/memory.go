package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Entry is one cached value
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       time.Duration   `json:"ttl"`
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Timestamp) > e.TTL
}

// Memory is an in-process LRU cache with per-entry TTL
type Memory struct {
	maxSize int
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
	mu      sync.Mutex
}

// NewMemory creates a memory cache holding at most maxSize entries; maxSize <= 0 means unbounded
func NewMemory(maxSize int) *Memory {
	return &Memory{
		maxSize: maxSize,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// WithClock replaces the clock used for expiry
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string, target any) (bool, error) {
	m.mu.Lock()
	element, ok := m.items[key]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	entry := element.Value.(*Entry)
	if entry.expired(m.now()) {
		m.removeElement(element)
		m.mu.Unlock()
		return false, nil
	}
	m.lru.MoveToFront(element)
	data := entry.Data
	m.mu.Unlock()

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return true, nil
}

func (m *Memory) Put(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &Entry{Key: key, Data: data, Timestamp: m.now(), TTL: ttl}
	if element, exists := m.items[key]; exists {
		element.Value = entry
		m.lru.MoveToFront(element)
		return nil
	}

	m.items[key] = m.lru.PushFront(entry)
	m.evictIfNecessary()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if element, exists := m.items[key]; exists {
		m.removeElement(element)
	}
	return nil
}

// Len returns the current number of entries, expired ones included
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) removeElement(element *list.Element) {
	delete(m.items, element.Value.(*Entry).Key)
	m.lru.Remove(element)
}

func (m *Memory) evictIfNecessary() {
	if m.maxSize <= 0 {
		return
	}
	for len(m.items) > m.maxSize {
		if oldest := m.lru.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}
}
