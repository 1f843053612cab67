package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/guarzo/listforge/internal/model"
)

// DefaultStateTTL bounds how long an authorization redirect may take
const DefaultStateTTL = 10 * time.Minute

type pendingState struct {
	marketplace model.MarketplaceID
	expiresAt   time.Time
}

// StateManager tracks OAuth state values between the authorize redirect and the callback
type StateManager struct {
	mu     sync.Mutex
	states map[string]pendingState
	ttl    time.Duration
	now    func() time.Time
}

// NewStateManager creates a state manager; expired states are pruned on access
func NewStateManager(ttl time.Duration, now func() time.Time) *StateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateManager{
		states: make(map[string]pendingState),
		ttl:    ttl,
		now:    now,
	}
}

// Issue creates a new state value bound to a marketplace
func (sm *StateManager) Issue(m model.MarketplaceID) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.pruneLocked()
	sm.states[state] = pendingState{marketplace: m, expiresAt: sm.now().Add(sm.ttl)}
	return state, nil
}

// Consume validates and removes a state value. Each state is accepted once.
func (sm *StateManager) Consume(state string) (model.MarketplaceID, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	pending, exists := sm.states[state]
	if !exists {
		return "", false
	}
	delete(sm.states, state)

	if sm.now().After(pending.expiresAt) {
		return "", false
	}
	return pending.marketplace, true
}

// Pending returns the number of outstanding states
func (sm *StateManager) Pending() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.pruneLocked()
	return len(sm.states)
}

func (sm *StateManager) pruneLocked() {
	now := sm.now()
	for state, pending := range sm.states {
		if now.After(pending.expiresAt) {
			delete(sm.states, state)
		}
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
