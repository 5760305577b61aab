package relay

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateRelay signals an insert for a relayed message id that is
	// already mapped. The transport assigns these ids, so a duplicate is a
	// logic error, not something to retry.
	ErrDuplicateRelay = errors.New("relay record already exists")

	// ErrRelayNotFound signals a reply to a message id with no known origin,
	// either never relayed or pruned past the retention window.
	ErrRelayNotFound = errors.New("relay record not found")
)

type correlationEntry struct {
	chatID    int64
	createdAt time.Time
}

// CorrelationMap maps a relayed message id in the operator chat back to the
// chat it originated from. It is shared across every conversation, so all
// access is serialized through a single RWMutex.
type CorrelationMap struct {
	mu      sync.RWMutex
	entries map[int64]correlationEntry
}

// NewCorrelationMap creates an empty CorrelationMap.
func NewCorrelationMap() *CorrelationMap {
	return &CorrelationMap{entries: make(map[int64]correlationEntry)}
}

// Record maps relayedID to chatID. Returns ErrDuplicateRelay if relayedID is
// already present.
func (m *CorrelationMap) Record(relayedID, chatID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[relayedID]; exists {
		return ErrDuplicateRelay
	}
	m.entries[relayedID] = correlationEntry{chatID: chatID, createdAt: at}
	return nil
}

// Resolve returns the origin chat id for relayedID, or ErrRelayNotFound.
func (m *CorrelationMap) Resolve(relayedID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.entries[relayedID]
	if !exists {
		return 0, ErrRelayNotFound
	}
	return entry.chatID, nil
}

// PruneBefore drops entries recorded before cutoff and returns how many were
// removed. Replies to pruned ids resolve to ErrRelayNotFound afterwards.
func (m *CorrelationMap) PruneBefore(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for id, entry := range m.entries {
		if entry.createdAt.Before(cutoff) {
			delete(m.entries, id)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live entries.
func (m *CorrelationMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
