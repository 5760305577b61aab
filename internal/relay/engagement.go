package relay

import "sync"

const trackerShardCount = 16

type trackerShard struct {
	mu    sync.Mutex
	shown map[int64]bool
}

// Tracker remembers, per conversation, whether the durable busy notice was
// already shown. First contact gets the full notice, later messages only a
// transient acknowledgement.
type Tracker struct {
	shards [trackerShardCount]trackerShard
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i].shown = make(map[int64]bool)
	}
	return t
}

func (t *Tracker) shard(chatID int64) *trackerShard {
	return &t.shards[uint64(chatID)%trackerShardCount]
}

// MarkAndCheckFirstContact returns true exactly once per conversation, on the
// first call, and marks the notice as shown.
func (t *Tracker) MarkAndCheckFirstContact(chatID int64) bool {
	s := t.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shown[chatID] {
		return false
	}
	s.shown[chatID] = true
	return true
}

// Shown reports whether the busy notice was already shown to chatID.
func (t *Tracker) Shown(chatID int64) bool {
	s := t.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown[chatID]
}

// Seed marks chatID as already shown, used when rebuilding state from the
// store at startup.
func (t *Tracker) Seed(chatID int64) {
	s := t.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown[chatID] = true
}
