package relay

import (
	"sync"
	"time"
)

const limiterShardCount = 16

type limiterShard struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

// Limiter is a per-conversation flood gate. Two messages from the same chat
// closer together than the configured interval make the second one a silent
// drop. State is sharded by chat id; different conversations never contend.
type Limiter struct {
	interval time.Duration
	shards   [limiterShardCount]limiterShard
}

// NewLimiter creates a Limiter with the given minimum message interval.
func NewLimiter(interval time.Duration) *Limiter {
	l := &Limiter{interval: interval}
	for i := range l.shards {
		l.shards[i].last = make(map[int64]time.Time)
	}
	return l
}

func (l *Limiter) shard(chatID int64) *limiterShard {
	return &l.shards[uint64(chatID)%limiterShardCount]
}

// Allow reports whether a message from chatID at now may proceed. A denied
// message leaves the recorded timestamp untouched, so a flood keeps being
// measured against the last accepted message. The recorded timestamp never
// moves backwards.
func (l *Limiter) Allow(chatID int64, now time.Time) bool {
	s := l.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, seen := s.last[chatID]; seen && now.Sub(last) < l.interval {
		return false
	}
	s.last[chatID] = now
	return true
}

// Seed restores a chat's last accepted timestamp, used when rebuilding state
// from the store at startup.
func (l *Limiter) Seed(chatID int64, last time.Time) {
	s := l.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, seen := s.last[chatID]; !seen || last.After(existing) {
		s.last[chatID] = last
	}
}

// LastSeen returns the last accepted timestamp for chatID, if any.
func (l *Limiter) LastSeen(chatID int64) (time.Time, bool) {
	s := l.shard(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.last[chatID]
	return last, seen
}
