package database

import "time"

// Conversation is one end-user chat session. It tracks the timestamp used by
// the flood gate and whether the durable busy notice was already shown.
type Conversation struct {
	ChatID            int64     `db:"chat_id"`
	LastMessageAt     time.Time `db:"last_message_at"`
	FirstContactShown bool      `db:"first_contact_shown"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RelayRecord links a message copy delivered to the operator chat back to the
// chat it came from. Written once per forwarded message, read when the
// operator replies to the copy.
type RelayRecord struct {
	RelayedMessageID int64     `db:"relayed_message_id"`
	ChatID           int64     `db:"chat_id"`
	CreatedAt        time.Time `db:"created_at"`
}

// Presence is the singleton operator availability row. PendingTransition is
// one of "none", "available", or "away" and is consumed by the next user
// notice after an operator status change.
type Presence struct {
	ID                int64     `db:"id"`
	Available         bool      `db:"available"`
	PendingTransition string    `db:"pending_transition"`
	UpdatedAt         time.Time `db:"updated_at"`
}
