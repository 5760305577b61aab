package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the persistence interface for relay state. All methods accept
// a context for cancellation and timeouts. Lookups are by chat id
// (conversations) and by relayed message id (relay records); the presence row
// is a singleton.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetConversation fetches a conversation by chat ID. Returns nil, nil if not found.
	GetConversation(ctx context.Context, chatID int64) (*Conversation, error)

	// ListConversations returns all known conversations, used to warm the
	// in-memory relay state at startup.
	ListConversations(ctx context.Context) ([]Conversation, error)

	// UpsertConversation inserts or updates a conversation row.
	UpsertConversation(ctx context.Context, conv *Conversation) error

	// SaveRelayRecord inserts a new relay record.
	SaveRelayRecord(ctx context.Context, rec *RelayRecord) error

	// ListRelayRecordsSince returns relay records created at or after cutoff.
	ListRelayRecordsSince(ctx context.Context, cutoff time.Time) ([]RelayRecord, error)

	// DeleteRelayRecordsBefore removes relay records created before cutoff and
	// returns the number of rows deleted.
	DeleteRelayRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// GetPresence fetches the operator presence singleton. Returns nil, nil if
	// the row was never written.
	GetPresence(ctx context.Context) (*Presence, error)

	// SavePresence inserts or updates the presence singleton.
	SavePresence(ctx context.Context, p *Presence) error

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore implements Store on top of sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by the given sqlx connection pool.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetConversation(ctx context.Context, chatID int64) (*Conversation, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv,
		`SELECT chat_id, last_message_at, first_contact_shown, created_at, updated_at
		 FROM conversations WHERE chat_id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Failed to get conversation", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get conversation %d: %w", chatID, err)
	}
	return &conv, nil
}

func (s *sqlxStore) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	err := s.db.SelectContext(ctx, &convs,
		`SELECT chat_id, last_message_at, first_contact_shown, created_at, updated_at
		 FROM conversations`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list conversations", "error", err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *sqlxStore) UpsertConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return fmt.Errorf("cannot save nil conversation")
	}
	if conv.ChatID == 0 {
		return fmt.Errorf("conversation must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	conv.UpdatedAt = now
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (chat_id, last_message_at, first_contact_shown, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   last_message_at = excluded.last_message_at,
		   first_contact_shown = excluded.first_contact_shown,
		   updated_at = excluded.updated_at`,
		conv.ChatID, conv.LastMessageAt, conv.FirstContactShown, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to upsert conversation", "chat_id", conv.ChatID, "error", err)
		return fmt.Errorf("failed to upsert conversation %d: %w", conv.ChatID, err)
	}
	return nil
}

func (s *sqlxStore) SaveRelayRecord(ctx context.Context, rec *RelayRecord) error {
	if rec == nil {
		return fmt.Errorf("cannot save nil relay record")
	}
	if rec.RelayedMessageID == 0 {
		return fmt.Errorf("relay record must have a non-zero relayed_message_id")
	}
	if rec.ChatID == 0 {
		return fmt.Errorf("relay record must have a non-zero chat_id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relay_records (relayed_message_id, chat_id, created_at) VALUES (?, ?, ?)`,
		rec.RelayedMessageID, rec.ChatID, rec.CreatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save relay record",
			"relayed_message_id", rec.RelayedMessageID, "chat_id", rec.ChatID, "error", err)
		return fmt.Errorf("failed to save relay record %d: %w", rec.RelayedMessageID, err)
	}
	return nil
}

func (s *sqlxStore) ListRelayRecordsSince(ctx context.Context, cutoff time.Time) ([]RelayRecord, error) {
	var recs []RelayRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT relayed_message_id, chat_id, created_at FROM relay_records
		 WHERE created_at >= ? ORDER BY created_at`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list relay records", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("failed to list relay records: %w", err)
	}
	return recs, nil
}

func (s *sqlxStore) DeleteRelayRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM relay_records WHERE created_at < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete old relay records", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete relay records before %s: %w", cutoff, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted relay records: %w", err)
	}
	return deleted, nil
}

func (s *sqlxStore) GetPresence(ctx context.Context) (*Presence, error) {
	var p Presence
	err := s.db.GetContext(ctx, &p,
		`SELECT id, available, pending_transition, updated_at FROM presence WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Failed to get presence", "error", err)
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return &p, nil
}

func (s *sqlxStore) SavePresence(ctx context.Context, p *Presence) error {
	if p == nil {
		return fmt.Errorf("cannot save nil presence")
	}
	p.ID = 1
	p.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presence (id, available, pending_transition, updated_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   available = excluded.available,
		   pending_transition = excluded.pending_transition,
		   updated_at = excluded.updated_at`,
		p.Available, p.PendingTransition, p.UpdatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save presence", "error", err)
		return fmt.Errorf("failed to save presence: %w", err)
	}
	return nil
}

func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running database maintenance")

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("vacuum failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		s.logger.ErrorContext(ctx, "PRAGMA optimize failed", "error", err)
		return fmt.Errorf("pragma optimize failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance finished")
	return nil
}
