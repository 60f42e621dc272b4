package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// SQLiteStore is a message store backed by SQLite. The claim is a
// conditional UPDATE on the lock columns, so it is atomic across
// independent processes sharing the database file. The change feed is
// realized by polling on the rowid watermark.
type SQLiteStore struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent claims
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			content TEXT NOT NULL,
			author_id TEXT,
			author_name TEXT,
			created_at INTEGER NOT NULL,
			is_bot INTEGER NOT NULL DEFAULT 0,
			is_processing INTEGER NOT NULL DEFAULT 0,
			is_processed INTEGER NOT NULL DEFAULT 0,
			processing_started_at INTEGER,
			processed_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{
		db:           db,
		pollInterval: time.Second,
	}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append writes a new message
func (s *SQLiteStore) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, content, author_id, author_name, created_at, is_bot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.ChannelID, stored.Content, stored.AuthorID, stored.AuthorName,
		stored.CreatedAt.UnixMilli(), boolToInt(stored.IsBot))
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &stored, nil
}

// Get fetches one message by ID
func (s *SQLiteStore) Get(ctx context.Context, channelID, msgID string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel_id, content, author_id, author_name, created_at,
		       is_bot, is_processing, is_processed, processing_started_at, processed_at
		FROM messages
		WHERE id = ? AND channel_id = ?
	`, msgID, channelID)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return msg, nil
}

// TryClaim atomically marks the message as processing. The UPDATE only
// matches while both lock columns are clear, so concurrent claimants
// race on a single row write and exactly one wins.
func (s *SQLiteStore) TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_processing = 1, processing_started_at = ?
		WHERE id = ? AND channel_id = ? AND is_processing = 0 AND is_processed = 0
	`, time.Now().UnixMilli(), msgID, channelID)
	if err != nil {
		return domain.AlreadyClaimed, fmt.Errorf("failed to claim message: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.AlreadyClaimed, fmt.Errorf("failed to read claim result: %w", err)
	}
	if rows == 1 {
		return domain.Claimed, nil
	}

	// Lost the race, or the message does not exist
	if _, err := s.Get(ctx, channelID, msgID); err != nil {
		return domain.AlreadyClaimed, err
	}
	return domain.AlreadyClaimed, nil
}

// Complete marks a claimed message as processed. Already-processed
// messages are left untouched.
func (s *SQLiteStore) Complete(ctx context.Context, channelID, msgID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_processing = 0, is_processed = 1, processed_at = ?
		WHERE id = ? AND channel_id = ? AND is_processed = 0
	`, time.Now().UnixMilli(), msgID, channelID)
	if err != nil {
		return fmt.Errorf("failed to complete message: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read complete result: %w", err)
	}
	if rows == 0 {
		// No-op when already processed; an error only if the row is gone
		if _, err := s.Get(ctx, channelID, msgID); err != nil {
			return err
		}
	}
	return nil
}

// ReclaimStale releases claims whose processing started before cutoff
func (s *SQLiteStore) ReclaimStale(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_processing = 0, processing_started_at = NULL
		WHERE channel_id = ? AND is_processing = 1 AND is_processed = 0
		  AND processing_started_at < ?
	`, channelID, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale claims: %w", err)
	}
	return res.RowsAffected()
}

// RecentHistory returns the most recent messages, oldest first
func (s *SQLiteStore) RecentHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, content, author_id, author_name, created_at,
		       is_bot, is_processing, is_processed, processing_started_at, processed_at
		FROM messages
		WHERE channel_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	// Reverse to oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Subscribe starts a polling change feed over the channel. New rows are
// detected by rowid, so every insert is delivered exactly once per
// subscription; only rows created at or after the watermark are emitted.
func (s *SQLiteStore) Subscribe(ctx context.Context, channelID string, watermark time.Time) (repo.Subscription, error) {
	sub := &sqliteSub{
		ch:   make(chan domain.ChangeEvent, 256),
		stop: make(chan struct{}),
	}

	go s.poll(ctx, sub, channelID, watermark.UnixMilli())
	return sub, nil
}

func (s *SQLiteStore) poll(ctx context.Context, sub *sqliteSub, channelID string, watermarkMs int64) {
	defer close(sub.ch)

	var lastRowID int64
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		events, maxRowID, err := s.fetchNew(ctx, channelID, lastRowID, watermarkMs)
		if err != nil {
			fmt.Printf("[SQLiteStore] Feed poll failed: %v\n", err)
		} else {
			lastRowID = maxRowID
			for _, ev := range events {
				select {
				case sub.ch <- ev:
				case <-sub.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case <-ticker.C:
		case <-sub.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *SQLiteStore) fetchNew(ctx context.Context, channelID string, lastRowID, watermarkMs int64) ([]domain.ChangeEvent, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, id, channel_id, content, author_id, author_name, created_at,
		       is_bot, is_processing, is_processed, processing_started_at, processed_at
		FROM messages
		WHERE channel_id = ? AND rowid > ? AND created_at >= ?
		ORDER BY rowid
	`, channelID, lastRowID, watermarkMs)
	if err != nil {
		return nil, lastRowID, err
	}
	defer rows.Close()

	var events []domain.ChangeEvent
	maxRowID := lastRowID
	for rows.Next() {
		var rowID int64
		msg, err := scanMessage(rows, &rowID)
		if err != nil {
			return nil, lastRowID, err
		}
		if rowID > maxRowID {
			maxRowID = rowID
		}
		events = append(events, domain.ChangeEvent{Type: domain.EventAdded, Message: *msg})
	}
	return events, maxRowID, rows.Err()
}

type sqliteSub struct {
	ch   chan domain.ChangeEvent
	stop chan struct{}
	once sync.Once
}

func (sub *sqliteSub) Events() <-chan domain.ChangeEvent {
	return sub.ch
}

func (sub *sqliteSub) Unsubscribe() {
	sub.once.Do(func() { close(sub.stop) })
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage scans a message row. Extra leading destinations (such as
// rowid) are scanned before the message columns.
func scanMessage(row rowScanner, head ...any) (*domain.Message, error) {
	var msg domain.Message
	var authorID, authorName sql.NullString
	var createdAt int64
	var isBot, isProcessing, isProcessed int
	var processingStartedAt, processedAt sql.NullInt64

	dest := append(head, &msg.ID, &msg.ChannelID, &msg.Content, &authorID, &authorName,
		&createdAt, &isBot, &isProcessing, &isProcessed, &processingStartedAt, &processedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	msg.AuthorID = authorID.String
	msg.AuthorName = authorName.String
	msg.CreatedAt = time.UnixMilli(createdAt)
	msg.IsBot = isBot != 0
	msg.IsProcessing = isProcessing != 0
	msg.IsProcessed = isProcessed != 0
	if processingStartedAt.Valid {
		t := time.UnixMilli(processingStartedAt.Int64)
		msg.ProcessingStartedAt = &t
	}
	if processedAt.Valid {
		t := time.UnixMilli(processedAt.Int64)
		msg.ProcessedAt = &t
	}
	return &msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
