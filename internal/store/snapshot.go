package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aryanfhm/tgsnap/internal/snapshot"
)

// WriteSnapshot replaces the account's persisted snapshot in one transaction.
// A concurrent reader sees either the previous snapshot or the new one,
// never a mix of two runs.
func (db *DB) WriteSnapshot(s *snapshot.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Cascade removes the previous run's messages.
	if _, err := tx.Exec(`DELETE FROM snapshots WHERE account_id = ?`, s.AccountID); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO snapshots (account_id, run_id, generated_at, created_at)
		VALUES (?, ?, ?, ?)`,
		s.AccountID, s.RunID, s.GeneratedAt.UnixMilli(), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	insert := func(category string, convs map[string][]snapshot.MessageRecord) error {
		for key, records := range convs {
			for seq, rec := range records {
				if _, err := tx.Exec(`
					INSERT INTO snapshot_messages (account_id, category, conversation_key, seq, sender, body, sent_at)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					s.AccountID, category, key, seq, rec.Sender, rec.Text, rec.SentAt.UnixMilli()); err != nil {
					return fmt.Errorf("insert %s message: %w", category, err)
				}
			}
		}
		return nil
	}
	if err := insert("most_recent", s.Messages.MostRecent); err != nil {
		return err
	}
	if err := insert("unread", s.Messages.Unread); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot returns the latest persisted snapshot for the account.
// Returns ErrNotFound when the account has never been ingested.
func (db *DB) ReadSnapshot(accountID string) (*snapshot.Snapshot, error) {
	s := snapshot.New(accountID)

	var generatedAt int64
	err := db.QueryRow(`
		SELECT run_id, generated_at FROM snapshots WHERE account_id = ?`, accountID).
		Scan(&s.RunID, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	s.GeneratedAt = time.UnixMilli(generatedAt).UTC()

	rows, err := db.Query(`
		SELECT category, conversation_key, sender, body, sent_at
		FROM snapshot_messages
		WHERE account_id = ?
		ORDER BY category, conversation_key, seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category, key string
		var rec snapshot.MessageRecord
		var sentAt int64
		if err := rows.Scan(&category, &key, &rec.Sender, &rec.Text, &sentAt); err != nil {
			return nil, err
		}
		rec.SentAt = time.UnixMilli(sentAt).UTC()
		switch category {
		case "most_recent":
			s.Messages.MostRecent[key] = append(s.Messages.MostRecent[key], rec)
		case "unread":
			s.Messages.Unread[key] = append(s.Messages.Unread[key], rec)
		}
	}
	return s, rows.Err()
}

// ReadConversation returns one conversation's most-recent sequence from the
// latest snapshot. Returns ErrNotFound for unknown accounts or keys.
func (db *DB) ReadConversation(accountID, conversationKey string) ([]snapshot.MessageRecord, error) {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM snapshots WHERE account_id = ?`, accountID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	rows, err := db.Query(`
		SELECT sender, body, sent_at
		FROM snapshot_messages
		WHERE account_id = ? AND category = 'most_recent' AND conversation_key = ?
		ORDER BY seq`, accountID, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []snapshot.MessageRecord
	for rows.Next() {
		var rec snapshot.MessageRecord
		var sentAt int64
		if err := rows.Scan(&rec.Sender, &rec.Text, &sentAt); err != nil {
			return nil, err
		}
		rec.SentAt = time.UnixMilli(sentAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("conversation %s/%s: %w", accountID, conversationKey, ErrNotFound)
	}
	return records, nil
}
