package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyLinked is returned when a conversation is already linked to a
// different account. Linking is single-assignment: once set, the account
// reference is never overwritten.
var ErrAlreadyLinked = errors.New("conversation already linked to another account")

// Conversation binds a chat identity to at most one account. One row exists
// per chat id; AccountID is nil until verification succeeds.
type Conversation struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chatId"`
	SenderID  int64     `json:"senderId"`
	AccountID *string   `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetOrCreateConversation atomically fetches or creates the conversation for
// a chat id. The unique constraint on chat_id is the source of truth: under
// concurrent first contact exactly one insert wins and the loser reads the
// winner's row. Returns created=true iff this call inserted the row.
func (db *DB) GetOrCreateConversation(chatID, senderID int64) (*Conversation, bool, error) {
	now := time.Now()
	res, err := db.conn.Exec(`
		INSERT INTO conversations (id, chat_id, sender_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO NOTHING
	`, NewID(), chatID, senderID, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("upsert conversation: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	conv, err := db.GetConversationByChatID(chatID)
	if err != nil {
		return nil, false, err
	}
	return conv, inserted > 0, nil
}

// GetConversationByChatID retrieves the conversation for a chat id
func (db *DB) GetConversationByChatID(chatID int64) (*Conversation, error) {
	row := db.conn.QueryRow(`
		SELECT id, chat_id, sender_id, account_id, created_at, updated_at
		FROM conversations WHERE chat_id = ?
	`, chatID)
	return scanConversation(row.Scan)
}

// LinkConversationAccount consumes a verification code and links its owning
// account to the conversation in one transaction. The link is set-once:
// relinking the same account is a no-op success (safe under redelivery),
// relinking a different account fails with ErrAlreadyLinked. The code is
// only marked consumed when the link is established or re-confirmed.
func (db *DB) LinkConversationAccount(conversationID, code string) (*Account, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	var accountID string
	var consumedAt, expiresAt sql.NullTime
	err = tx.QueryRow(`
		SELECT account_id, consumed_at, expires_at FROM verification_codes
		WHERE code = ?
	`, code).Scan(&accountID, &consumedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup verification code: %w", err)
	}

	var linked sql.NullString
	err = tx.QueryRow(`
		SELECT account_id FROM conversations WHERE id = ?
	`, conversationID).Scan(&linked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	if linked.Valid && linked.String != accountID {
		return nil, ErrAlreadyLinked
	}

	if !linked.Valid {
		// A burnt or expired code cannot establish a new link. Re-presenting
		// a consumed code for an already-linked conversation (redelivered
		// update) falls through to the no-op path below instead.
		if consumedAt.Valid || !expiresAt.Valid || !expiresAt.Time.After(now) {
			return nil, ErrNotFound
		}
		// Guarded update: only assigns while still unset, so a concurrent
		// writer cannot overwrite an established link.
		res, err := tx.Exec(`
			UPDATE conversations SET account_id = ?, updated_at = ?
			WHERE id = ? AND account_id IS NULL
		`, accountID, now, conversationID)
		if err != nil {
			return nil, fmt.Errorf("link conversation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrAlreadyLinked
		}
	}

	if _, err := tx.Exec(`
		UPDATE verification_codes SET consumed_at = ?
		WHERE code = ? AND consumed_at IS NULL
	`, now, code); err != nil {
		return nil, fmt.Errorf("consume verification code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return db.GetAccount(accountID)
}

func scanConversation(scan scanFunc) (*Conversation, error) {
	var c Conversation
	var accountID sql.NullString
	err := scan(&c.ID, &c.ChatID, &c.SenderID, &accountID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.AccountID = StringPtr(accountID)
	return &c, nil
}
