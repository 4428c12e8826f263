package db

import (
	"crypto/rand"
	"fmt"
	"time"
)

// VerificationCode is a one-time token proving that whoever types it in a
// chat controls the owning account.
type VerificationCode struct {
	Code      string    `json:"code"`
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Crockford-style alphabet: no 0/O or 1/I/L lookalikes, easy to retype from
// a screen into a chat.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeLength = 8

// DefaultCodeTTL is how long an issued code stays redeemable.
const DefaultCodeTTL = 15 * time.Minute

// IssueVerificationCode creates a fresh one-time code for the account.
// Previously issued unconsumed codes stay valid until they expire.
func (db *DB) IssueVerificationCode(accountID string, ttl time.Duration) (*VerificationCode, error) {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}

	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	now := time.Now()
	vc := &VerificationCode{
		Code:      string(code),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := db.conn.Exec(`
		INSERT INTO verification_codes (code, account_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, vc.Code, vc.AccountID, vc.CreatedAt, vc.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert verification code: %w", err)
	}

	return vc, nil
}

// PurgeExpiredCodes removes codes past their expiry. Consumed codes are kept
// so redelivered link attempts resolve against LinkConversationAccount's
// idempotency path rather than a missing row.
func (db *DB) PurgeExpiredCodes() (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM verification_codes
		WHERE consumed_at IS NULL AND expires_at <= ?
	`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("purge verification codes: %w", err)
	}
	return res.RowsAffected()
}
