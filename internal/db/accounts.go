package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUsernameTaken is returned when creating an account with a username
// that already exists.
var ErrUsernameTaken = errors.New("username already taken")

type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateAccount creates a new account with an already-hashed password
func (db *DB) CreateAccount(username, passwordHash string) (*Account, error) {
	id := NewID()
	now := time.Now()

	_, err := db.conn.Exec(`
		INSERT INTO accounts (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, id, username, passwordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return db.GetAccount(id)
}

// GetAccount retrieves an account by ID
func (db *DB) GetAccount(id string) (*Account, error) {
	row := db.conn.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row.Scan)
}

// GetAccountByUsername retrieves an account by its unique username
func (db *DB) GetAccountByUsername(username string) (*Account, error) {
	row := db.conn.QueryRow(`
		SELECT id, username, password_hash, created_at
		FROM accounts WHERE username = ?
	`, username)
	return scanAccount(row.Scan)
}

func scanAccount(scan scanFunc) (*Account, error) {
	var a Account
	err := scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// isUniqueViolation reports whether err is a sqlite unique-constraint error.
// modernc.org/sqlite does not export a typed error for this, so match the
// message the way its own tests do.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
