package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleWriter Role = "writer"
	RoleReader Role = "reader"
)

// ValidRole reports whether r is a known participant role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleWriter, RoleReader:
		return true
	default:
		return false
	}
}

type Board struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BoardParticipant struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	AccountID string    `json:"accountId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateBoard creates a board and registers ownerID as its owner participant
// in one transaction.
func (db *DB) CreateBoard(title, ownerID string) (*Board, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := NewID()
	now := time.Now()

	if _, err := tx.Exec(`
		INSERT INTO boards (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, title, now, now); err != nil {
		return nil, fmt.Errorf("insert board: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO board_participants (id, board_id, account_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, NewID(), id, ownerID, RoleOwner, now); err != nil {
		return nil, fmt.Errorf("insert owner participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return db.GetBoard(id)
}

// GetBoard retrieves a board by ID (deleted boards included; callers filter)
func (db *DB) GetBoard(id string) (*Board, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, is_deleted, created_at, updated_at
		FROM boards WHERE id = ?
	`, id)
	return scanBoard(row.Scan)
}

// ListBoardsForAccount retrieves non-deleted boards the account participates in
func (db *DB) ListBoardsForAccount(accountID string) ([]*Board, error) {
	rows, err := db.conn.Query(`
		SELECT b.id, b.title, b.is_deleted, b.created_at, b.updated_at
		FROM boards b
		JOIN board_participants p ON p.board_id = b.id
		WHERE p.account_id = ? AND b.is_deleted = FALSE
		ORDER BY b.created_at
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query boards: %w", err)
	}
	defer rows.Close()

	var boards []*Board
	for rows.Next() {
		b, err := scanBoard(rows.Scan)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// ParticipantRole returns the account's role on a board, or ErrNotFound when
// the account does not participate.
func (db *DB) ParticipantRole(boardID, accountID string) (Role, error) {
	var role Role
	err := db.conn.QueryRow(`
		SELECT role FROM board_participants
		WHERE board_id = ? AND account_id = ?
	`, boardID, accountID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// AddParticipant adds an account to a board with the given role. The unique
// (board, account) constraint rejects duplicates.
func (db *DB) AddParticipant(boardID, accountID string, role Role) (*BoardParticipant, error) {
	id := NewID()
	now := time.Now()

	_, err := db.conn.Exec(`
		INSERT INTO board_participants (id, board_id, account_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, boardID, accountID, role, now)
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}

	return &BoardParticipant{ID: id, BoardID: boardID, AccountID: accountID, Role: role, CreatedAt: now}, nil
}

// DeleteBoard soft-deletes a board
func (db *DB) DeleteBoard(id string) error {
	res, err := db.conn.Exec(`
		UPDATE boards SET is_deleted = TRUE, updated_at = ? WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBoard(scan scanFunc) (*Board, error) {
	var b Board
	err := scan(&b.ID, &b.Title, &b.IsDeleted, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
