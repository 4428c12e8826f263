package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Category struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	AuthorID  string    `json:"authorId"`
	Title     string    `json:"title"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateCategory creates a category on a board
func (db *DB) CreateCategory(boardID, authorID, title string) (*Category, error) {
	id := NewID()
	now := time.Now()

	_, err := db.conn.Exec(`
		INSERT INTO categories (id, board_id, author_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, boardID, authorID, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return db.GetCategory(id)
}

// GetCategory retrieves a category by ID
func (db *DB) GetCategory(id string) (*Category, error) {
	row := db.conn.QueryRow(`
		SELECT id, board_id, author_id, title, is_deleted, created_at, updated_at
		FROM categories WHERE id = ?
	`, id)
	return scanCategory(row.Scan)
}

// ListCategoriesByBoard retrieves non-deleted categories on a board
func (db *DB) ListCategoriesByBoard(boardID string) ([]*Category, error) {
	rows, err := db.conn.Query(`
		SELECT id, board_id, author_id, title, is_deleted, created_at, updated_at
		FROM categories
		WHERE board_id = ? AND is_deleted = FALSE
		ORDER BY created_at
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []*Category
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory soft-deletes a category
func (db *DB) DeleteCategory(id string) error {
	res, err := db.conn.Exec(`
		UPDATE categories SET is_deleted = TRUE, updated_at = ? WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
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

func scanCategory(scan scanFunc) (*Category, error) {
	var c Category
	err := scan(&c.ID, &c.BoardID, &c.AuthorID, &c.Title, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
