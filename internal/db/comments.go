package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type GoalComment struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goalId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateComment adds a comment to a goal
func (db *DB) CreateComment(goalID, authorID, text string) (*GoalComment, error) {
	id := NewID()
	now := time.Now()

	_, err := db.conn.Exec(`
		INSERT INTO goal_comments (id, goal_id, author_id, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, goalID, authorID, text, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	return db.GetComment(id)
}

// GetComment retrieves a comment by ID
func (db *DB) GetComment(id string) (*GoalComment, error) {
	row := db.conn.QueryRow(`
		SELECT id, goal_id, author_id, text, created_at, updated_at
		FROM goal_comments WHERE id = ?
	`, id)
	return scanComment(row.Scan)
}

// ListCommentsByGoal retrieves comments on a goal, newest first
func (db *DB) ListCommentsByGoal(goalID string) ([]*GoalComment, error) {
	rows, err := db.conn.Query(`
		SELECT id, goal_id, author_id, text, created_at, updated_at
		FROM goal_comments
		WHERE goal_id = ?
		ORDER BY created_at DESC
	`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []*GoalComment
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func scanComment(scan scanFunc) (*GoalComment, error) {
	var c GoalComment
	err := scan(&c.ID, &c.GoalID, &c.AuthorID, &c.Text, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
