package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type GoalStatus string

const (
	GoalStatusTodo       GoalStatus = "todo"
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusDone       GoalStatus = "done"
	GoalStatusArchived   GoalStatus = "archived"
)

// ValidGoalStatus reports whether st is a known goal status.
func ValidGoalStatus(st GoalStatus) bool {
	switch st {
	case GoalStatusTodo, GoalStatusInProgress, GoalStatusDone, GoalStatusArchived:
		return true
	default:
		return false
	}
}

type GoalPriority string

const (
	GoalPriorityLow      GoalPriority = "low"
	GoalPriorityMedium   GoalPriority = "medium"
	GoalPriorityHigh     GoalPriority = "high"
	GoalPriorityCritical GoalPriority = "critical"
)

type Goal struct {
	ID          string       `json:"id"`
	CategoryID  string       `json:"categoryId"`
	AuthorID    string       `json:"authorId"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      GoalStatus   `json:"status"`
	Priority    GoalPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type CreateGoalInput struct {
	CategoryID  string       `json:"categoryId"`
	AuthorID    string       `json:"authorId"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Priority    GoalPriority `json:"priority,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
}

type UpdateGoalInput struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *GoalStatus   `json:"status,omitempty"`
	Priority    *GoalPriority `json:"priority,omitempty"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
}

// CreateGoal creates a new goal in a category
func (db *DB) CreateGoal(input CreateGoalInput) (*Goal, error) {
	id := NewID()
	now := time.Now()
	priority := input.Priority
	if priority == "" {
		priority = GoalPriorityLow
	}

	_, err := db.conn.Exec(`
		INSERT INTO goals (id, category_id, author_id, title, description, status, priority, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, input.CategoryID, input.AuthorID, input.Title, NullString(input.Description),
		GoalStatusTodo, priority, NullTime(input.DueDate), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	return db.GetGoal(id)
}

// GetGoal retrieves a goal by ID
func (db *DB) GetGoal(id string) (*Goal, error) {
	row := db.conn.QueryRow(`
		SELECT id, category_id, author_id, title, description, status, priority, due_date, created_at, updated_at
		FROM goals WHERE id = ?
	`, id)
	return scanGoal(row.Scan)
}

// ListGoalsForAccount retrieves non-archived goals in non-deleted categories
// on boards the account participates in, ordered by due date then priority.
func (db *DB) ListGoalsForAccount(accountID string) ([]*Goal, error) {
	rows, err := db.conn.Query(`
		SELECT g.id, g.category_id, g.author_id, g.title, g.description, g.status, g.priority, g.due_date, g.created_at, g.updated_at
		FROM goals g
		JOIN categories c ON c.id = g.category_id
		JOIN board_participants p ON p.board_id = c.board_id
		WHERE p.account_id = ?
		  AND g.status != ?
		  AND c.is_deleted = FALSE
		ORDER BY g.due_date IS NULL, g.due_date,
			CASE g.priority
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				ELSE 3
			END
	`, accountID, GoalStatusArchived)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []*Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal updates a goal
func (db *DB) UpdateGoal(id string, input UpdateGoalInput) (*Goal, error) {
	query := "UPDATE goals SET updated_at = ?"
	args := []any{time.Now()}

	if input.Title != nil {
		query += ", title = ?"
		args = append(args, *input.Title)
	}
	if input.Description != nil {
		query += ", description = ?"
		args = append(args, *input.Description)
	}
	if input.Status != nil {
		query += ", status = ?"
		args = append(args, *input.Status)
	}
	if input.Priority != nil {
		query += ", priority = ?"
		args = append(args, *input.Priority)
	}
	if input.DueDate != nil {
		query += ", due_date = ?"
		args = append(args, *input.DueDate)
	}

	query += " WHERE id = ?"
	args = append(args, id)

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	return db.GetGoal(id)
}

// ArchiveGoal marks a goal archived. Goals are never hard-deleted.
func (db *DB) ArchiveGoal(id string) error {
	res, err := db.conn.Exec(`
		UPDATE goals SET status = ?, updated_at = ? WHERE id = ?
	`, GoalStatusArchived, time.Now(), id)
	if err != nil {
		return fmt.Errorf("archive goal: %w", err)
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

func scanGoal(scan scanFunc) (*Goal, error) {
	var g Goal
	var description sql.NullString
	var dueDate sql.NullTime

	err := scan(&g.ID, &g.CategoryID, &g.AuthorID, &g.Title, &description,
		&g.Status, &g.Priority, &dueDate, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	g.Description = StringPtr(description)
	g.DueDate = TimePtr(dueDate)
	return &g, nil
}
