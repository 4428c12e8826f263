package db

import (
	"fmt"
)

// Migrate runs all database migrations
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.version > currentVersion {
			if err := db.runMigration(m); err != nil {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
	}

	return nil
}

type migration struct {
	version int
	sql     string
}

func (db *DB) runMigration(m migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
		return err
	}

	return tx.Commit()
}

var migrations = []migration{
	{
		version: 1,
		sql: `
			-- Registered accounts (the web identity the bot links against)
			CREATE TABLE accounts (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			-- Boards group categories; access is mediated by participants
			CREATE TABLE boards (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				is_deleted BOOLEAN DEFAULT FALSE,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE board_participants (
				id TEXT PRIMARY KEY,
				board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				role TEXT NOT NULL DEFAULT 'owner',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(board_id, account_id)
			);

			CREATE TABLE categories (
				id TEXT PRIMARY KEY,
				board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
				author_id TEXT NOT NULL REFERENCES accounts(id),
				title TEXT NOT NULL,
				is_deleted BOOLEAN DEFAULT FALSE,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE goals (
				id TEXT PRIMARY KEY,
				category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
				author_id TEXT NOT NULL REFERENCES accounts(id),
				title TEXT NOT NULL,
				description TEXT,
				status TEXT DEFAULT 'todo',
				priority TEXT DEFAULT 'low',
				due_date DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE goal_comments (
				id TEXT PRIMARY KEY,
				goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
				author_id TEXT NOT NULL REFERENCES accounts(id),
				text TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			-- One durable conversation per chat; account_id is set exactly once
			CREATE TABLE conversations (
				id TEXT PRIMARY KEY,
				chat_id INTEGER NOT NULL UNIQUE,
				sender_id INTEGER NOT NULL,
				account_id TEXT REFERENCES accounts(id),
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			-- Pending links between an account and a future chat verification
			CREATE TABLE verification_codes (
				code TEXT PRIMARY KEY,
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				expires_at DATETIME NOT NULL,
				consumed_at DATETIME
			);

			CREATE INDEX idx_participants_account ON board_participants(account_id);
			CREATE INDEX idx_categories_board ON categories(board_id);
			CREATE INDEX idx_goals_category ON goals(category_id);
			CREATE INDEX idx_goals_status ON goals(status);
			CREATE INDEX idx_comments_goal ON goal_comments(goal_id);
			CREATE INDEX idx_codes_account ON verification_codes(account_id);
		`,
	},
}
