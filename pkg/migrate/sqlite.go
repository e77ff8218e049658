package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local SQLite runs and repository tests.
// Permissions are stored as the Postgres array literal produced by pq.StringArray.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'USER' CHECK (role IN ('USER', 'ADMIN')),
		enabled BOOLEAN NOT NULL DEFAULT 1,
		locale TEXT NOT NULL DEFAULT 'en',
		theme TEXT NOT NULL DEFAULT 'SYSTEM' CHECK (theme IN ('LIGHT', 'DARK', 'SYSTEM')),
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS gyms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		programming BOOLEAN NOT NULL DEFAULT 0,
		auto_subscription BOOLEAN NOT NULL DEFAULT 0,
		enrollment_code TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING_APPROVAL' CHECK (status IN ('PENDING_APPROVAL', 'ACTIVE', 'REJECTED', 'SUSPENDED')),
		created_by_user_id TEXT NOT NULL REFERENCES users(id),
		reviewed_by_user_id TEXT REFERENCES users(id),
		reviewed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS gyms_name_key ON gyms (lower(name))`,
	`CREATE TABLE IF NOT EXISTS gym_memberships (
		id TEXT PRIMARY KEY,
		gym_id TEXT NOT NULL REFERENCES gyms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('OWNER', 'PROGRAMMER', 'COACH', 'ATHLETE')),
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACTIVE', 'INACTIVE', 'BANNED')),
		permissions TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT gym_memberships_user_gym_key UNIQUE (user_id, gym_id)
	)`,
}

// ApplySQLiteSchema creates the identity tables on a SQLite connection.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec sqlite schema: %w", err)
		}
	}
	return nil
}
