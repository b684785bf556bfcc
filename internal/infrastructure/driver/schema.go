package driver

import (
	"context"
	"fmt"
)

// tables are written in the subset of DDL understood by postgres, mysql and sqlite alike
var schema = []string{
	`CREATE TABLE IF NOT EXISTS course (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lesson (
		id VARCHAR(64) PRIMARY KEY,
		course_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		order_no INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sub_lesson (
		id VARCHAR(64) PRIMARY KEY,
		lesson_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		media_ref VARCHAR(512) NOT NULL,
		order_no INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS watch_progress (
		user_id VARCHAR(64) NOT NULL,
		sub_lesson_id VARCHAR(64) NOT NULL,
		watch_time DOUBLE PRECISION NOT NULL,
		duration DOUBLE PRECISION NULL,
		status VARCHAR(16) NOT NULL,
		seq BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, sub_lesson_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assignment (
		id VARCHAR(64) PRIMARY KEY,
		course_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		due_at BIGINT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS submission (
		id VARCHAR(64) PRIMARY KEY,
		assignment_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		answer TEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		submission_date BIGINT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (assignment_id, user_id)
	)`,
}

// Migrate create missing tables
func Migrate(ctx context.Context, conn ITransactionalDB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}
