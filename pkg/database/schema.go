package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
        id UUID PRIMARY KEY,
        registration_number VARCHAR(16) NOT NULL UNIQUE,
        registration_type VARCHAR(8) NOT NULL,
        full_name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        password_hash TEXT NOT NULL,
        date_of_birth TEXT NOT NULL,
        basis_of_admission TEXT NOT NULL,
        college_attended TEXT NOT NULL,
        gender VARCHAR(16) NOT NULL,
        marital_status VARCHAR(16) NOT NULL,
        mother_tongue TEXT NOT NULL,
        is_adventist VARCHAR(3) NOT NULL,
        phone_number TEXT NOT NULL,
        union_name TEXT NOT NULL DEFAULT '',
        section_region_conference TEXT NOT NULL DEFAULT '',
        address TEXT NOT NULL DEFAULT '',
        payment_screenshot TEXT NOT NULL,
        cumulative_gpa NUMERIC(3,2) NOT NULL DEFAULT 0 CHECK (cumulative_gpa BETWEEN 0 AND 4),
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS student_grades (
        student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
        course_key VARCHAR(16) NOT NULL,
        score NUMERIC(5,2) NOT NULL DEFAULT 0,
        letter_grade VARCHAR(2) NOT NULL DEFAULT 'F',
        grade_points NUMERIC(5,2) NOT NULL DEFAULT 0,
        credit_hours INTEGER NOT NULL,
        scale_version VARCHAR(32) NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (student_id, course_key)
    )`,
	`CREATE TABLE IF NOT EXISTS admins (
        id UUID PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transcript_archive_jobs (
        id UUID PRIMARY KEY,
        status VARCHAR(16) NOT NULL,
        progress INTEGER NOT NULL DEFAULT 0,
        student_count INTEGER NOT NULL DEFAULT 0,
        result_url TEXT,
        created_by TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ,
        error_message TEXT
    )`,
}

// RequiredTables lists the tables the API depends on.
var RequiredTables = []string{"students", "student_grades", "admins", "transcript_archive_jobs"}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// VerifySchema reports the first required table that does not exist.
func VerifySchema(ctx context.Context, db *sqlx.DB) error {
	const query = `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`
	for _, table := range RequiredTables {
		var exists bool
		if err := db.GetContext(ctx, &exists, query, table); err != nil {
			return fmt.Errorf("verify table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}
