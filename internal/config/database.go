package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create end_users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS end_users (
			student_id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'voter',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create elections table. Status is derived from the time window at read
	// time and never stored.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS elections (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(100) NOT NULL,
			description TEXT,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create positions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id BIGSERIAL PRIMARY KEY,
			election_id BIGINT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create candidates table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			id BIGSERIAL PRIMARY KEY,
			election_id BIGINT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			position_id BIGINT NOT NULL REFERENCES positions(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			manifesto TEXT,
			vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0)
		)
	`)
	if err != nil {
		return err
	}

	// Create voting_sessions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS voting_sessions (
			session_id BIGSERIAL PRIMARY KEY,
			election_id BIGINT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(50) NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create votes table. The unique constraint on (student_id, election_id,
	// position_id) is the one-vote-per-position invariant; concurrent double
	// votes fail here no matter what the application layer observed.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS votes (
			id BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES end_users(student_id),
			election_id BIGINT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
			position_id BIGINT NOT NULL REFERENCES positions(id) ON DELETE CASCADE,
			candidate_id BIGINT NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
			vote_time TIMESTAMPTZ NOT NULL,
			UNIQUE (student_id, election_id, position_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create audit_log table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id VARCHAR(36) PRIMARY KEY,
			actor_id BIGINT,
			action VARCHAR(100) NOT NULL,
			entity VARCHAR(50) NOT NULL,
			entity_id BIGINT,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_positions_election_id ON positions(election_id)",
		"CREATE INDEX IF NOT EXISTS idx_candidates_election_id ON candidates(election_id)",
		"CREATE INDEX IF NOT EXISTS idx_candidates_position_id ON candidates(position_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_election_status ON voting_sessions(election_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_votes_candidate_id ON votes(candidate_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
