package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA timezone = 'UTC'",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the production database schema.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Investment option catalogue
		CREATE TABLE investment_option (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			category VARCHAR(15) NOT NULL,
			name VARCHAR(255) NOT NULL,
			symbol VARCHAR(50),
			unit_price FLOAT,
			min_lump_sum FLOAT,
			min_sip FLOAT,
			subtype_mf VARCHAR(10),
			subtype_etf VARCHAR(15),
			market_cap VARCHAR(10),
			pe_ratio FLOAT,
			beta FLOAT,
			market_cap_value FLOAT,
			risk_level VARCHAR(10),
			risk_reason VARCHAR(255),
			price_hash VARCHAR(64),
			nav_hash VARCHAR(64),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX idx_investment_option_symbol ON investment_option(symbol);
		CREATE INDEX idx_investment_option_active_category ON investment_option(active, category);

		-- Historical close prices
		CREATE TABLE historical_price (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			symbol VARCHAR(60) NOT NULL,
			date DATETIME NOT NULL,
			close FLOAT NOT NULL,
			source VARCHAR(20) NOT NULL,
			CONSTRAINT unique_symbol_date UNIQUE (symbol, date)
		);

		CREATE INDEX idx_historical_price_symbol_date ON historical_price(symbol, date DESC);

		-- One row per job execution
		CREATE TABLE sync_log (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			job_id VARCHAR(50) NOT NULL,
			status VARCHAR(10) NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME,
			processed INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			details TEXT
		);

		CREATE INDEX idx_sync_log_started_at ON sync_log(started_at DESC);

		-- User-defined one-shot price threshold watches
		CREATE TABLE price_alert (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			email VARCHAR(255),
			option_id VARCHAR(36) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			target_price FLOAT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			triggered_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(option_id) REFERENCES investment_option(id) ON DELETE CASCADE
		);

		CREATE INDEX idx_price_alert_option_active ON price_alert(option_id, active);

		-- Encrypted vendor credentials and other small settings
		CREATE TABLE system_setting (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			"key" VARCHAR(50) NOT NULL UNIQUE,
			value VARCHAR(500) NOT NULL,
			updated_at DATETIME
		);
	`

	_, err := db.Exec(schema)
	return err
}
