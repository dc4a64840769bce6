package persistence

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupSyncTestDB creates an in-memory SQLite database with the sync tables
func setupSyncTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// one connection, otherwise every pooled connection gets its own memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	statements := []string{`
		CREATE TABLE connections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			public_key TEXT NOT NULL,
			private_key_sealed BLOB NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			catalog_policy TEXT NOT NULL DEFAULT '{}',
			offer_policy TEXT NOT NULL DEFAULT '{}',
			import_policy TEXT NOT NULL DEFAULT '{}',
			shipment_policy TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`, `
		CREATE TABLE product_options (
			option_id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL,
			variation_id INTEGER,
			product_name TEXT NOT NULL DEFAULT '',
			attribute_data TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`, `
		CREATE TABLE offer_queue (
			offer_id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		)`, `
		CREATE TABLE order_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER UNIQUE,
			connection_id INTEGER NOT NULL,
			remote_order_number TEXT NOT NULL UNIQUE,
			remote_line_ids TEXT NOT NULL DEFAULT '[]',
			is_shipped INTEGER NOT NULL DEFAULT 0,
			carrier_name TEXT,
			tracking_number TEXT,
			order_imported_at DATETIME NOT NULL,
			shipped_exported_at DATETIME,
			tracking_exported_at DATETIME,
			import_success INTEGER NOT NULL DEFAULT 0,
			import_error INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// newMockGormDB opens GORM on the postgres dialector backed by sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}
