// Package database handles database connections and schema inspection.
//
// It wraps GORM and configures MySQL, PostgreSQL or SQLite connections from the
// application's configuration.
//
// # Connect
//
// Connect opens the configured driver, sizes the connection pool and pings the server
// within the configured timeout. SQLite is used for local runs and tests.
//
// # Schema Inspection
//
// GetTableColumns and ColumnSet read the live column list of a table. The binding
// schema check uses them to verify that every declared column exists before a sync.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
//
//	columns, err := database.GetTableColumns(db, "devices")
package database
