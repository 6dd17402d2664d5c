// Package config provides configuration management for inventory-sync.
//
// It utilizes Viper for loading configuration from an optional config.yaml, an optional
// .env file and environment variables, later sources winning. Defaults come from the
// `default` struct tags.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, metrics)
//   - Database: MySQL, PostgreSQL or SQLite connection details
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: Logging level and format
//   - Sync: default sync flags, snapshot source and report prefix
//
// The configuration is passed explicitly to constructors; nothing reads it globally.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.ContinueOnFailure)
package config
