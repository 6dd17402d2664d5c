// Package server holds the HTTP server configuration.
//
// While the main application entry point handles the server startup, this package
// defines the configuration structure and the small helpers derived from it.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key, the graceful shutdown
// bound and whether the Prometheus endpoint is exposed.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server settings
// and by the start command to build the Fiber application.
package server
