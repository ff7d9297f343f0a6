// Package logging provides structured logging for the input server.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./logs/input-server.log"
//	    max_size: 10     # megabytes before rotation
//	    max_backups: 3
//	    max_age: 14      # days
//
// File output is rotated by lumberjack.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	defer logger.Close()
//	logger.Info("listening", "addr", cfg.Addr())
package logging
