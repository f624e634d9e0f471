// Package logging wraps zap for commitd.
//
// # Usage
//
// Create a logger from config:
//
//	cfg, err := logging.ParseConfig("info", "json")
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg)
//
// Derive component loggers with Named and bind fields with With:
//
//	log := logger.Named("syncer").With(zap.String("task_id", id))
//
// Nop returns a no-op logger for tests and optional dependencies.
package logging
