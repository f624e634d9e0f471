// Package errs defines the error taxonomy shared across the commitment
// pipeline. Every failure surfaced by the detector, lifecycle manager,
// synchronizer, or transaction manager is one of these types so callers can
// route on errors.As rather than string matching.
package errs
