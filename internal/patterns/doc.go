// Package patterns provides the typed commitment-extraction rule catalog.
//
// A Pattern pairs a compiled regex with the metadata needed to turn a match
// into a task: the owning system, category, base priority, whether the
// commitment is gated on approval, and a confidence score. Patterns are
// validated at registration (a batch with any invalid pattern is rejected
// whole), tried in registration order, and tracked with per-category hit,
// false-positive, and latency statistics.
//
// Statistics:
//
// The catalog keeps a running confidence mean and a bounded sliding window
// of match latencies per (system, category) key. Underperforming reports
// categories whose confidence mean or false-positive rate crosses the
// standard thresholds, skipping categories with too few observations.
//
// Overlapping patterns within a batch are detected by token Jaccard
// similarity and logged as conflicts, not rejected: registration order
// decides which pattern wins, and rejecting would make that order
// silently load-bearing.
package patterns
