// Package detector scans call transcripts for agent commitments.
//
// Only agent lines are scanned; customer speech is ignored. Each line is
// tried against every registered pattern, and each match is processed in
// isolation: captures are cleaned, the time phrase is resolved to a due
// timestamp, priority is scored, and the match outcome is recorded in the
// catalog statistics. Detection is best-effort per match: a panic or an
// empty capture skips that match and never aborts the rest of the
// transcript.
//
// Priority scoring starts from the pattern's base priority and bumps for
// near-term due dates and urgency keywords; the score maps to a priority
// through configurable thresholds.
package detector
