// Package workflow orchestrates call processing end to end.
//
// ProcessCall fetches the call, detects commitments, gates sensitive ones
// on approval, creates each approved task in both systems transactionally
// (primary create, then mirror; failure rolls the primary back), and
// notifies operators with a summary. A slow run past the performance
// threshold still returns its result alongside a PerformanceError.
package workflow
