// Package timeparse maps natural-language time phrases from call
// transcripts to concrete due timestamps with a confidence score.
//
// Resolution never fails: text with no recognizable phrase falls back to
// end of the current business day at low confidence. Vague phrases anchor
// to the business-hours window; explicit clock times score highest.
package timeparse
