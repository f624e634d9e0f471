package detector

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/timeparse"
)

// Commitment is a detected promise extracted from transcript text.
// Ephemeral: produced per processing run, never persisted.
type Commitment struct {
	Description      string            `json:"description"`
	System           patterns.System   `json:"system"`
	Due              time.Time         `json:"due"`
	RequiresApproval bool              `json:"requires_approval"`
	Priority         patterns.Priority `json:"priority"`
	Category         string            `json:"category"`
	SourceText       string            `json:"source_text"`
	Confidence       float64           `json:"confidence"`
}

// Outcome classifies how a single pattern match was handled.
type Outcome string

const (
	// OutcomeCommitment means the match produced a commitment.
	OutcomeCommitment Outcome = "commitment"
	// OutcomeSkipped means the match was discarded (empty capture,
	// unresolvable due date).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeError means processing the match panicked or failed; the
	// error is preserved, the transcript scan continued.
	OutcomeError Outcome = "error"
)

// MatchResult records the handling of one pattern match.
type MatchResult struct {
	System     patterns.System
	Category   string
	Outcome    Outcome
	Commitment *Commitment
	Err        error
}

// Result is the batch outcome of scanning one transcript.
type Result struct {
	Commitments []Commitment
	Matches     []MatchResult
	// Underperforming lists pattern categories currently failing the
	// catalog's quality thresholds. Advisory, never fatal.
	Underperforming []string
}

// Config holds detection policy knobs.
type Config struct {
	// SpeakerPrefix selects transcript lines to scan. Case-insensitive.
	SpeakerPrefix string
	// HighThreshold and NormalThreshold convert a priority score back to
	// a level.
	HighThreshold   int
	NormalThreshold int
	// RequireApprovalLowConfidence forces approval on commitments whose
	// confidence is below LowConfidenceFloor.
	RequireApprovalLowConfidence bool
	LowConfidenceFloor           float64
}

// DefaultConfig returns the standard detection policy.
func DefaultConfig() Config {
	return Config{
		SpeakerPrefix:   "agent:",
		HighThreshold:   4,
		NormalThreshold: 2,
	}
}

// urgencyKeywords bump a commitment's priority score when present in the
// description.
var urgencyKeywords = []string{"urgent", "asap", "immediately", "emergency"}

// Detector turns transcripts into commitments.
type Detector struct {
	catalog  *patterns.Catalog
	resolver *timeparse.Resolver
	logger   *logging.Logger
	cfg      Config
}

// New creates a detector over the given catalog and resolver.
func New(catalog *patterns.Catalog, resolver *timeparse.Resolver, logger *logging.Logger, cfg Config) *Detector {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.SpeakerPrefix == "" {
		cfg.SpeakerPrefix = "agent:"
	}
	if cfg.HighThreshold == 0 {
		cfg.HighThreshold = 4
	}
	if cfg.NormalThreshold == 0 {
		cfg.NormalThreshold = 2
	}
	return &Detector{
		catalog:  catalog,
		resolver: resolver,
		logger:   logger.Named("detector"),
		cfg:      cfg,
	}
}

// Detect scans a transcript relative to now.
func (d *Detector) Detect(transcript string) Result {
	return d.DetectAt(transcript, time.Now())
}

// DetectAt scans a transcript with an explicit reference time for due-date
// resolution. CPU-bound; does not block.
func (d *Detector) DetectAt(transcript string, ref time.Time) Result {
	var res Result

	transcript = strings.ReplaceAll(transcript, "\r", "\n")
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), d.cfg.SpeakerPrefix) {
			continue
		}
		_, message, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		message = strings.TrimSpace(message)

		for _, system := range d.catalog.Systems() {
			for _, p := range d.catalog.Get(system) {
				d.scanMessage(&res, p, message, ref)
			}
		}
	}

	res.Underperforming = d.catalog.DefaultUnderperforming()
	if len(res.Underperforming) > 0 {
		d.logger.Warn("underperforming pattern categories",
			zap.Strings("categories", res.Underperforming))
	}
	return res
}

// scanMessage applies one pattern to one agent message, recording a stat
// observation per match regardless of outcome.
func (d *Detector) scanMessage(res *Result, p *patterns.Compiled, message string, ref time.Time) {
	for _, submatch := range p.Regexp.FindAllStringSubmatch(message, -1) {
		start := time.Now()
		mr := d.processMatch(p, submatch, message, ref)
		latency := time.Since(start)

		confidence := 0.0
		if mr.Commitment != nil {
			confidence = mr.Commitment.Confidence
		}
		d.catalog.RecordMatch(p.System, p.Category, confidence, latency,
			mr.Outcome != OutcomeCommitment)

		if mr.Outcome == OutcomeError {
			d.logger.Error("match processing failed",
				zap.String("category", p.Category),
				zap.Error(mr.Err),
			)
		}
		if mr.Commitment != nil {
			res.Commitments = append(res.Commitments, *mr.Commitment)
		}
		res.Matches = append(res.Matches, mr)
	}
}

// processMatch converts one regex match into a commitment, or a skip/error
// result. Panics are contained here so a pathological pattern cannot take
// down the whole transcript.
func (d *Detector) processMatch(p *patterns.Compiled, submatch []string, message string, ref time.Time) (mr MatchResult) {
	mr = MatchResult{System: p.System, Category: p.Category}

	defer func() {
		if r := recover(); r != nil {
			mr.Outcome = OutcomeError
			mr.Err = fmt.Errorf("panic processing match for %s: %v", p.Category, r)
			mr.Commitment = nil
		}
	}()

	what, when := p.Extract(submatch)
	what = strings.Trim(strings.TrimSpace(what), ".,;")
	when = strings.Trim(strings.TrimSpace(when), ".,;")

	if what == "" {
		mr.Outcome = OutcomeSkipped
		return mr
	}

	parsed := d.resolver.Resolve(when, ref)
	if parsed.Due.IsZero() {
		mr.Outcome = OutcomeSkipped
		return mr
	}

	requiresApproval := p.RequiresApproval
	if d.cfg.RequireApprovalLowConfidence && parsed.Confidence < d.cfg.LowConfidenceFloor {
		requiresApproval = true
	}

	c := Commitment{
		Description:      what,
		System:           p.System,
		Due:              parsed.Due,
		RequiresApproval: requiresApproval,
		Priority:         d.scorePriority(p.BasePriority, what, parsed, ref),
		Category:         p.Category,
		SourceText:       message,
		Confidence:       parsed.Confidence,
	}
	mr.Outcome = OutcomeCommitment
	mr.Commitment = &c
	return mr
}

// scorePriority combines the pattern's base priority with due-date urgency
// and urgency keywords, then clamps back to a level via the configured
// thresholds.
func (d *Detector) scorePriority(base patterns.Priority, description string, parsed timeparse.ParsedTime, ref time.Time) patterns.Priority {
	score := base.Score()

	if parsed.Due.Sub(ref) < 24*time.Hour {
		score++
	}

	lower := strings.ToLower(description)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			score++
			break
		}
	}

	return patterns.FromScore(score, d.cfg.HighThreshold, d.cfg.NormalThreshold)
}
