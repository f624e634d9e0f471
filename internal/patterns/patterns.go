package patterns

import (
	"regexp"

	"github.com/fyrsmithlabs/commitd/internal/errs"
)

// System identifies the backend system a pattern targets.
type System string

const (
	// SystemCRM is the general CRM (leads, follow-ups).
	SystemCRM System = "crm"
	// SystemPolicy is the policy-management system.
	SystemPolicy System = "policy"
)

// ValidSystems lists the systems a pattern may target.
var ValidSystems = map[System]bool{
	SystemCRM:    true,
	SystemPolicy: true,
}

// Priority is a pattern's base priority for commitments it produces.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ValidPriorities lists the allowed base priorities.
var ValidPriorities = map[Priority]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
}

// Score maps a priority to its numeric score used by the detector.
func (p Priority) Score() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	default:
		return 1
	}
}

// FromScore converts a score back to a priority level given the configured
// thresholds.
func FromScore(score, highThreshold, normalThreshold int) Priority {
	switch {
	case score >= highThreshold:
		return PriorityHigh
	case score >= normalThreshold:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Pattern is an immutable extraction rule. Expr must be a compilable regex
// with named capture groups "what" and "when".
type Pattern struct {
	Expr             string   `json:"expr"`
	System           System   `json:"system"`
	RequiresApproval bool     `json:"requires_approval"`
	BasePriority     Priority `json:"base_priority"`
	Category         string   `json:"category"`
}

// Compiled pairs a pattern with its compiled regex and the capture-group
// indexes resolved once at registration.
type Compiled struct {
	Pattern
	Regexp  *regexp.Regexp
	whatIdx int
	whenIdx int
}

// Extract returns the "what" and "when" captures for a match produced by
// FindStringSubmatch.
func (c *Compiled) Extract(submatch []string) (what, when string) {
	if c.whatIdx > 0 && c.whatIdx < len(submatch) {
		what = submatch[c.whatIdx]
	}
	if c.whenIdx > 0 && c.whenIdx < len(submatch) {
		when = submatch[c.whenIdx]
	}
	return what, when
}

// compile validates a single pattern and resolves its capture groups.
func compile(p Pattern) (*Compiled, error) {
	if p.Expr == "" {
		return nil, errs.NewFieldValidation("expr", "pattern expression is required")
	}
	if p.Category == "" {
		return nil, errs.NewFieldValidation("category", "pattern category is required")
	}
	if !ValidSystems[p.System] {
		return nil, errs.NewFieldValidation("system", "invalid system %q", p.System)
	}
	if !ValidPriorities[p.BasePriority] {
		return nil, errs.NewFieldValidation("base_priority", "invalid priority %q", p.BasePriority)
	}

	re, err := regexp.Compile(p.Expr)
	if err != nil {
		return nil, errs.NewFieldValidation("expr", "pattern %q does not compile: %v", p.Category, err)
	}

	c := &Compiled{Pattern: p, Regexp: re, whatIdx: -1, whenIdx: -1}
	for i, name := range re.SubexpNames() {
		switch name {
		case "what":
			c.whatIdx = i
		case "when":
			c.whenIdx = i
		}
	}
	if c.whatIdx < 0 || c.whenIdx < 0 {
		return nil, errs.NewFieldValidation("expr",
			"pattern %q missing required capture groups (what/when)", p.Category)
	}
	return c, nil
}

var tokenRe = regexp.MustCompile(`\w+`)

// overlap computes lexical Jaccard similarity between two pattern
// expressions' tokens. Values above 0.7 flag a likely conflict.
func overlap(expr1, expr2 string) float64 {
	t1 := tokenRe.FindAllString(expr1, -1)
	t2 := tokenRe.FindAllString(expr2, -1)
	if len(t1) == 0 && len(t2) == 0 {
		return 0
	}

	set1 := make(map[string]bool, len(t1))
	for _, t := range t1 {
		set1[t] = true
	}
	set2 := make(map[string]bool, len(t2))
	for _, t := range t2 {
		set2[t] = true
	}

	var inter int
	for t := range set1 {
		if set2[t] {
			inter++
		}
	}
	union := len(set1) + len(set2) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
