package patterns

import "github.com/fyrsmithlabs/commitd/internal/logging"

// whenReq is the shared alternation matching the spoken time phrase at the
// end of a commitment sentence. The follow-on group stops the lazy "what"
// capture at the phrase boundary.
const whenReq = `(?P<when>today|tomorrow|next week|soon|by .+|within .+)(?:\s|$|\.)`

// whenOpt is the optional, end-anchored variant for rules where agents
// routinely omit the time phrase ("I'll update your policy coverage
// amounts."). The time resolver's fallback supplies the due date then.
const whenOpt = `(?:\s+(?P<when>today|tomorrow|next week|soon|by .+|within .+?))?\.?\s*$`

// DefaultPolicyPatterns returns the built-in policy-system extraction rules.
// Order matters: these are tried before the CRM rules.
func DefaultPolicyPatterns() []Pattern {
	return []Pattern{
		{
			Expr:             `(?i)I(?:'ll| will) (?:send|email|forward) (?:you )?(?:the )?(?P<what>.*?)` + whenReq,
			System:           SystemPolicy,
			RequiresApproval: false,
			BasePriority:     PriorityNormal,
			Category:         "document_sending",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:update|modify|change) (?:the |your )?(?P<what>(?:policy|coverage|limits?|deductible)[^.]*?)` + whenOpt,
			System:           SystemPolicy,
			RequiresApproval: true,
			BasePriority:     PriorityHigh,
			Category:         "policy_update",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:add|remove) (?:the |your |a )?(?P<what>(?:vehicle|car|truck|auto)[^.]*?)` + whenOpt,
			System:           SystemPolicy,
			RequiresApproval: true,
			BasePriority:     PriorityHigh,
			Category:         "vehicle_update",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:increase|decrease|adjust) (?:the |your )?(?P<what>(?:coverage limits?|liability limits?|deductible amounts?)[^.]*?)` + whenOpt,
			System:           SystemPolicy,
			RequiresApproval: true,
			BasePriority:     PriorityHigh,
			Category:         "coverage_adjustment",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:process|file) (?:the |an? )?(?P<what>(?:endorsement|policy change|rider)[^.]*?)` + whenOpt,
			System:           SystemPolicy,
			RequiresApproval: true,
			BasePriority:     PriorityHigh,
			Category:         "endorsement",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:prepare|issue) (?:the |a )?(?P<what>(?:certificate of insurance|COI|proof of insurance)[^.]*?)` + whenOpt,
			System:           SystemPolicy,
			RequiresApproval: false,
			BasePriority:     PriorityHigh,
			Category:         "certificate",
		},
	}
}

// DefaultCRMPatterns returns the built-in generic CRM extraction rules.
func DefaultCRMPatterns() []Pattern {
	return []Pattern{
		{
			Expr:             `(?i)I(?:'ll| will) (?:call|contact|follow up with) (?:you )?(?:about )?(?P<what>.*?)` + whenReq,
			System:           SystemCRM,
			RequiresApproval: false,
			BasePriority:     PriorityNormal,
			Category:         "follow_up",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:look into|research|check on|verify) (?:the |that )?(?P<what>.*?)` + whenReq,
			System:           SystemCRM,
			RequiresApproval: false,
			BasePriority:     PriorityNormal,
			Category:         "research",
		},
		{
			Expr:             `(?i)I(?:'ll| will) (?:review|go over) (?:the |your )?(?P<what>.*?)` + whenReq,
			System:           SystemCRM,
			RequiresApproval: false,
			BasePriority:     PriorityNormal,
			Category:         "review",
		},
	}
}

// NewDefaultCatalog returns a catalog preloaded with the built-in policy and
// CRM pattern sets, policy first so domain-specific rules win registration
// order.
func NewDefaultCatalog(logger *logging.Logger) (*Catalog, error) {
	c := NewCatalog(logger)
	if err := c.Register(SystemPolicy, DefaultPolicyPatterns()); err != nil {
		return nil, err
	}
	if err := c.Register(SystemCRM, DefaultCRMPatterns()); err != nil {
		return nil, err
	}
	return c, nil
}
