package patterns

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/commitd/internal/patterns"

// conflictThreshold is the Jaccard similarity above which two patterns in a
// batch are flagged as overlapping.
const conflictThreshold = 0.7

// statsWindow bounds the per-category latency sliding window.
const statsWindow = 1000

// minSampleSize is the observation count below which a category is never
// reported as underperforming.
const minSampleSize = 10

// Catalog is the central registry of extraction patterns and their
// performance statistics. Safe for concurrent use.
type Catalog struct {
	logger *logging.Logger

	mu       sync.RWMutex
	systems  []System // registration order
	patterns map[System][]*Compiled
	stats    map[string]*stats // key: "system:category"

	matchCounter metric.Int64Counter
	fpCounter    metric.Int64Counter
	matchLatency metric.Float64Histogram
}

// stats holds running counters for one (system, category) key.
type stats struct {
	matches        int
	falsePositives int
	avgConfidence  float64
	lastMatched    time.Time
	latenciesMs    []int64
}

func (s *stats) observations() int { return s.matches + s.falsePositives }

// StatsSnapshot is a read-only copy of one category's counters. Latency
// fields summarize the sliding window of recent observations.
type StatsSnapshot struct {
	Matches        int
	FalsePositives int
	AvgConfidence  float64
	LastMatched    time.Time
	Observations   int
	LatencySamples int
	P50LatencyMs   int64
}

// NewCatalog creates an empty catalog.
func NewCatalog(logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Catalog{
		logger:   logger.Named("patterns"),
		patterns: make(map[System][]*Compiled),
		stats:    make(map[string]*stats),
	}
	c.initMetrics()
	return c
}

func (c *Catalog) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	c.matchCounter, err = meter.Int64Counter(
		"commitd.patterns.matches",
		metric.WithDescription("Pattern match observations labeled by system and category"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		c.logger.Warn("failed to create match counter", zap.Error(err))
	}

	c.fpCounter, err = meter.Int64Counter(
		"commitd.patterns.false_positives",
		metric.WithDescription("Pattern matches discarded as false positives"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		c.logger.Warn("failed to create false positive counter", zap.Error(err))
	}

	c.matchLatency, err = meter.Float64Histogram(
		"commitd.patterns.match_latency",
		metric.WithDescription("Per-match processing latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		c.logger.Warn("failed to create latency histogram", zap.Error(err))
	}
}

// Register validates and stores a batch of patterns for a system. A batch
// with any invalid pattern is rejected whole. Overlapping pattern pairs are
// logged as conflicts but do not reject the batch.
func (c *Catalog) Register(system System, batch []Pattern) error {
	if len(batch) == 0 {
		return nil
	}

	compiled := make([]*Compiled, 0, len(batch))
	for _, p := range batch {
		if p.System != system {
			return errs.NewFieldValidation("system",
				"pattern %q targets %q, registered under %q", p.Category, p.System, system)
		}
		cp, err := compile(p)
		if err != nil {
			return fmt.Errorf("invalid pattern in batch for %s: %w", system, err)
		}
		compiled = append(compiled, cp)
	}

	for _, conflict := range findConflicts(compiled) {
		c.logger.Warn("pattern conflict detected",
			zap.String("system", string(system)),
			zap.String("conflict", conflict),
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.patterns[system]; !seen {
		c.systems = append(c.systems, system)
	}
	c.patterns[system] = append(c.patterns[system], compiled...)
	for _, cp := range compiled {
		key := statKey(system, cp.Category)
		if _, ok := c.stats[key]; !ok {
			c.stats[key] = &stats{}
		}
	}

	c.logger.Info("registered patterns",
		zap.String("system", string(system)),
		zap.Int("count", len(compiled)),
	)
	return nil
}

// findConflicts reports near-duplicate pattern pairs within a batch.
func findConflicts(batch []*Compiled) []string {
	var conflicts []string
	for i, p1 := range batch {
		for _, p2 := range batch[i+1:] {
			if p1.Expr == p2.Expr {
				conflicts = append(conflicts,
					fmt.Sprintf("identical patterns: %s and %s", p1.Category, p2.Category))
				continue
			}
			if overlap(p1.Expr, p2.Expr) > conflictThreshold {
				conflicts = append(conflicts,
					fmt.Sprintf("overlapping patterns: %s and %s", p1.Category, p2.Category))
			}
		}
	}
	return conflicts
}

// Get returns patterns for one system, in registration order.
func (c *Catalog) Get(system System) []*Compiled {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Compiled, len(c.patterns[system]))
	copy(out, c.patterns[system])
	return out
}

// All returns every registered pattern in system registration order.
func (c *Catalog) All() []*Compiled {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Compiled
	for _, sys := range c.systems {
		out = append(out, c.patterns[sys]...)
	}
	return out
}

// Systems returns the registered systems in registration order.
func (c *Catalog) Systems() []System {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]System, len(c.systems))
	copy(out, c.systems)
	return out
}

// RecordMatch updates one category's statistics. All counters and the
// running confidence mean move together under the catalog lock.
func (c *Catalog) RecordMatch(system System, category string, confidence float64, latency time.Duration, isFalsePositive bool) {
	key := statKey(system, category)

	c.mu.Lock()
	s, ok := c.stats[key]
	if !ok {
		s = &stats{}
		c.stats[key] = s
	}
	if isFalsePositive {
		s.falsePositives++
	} else {
		s.matches++
		s.lastMatched = time.Now()
	}
	total := s.observations()
	s.avgConfidence = (s.avgConfidence*float64(total-1) + confidence) / float64(total)
	s.latenciesMs = append(s.latenciesMs, latency.Milliseconds())
	if len(s.latenciesMs) > statsWindow {
		s.latenciesMs = s.latenciesMs[len(s.latenciesMs)-statsWindow:]
	}
	c.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("system", string(system)),
		attribute.String("category", category),
	)
	if isFalsePositive {
		if c.fpCounter != nil {
			c.fpCounter.Add(context.Background(), 1, attrs)
		}
	} else if c.matchCounter != nil {
		c.matchCounter.Add(context.Background(), 1, attrs)
	}
	if c.matchLatency != nil {
		c.matchLatency.Record(context.Background(), float64(latency.Milliseconds()), attrs)
	}
}

// Stats returns a snapshot of one category's counters and whether the
// category has been observed at all.
func (c *Catalog) Stats(system System, category string) (StatsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[statKey(system, category)]
	if !ok {
		return StatsSnapshot{}, false
	}
	return StatsSnapshot{
		Matches:        s.matches,
		FalsePositives: s.falsePositives,
		AvgConfidence:  s.avgConfidence,
		LastMatched:    s.lastMatched,
		Observations:   s.observations(),
		LatencySamples: len(s.latenciesMs),
		P50LatencyMs:   p50(s.latenciesMs),
	}, true
}

// p50 returns the median of the samples without mutating them.
func p50(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	slices.Sort(sorted)
	return sorted[len(sorted)/2]
}

// Underperforming returns category keys whose average confidence is below
// minConfidence or whose false-positive rate exceeds maxFPRate. Categories
// with fewer than 10 observations are skipped.
func (c *Catalog) Underperforming(minConfidence, maxFPRate float64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var problematic []string
	for key, s := range c.stats {
		total := s.observations()
		if total < minSampleSize {
			continue
		}
		fpRate := float64(s.falsePositives) / float64(total)
		if s.avgConfidence < minConfidence || fpRate > maxFPRate {
			problematic = append(problematic, key)
		}
	}
	return problematic
}

// DefaultUnderperforming applies the standard thresholds (0.7 confidence,
// 0.1 false-positive rate).
func (c *Catalog) DefaultUnderperforming() []string {
	return c.Underperforming(0.7, 0.1)
}

func statKey(system System, category string) string {
	return string(system) + ":" + category
}
