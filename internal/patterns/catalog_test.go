package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
)

func validPattern() Pattern {
	return Pattern{
		Expr:         `(?i)I will (?P<what>.*?) (?P<when>tomorrow)`,
		System:       SystemCRM,
		BasePriority: PriorityNormal,
		Category:     "test_rule",
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Pattern)
		field  string
	}{
		{"missing expr", func(p *Pattern) { p.Expr = "" }, "expr"},
		{"missing category", func(p *Pattern) { p.Category = "" }, "category"},
		{"invalid system", func(p *Pattern) { p.System = "mainframe" }, "system"},
		{"invalid priority", func(p *Pattern) { p.BasePriority = "urgent" }, "base_priority"},
		{"uncompilable expr", func(p *Pattern) { p.Expr = `(?P<what>[` }, "expr"},
		{"missing what group", func(p *Pattern) { p.Expr = `do (?P<when>tomorrow)` }, "expr"},
		{"missing when group", func(p *Pattern) { p.Expr = `do (?P<what>.*)` }, "expr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(nil)
			p := validPattern()
			tt.mutate(&p)
			err := c.Register(p.System, []Pattern{p})
			var verr *errs.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRegister_ValidBatchStored(t *testing.T) {
	c := NewCatalog(nil)
	require.NoError(t, c.Register(SystemCRM, []Pattern{validPattern()}))

	got := c.Get(SystemCRM)
	require.Len(t, got, 1)
	assert.Equal(t, "test_rule", got[0].Category)
	assert.Empty(t, c.Get(SystemPolicy))
}

func TestRegister_RejectsWholeBatchOnOneBadPattern(t *testing.T) {
	c := NewCatalog(nil)
	bad := validPattern()
	bad.Expr = "no capture groups"
	err := c.Register(SystemCRM, []Pattern{validPattern(), bad})
	require.Error(t, err)
	assert.Empty(t, c.Get(SystemCRM))
}

func TestRegister_LogsOverlapConflicts(t *testing.T) {
	tl := logging.NewTestLogger()
	c := NewCatalog(tl.Logger)

	p1 := validPattern()
	p2 := validPattern()
	p2.Category = "test_rule_copy"

	// Identical expressions still register, but the conflict is logged.
	require.NoError(t, c.Register(SystemCRM, []Pattern{p1, p2}))
	tl.AssertLogged(t, zapcore.WarnLevel, "pattern conflict")
	assert.Len(t, c.Get(SystemCRM), 2)
}

func TestAll_PreservesRegistrationOrder(t *testing.T) {
	c, err := NewDefaultCatalog(nil)
	require.NoError(t, err)

	all := c.All()
	require.NotEmpty(t, all)
	// Policy patterns come before CRM patterns.
	assert.Equal(t, SystemPolicy, all[0].System)
	assert.Equal(t, SystemCRM, all[len(all)-1].System)
	assert.Equal(t, []System{SystemPolicy, SystemCRM}, c.Systems())
}

func TestRecordMatch_RunningMean(t *testing.T) {
	c := NewCatalog(nil)
	c.RecordMatch(SystemCRM, "follow_up", 0.8, 2*time.Millisecond, false)
	c.RecordMatch(SystemCRM, "follow_up", 0.4, 3*time.Millisecond, true)

	snap, ok := c.Stats(SystemCRM, "follow_up")
	require.True(t, ok)
	assert.Equal(t, 1, snap.Matches)
	assert.Equal(t, 1, snap.FalsePositives)
	assert.InDelta(t, 0.6, snap.AvgConfidence, 1e-9)
	assert.Equal(t, 2, snap.Observations)
	assert.False(t, snap.LastMatched.IsZero())
}

func TestStats_LatencyWindow(t *testing.T) {
	c := NewCatalog(nil)
	for _, ms := range []int64{5, 1, 9, 3, 7} {
		c.RecordMatch(SystemCRM, "follow_up", 0.8, time.Duration(ms)*time.Millisecond, false)
	}

	snap, ok := c.Stats(SystemCRM, "follow_up")
	require.True(t, ok)
	assert.Equal(t, 5, snap.LatencySamples)
	assert.Equal(t, int64(5), snap.P50LatencyMs)
}

func TestStats_LatencyWindowBounded(t *testing.T) {
	c := NewCatalog(nil)
	for i := 0; i < statsWindow+50; i++ {
		c.RecordMatch(SystemCRM, "follow_up", 0.8, time.Millisecond, false)
	}

	snap, ok := c.Stats(SystemCRM, "follow_up")
	require.True(t, ok)
	assert.Equal(t, statsWindow, snap.LatencySamples)
	assert.Equal(t, int64(1), snap.P50LatencyMs)
}

func TestUnderperforming_RequiresSampleSize(t *testing.T) {
	c := NewCatalog(nil)

	// 9 bad observations: below the sample floor, not reported.
	for i := 0; i < 9; i++ {
		c.RecordMatch(SystemPolicy, "review", 0.6, time.Millisecond, true)
	}
	assert.Empty(t, c.DefaultUnderperforming())

	// 10th observation crosses the floor.
	c.RecordMatch(SystemPolicy, "review", 0.6, time.Millisecond, true)
	assert.Equal(t, []string{"policy:review"}, c.DefaultUnderperforming())
}

func TestUnderperforming_HealthyCategoryNotFlagged(t *testing.T) {
	c := NewCatalog(nil)
	for i := 0; i < 20; i++ {
		c.RecordMatch(SystemCRM, "follow_up", 0.9, time.Millisecond, false)
	}
	assert.Empty(t, c.DefaultUnderperforming())
}

func TestUnderperforming_HighFalsePositiveRate(t *testing.T) {
	c := NewCatalog(nil)
	// High confidence but 30% false positives.
	for i := 0; i < 7; i++ {
		c.RecordMatch(SystemCRM, "research", 0.95, time.Millisecond, false)
	}
	for i := 0; i < 3; i++ {
		c.RecordMatch(SystemCRM, "research", 0.95, time.Millisecond, true)
	}
	assert.Contains(t, c.Underperforming(0.7, 0.1), "crm:research")
}

func TestOverlap_Jaccard(t *testing.T) {
	assert.Greater(t, overlap(`I will send (?P<what>.*)`, `I will send (?P<when>.*)`), 0.7)
	assert.Less(t, overlap(`alpha beta gamma`, `delta epsilon zeta`), 0.1)
}

func TestCompiled_Extract(t *testing.T) {
	cp, err := compile(validPattern())
	require.NoError(t, err)

	m := cp.Regexp.FindStringSubmatch("I will send the docs tomorrow")
	require.NotNil(t, m)
	what, when := cp.Extract(m)
	assert.Equal(t, "send the docs", what)
	assert.Equal(t, "tomorrow", when)
}
