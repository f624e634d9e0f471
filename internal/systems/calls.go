package systems

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/commitd/internal/config"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
)

// callSource fetches call activity from the CRM, which owns call recordings
// and transcripts.
type callSource struct {
	http *httpClient
}

// NewCallSource creates the CRM-backed call source.
func NewCallSource(cfg config.SystemConfig, retry config.RetryConfig, logger *logging.Logger) CallSource {
	r := NewRetryer(retry.MaxAttempts, time.Duration(retry.BaseDelay), time.Duration(retry.MaxDelay), retry.Multiplier, logger)
	return &callSource{
		http: newHTTPClient(patterns.SystemCRM, cfg, r, "/api/v1/activity/call"),
	}
}

var _ CallSource = (*callSource)(nil)

// callRecord is the wire shape; duration arrives in seconds.
type callRecord struct {
	ID              string `json:"id"`
	LeadID          string `json:"lead_id"`
	Transcript      string `json:"transcript"`
	DurationSeconds int    `json:"duration"`
	Direction       string `json:"direction"`
}

func (c *callSource) GetCall(ctx context.Context, callID string) (*Call, error) {
	var rec callRecord
	err := c.http.retryer.Do(ctx, "get call", func(ctx context.Context) error {
		return c.http.do(ctx, "GET", c.http.taskPath+"/"+callID, nil, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &Call{
		ID:         rec.ID,
		LeadID:     rec.LeadID,
		Transcript: rec.Transcript,
		Duration:   time.Duration(rec.DurationSeconds) * time.Second,
		Direction:  rec.Direction,
	}, nil
}
