package config

import (
	"fmt"
	"time"
)

// Config holds the complete commitd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Business      BusinessConfig      `koanf:"business"`
	Priority      PriorityConfig      `koanf:"priority"`
	Approval      ApprovalConfig      `koanf:"approval"`
	Tasks         TasksConfig         `koanf:"tasks"`
	Retry         RetryConfig         `koanf:"retry"`
	Systems       SystemsConfig       `koanf:"systems"`
	Notify        NotifyConfig        `koanf:"notify"`
	Workflow      WorkflowConfig      `koanf:"workflow"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	ServiceVersion  string `koanf:"service_version"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure        bool   `koanf:"insecure"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// BusinessConfig holds the business-hours window used to anchor vague
// time references. Hours are in the configured timezone.
type BusinessConfig struct {
	StartHour int    `koanf:"start_hour"`
	EndHour   int    `koanf:"end_hour"`
	Timezone  string `koanf:"timezone"`
}

// PriorityConfig holds the commitment priority-scoring thresholds. They are
// business rules without a hard rationale, so they stay configurable.
type PriorityConfig struct {
	HighThreshold   int `koanf:"high_threshold"`
	NormalThreshold int `koanf:"normal_threshold"`
}

// ApprovalConfig controls when a commitment is forced through approval.
type ApprovalConfig struct {
	RequireForLowConfidence bool    `koanf:"require_for_low_confidence"`
	LowConfidenceFloor      float64 `koanf:"low_confidence_floor"`
}

// TasksConfig holds task lifecycle business rules.
type TasksConfig struct {
	HighPriorityRequiresApproval bool `koanf:"high_priority_requires_approval"`
	MaxDescriptionLength         int  `koanf:"max_description_length"`
}

// RetryConfig holds retry behavior for external-system calls.
type RetryConfig struct {
	MaxAttempts int      `koanf:"max_attempts"`
	BaseDelay   Duration `koanf:"base_delay"`
	MaxDelay    Duration `koanf:"max_delay"`
	Multiplier  float64  `koanf:"multiplier"`
}

// SystemsConfig holds the two backend system endpoints.
type SystemsConfig struct {
	CRM    SystemConfig `koanf:"crm"`
	Policy SystemConfig `koanf:"policy"`
}

// SystemConfig holds one backend system's connection settings.
type SystemConfig struct {
	BaseURL   string  `koanf:"base_url"`
	APIKey    Secret  `koanf:"api_key"`
	RateLimit float64 `koanf:"rate_limit"` // requests per second
	RateBurst int     `koanf:"rate_burst"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Provider        string `koanf:"provider"` // "slack", "nats", "nop"
	WebhookURL      Secret `koanf:"webhook_url"`
	NATSURL         string `koanf:"nats_url"`
	SummaryChannel  string `koanf:"summary_channel"`
	ApprovalChannel string `koanf:"approval_channel"`
	ErrorChannel    string `koanf:"error_channel"`
}

// WorkflowConfig holds orchestration settings.
type WorkflowConfig struct {
	CallTimeout          Duration `koanf:"call_timeout"`
	PerformanceThreshold Duration `koanf:"performance_threshold"`
}

// applyDefaults fills zero values with production-ready defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "commitd"
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = "dev"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Business.StartHour == 0 {
		cfg.Business.StartHour = 9
	}
	if cfg.Business.EndHour == 0 {
		cfg.Business.EndHour = 17
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "America/New_York"
	}
	if cfg.Priority.HighThreshold == 0 {
		cfg.Priority.HighThreshold = 4
	}
	if cfg.Priority.NormalThreshold == 0 {
		cfg.Priority.NormalThreshold = 2
	}
	if cfg.Approval.LowConfidenceFloor == 0 {
		cfg.Approval.LowConfidenceFloor = 0.5
	}
	if cfg.Tasks.MaxDescriptionLength == 0 {
		cfg.Tasks.MaxDescriptionLength = 1000
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = Duration(time.Second)
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = Duration(30 * time.Second)
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2.0
	}
	if cfg.Systems.CRM.RateLimit == 0 {
		cfg.Systems.CRM.RateLimit = 10
	}
	if cfg.Systems.CRM.RateBurst == 0 {
		cfg.Systems.CRM.RateBurst = 5
	}
	if cfg.Systems.Policy.RateLimit == 0 {
		cfg.Systems.Policy.RateLimit = 10
	}
	if cfg.Systems.Policy.RateBurst == 0 {
		cfg.Systems.Policy.RateBurst = 5
	}
	if cfg.Notify.Provider == "" {
		cfg.Notify.Provider = "nop"
	}
	if cfg.Notify.SummaryChannel == "" {
		cfg.Notify.SummaryChannel = "#call-summaries"
	}
	if cfg.Notify.ApprovalChannel == "" {
		cfg.Notify.ApprovalChannel = "#task-approvals"
	}
	if cfg.Notify.ErrorChannel == "" {
		cfg.Notify.ErrorChannel = "#commitd-errors"
	}
	if cfg.Workflow.CallTimeout == 0 {
		cfg.Workflow.CallTimeout = Duration(60 * time.Second)
	}
	if cfg.Workflow.PerformanceThreshold == 0 {
		cfg.Workflow.PerformanceThreshold = Duration(10 * time.Second)
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Business.StartHour < 0 || c.Business.StartHour > 23 {
		return fmt.Errorf("business start hour must be 0-23, got %d", c.Business.StartHour)
	}
	if c.Business.EndHour < 1 || c.Business.EndHour > 24 {
		return fmt.Errorf("business end hour must be 1-24, got %d", c.Business.EndHour)
	}
	if c.Business.StartHour >= c.Business.EndHour {
		return fmt.Errorf("business start hour %d must precede end hour %d",
			c.Business.StartHour, c.Business.EndHour)
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("invalid business timezone %q: %w", c.Business.Timezone, err)
	}
	if c.Priority.HighThreshold <= c.Priority.NormalThreshold {
		return fmt.Errorf("priority high threshold %d must exceed normal threshold %d",
			c.Priority.HighThreshold, c.Priority.NormalThreshold)
	}
	if c.Approval.LowConfidenceFloor < 0 || c.Approval.LowConfidenceFloor > 1 {
		return fmt.Errorf("approval low confidence floor must be in [0,1], got %f",
			c.Approval.LowConfidenceFloor)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be >= 1, got %f", c.Retry.Multiplier)
	}
	switch c.Notify.Provider {
	case "slack", "nats", "nop":
	default:
		return fmt.Errorf("unknown notify provider %q", c.Notify.Provider)
	}
	return nil
}
