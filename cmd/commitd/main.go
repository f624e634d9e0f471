// Commitd turns call transcripts into tracked tasks across the CRM and the
// policy-management system.
//
// The daemon listens for call webhooks, runs commitment detection over each
// transcript, and creates the resulting tasks in both backend systems with
// approval gating and compensating rollback.
//
// Usage:
//
//	# Start with defaults
//	commitd
//
//	# Start with a config file
//	commitd --config /etc/commitd/config.yaml
//
//	# Configure via environment
//	COMMITD_SERVER_PORT=9090 commitd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/config"
	"github.com/fyrsmithlabs/commitd/internal/detector"
	httpserver "github.com/fyrsmithlabs/commitd/internal/http"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/notify"
	"github.com/fyrsmithlabs/commitd/internal/patterns"
	"github.com/fyrsmithlabs/commitd/internal/syncer"
	"github.com/fyrsmithlabs/commitd/internal/systems"
	"github.com/fyrsmithlabs/commitd/internal/tasks"
	"github.com/fyrsmithlabs/commitd/internal/telemetry"
	"github.com/fyrsmithlabs/commitd/internal/timeparse"
	"github.com/fyrsmithlabs/commitd/internal/workflow"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("commitd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// run wires the pipeline and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCfg, err := logging.ParseConfig(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("parse log configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting commitd",
		zap.String("version", version),
		zap.String("commit", gitCommit),
	)

	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = "commitd"
	}
	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Observability.EnableTelemetry,
		Endpoint:       cfg.Observability.Endpoint,
		Protocol:       cfg.Observability.Protocol,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	catalog, err := patterns.NewDefaultCatalog(logger)
	if err != nil {
		return fmt.Errorf("register default patterns: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Business.Timezone)
	if err != nil {
		return fmt.Errorf("load business timezone: %w", err)
	}
	resolver := timeparse.NewResolver(timeparse.BusinessHours{
		Start:    cfg.Business.StartHour,
		End:      cfg.Business.EndHour,
		Location: loc,
	})

	det := detector.New(catalog, resolver, logger, detector.Config{
		HighThreshold:                cfg.Priority.HighThreshold,
		NormalThreshold:              cfg.Priority.NormalThreshold,
		RequireApprovalLowConfidence: cfg.Approval.RequireForLowConfidence,
		LowConfidenceFloor:           cfg.Approval.LowConfidenceFloor,
	})

	registry := systems.NewRegistry()
	registry.Register(patterns.SystemCRM, systems.NewCRMClient(cfg.Systems.CRM, cfg.Retry, logger))
	registry.Register(patterns.SystemPolicy, systems.NewPolicyClient(cfg.Systems.Policy, cfg.Retry, logger))
	callSource := systems.NewCallSource(cfg.Systems.CRM, cfg.Retry, logger)

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		return fmt.Errorf("initialize notifier: %w", err)
	}

	manager := tasks.NewManager(registry, tasks.NewTracker(), tasks.Rules{
		HighPriorityRequiresApproval: cfg.Tasks.HighPriorityRequiresApproval,
		MaxDescriptionLength:         cfg.Tasks.MaxDescriptionLength,
	}, logger)
	sync := syncer.New(registry, logger)

	orch := workflow.New(callSource, det, manager, sync, registry,
		workflow.AutoApprover(false), notifier, logger, workflow.Config{
			CallTimeout:          time.Duration(cfg.Workflow.CallTimeout),
			PerformanceThreshold: time.Duration(cfg.Workflow.PerformanceThreshold),
			Channels: workflow.Channels{
				Summary:  cfg.Notify.SummaryChannel,
				Approval: cfg.Notify.ApprovalChannel,
				Error:    cfg.Notify.ErrorChannel,
			},
		})

	server, err := httpserver.NewServer(orch, manager.Tracker(), catalog, logger, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
