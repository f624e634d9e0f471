package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/commitd/internal/detector"
	"github.com/fyrsmithlabs/commitd/internal/errs"
	"github.com/fyrsmithlabs/commitd/internal/logging"
	"github.com/fyrsmithlabs/commitd/internal/notify"
	"github.com/fyrsmithlabs/commitd/internal/syncer"
	"github.com/fyrsmithlabs/commitd/internal/systems"
	"github.com/fyrsmithlabs/commitd/internal/tasks"
	"github.com/fyrsmithlabs/commitd/internal/txn"
)

const instrumentationName = "github.com/fyrsmithlabs/commitd/internal/workflow"

// Approver decides whether an approval-gated commitment may proceed.
type Approver interface {
	Approve(ctx context.Context, c detector.Commitment) (bool, error)
}

// AutoApprover approves or denies everything. Deployments without a human
// approval loop deny by default and route to the approval channel.
type AutoApprover bool

var _ Approver = AutoApprover(false)

func (a AutoApprover) Approve(context.Context, detector.Commitment) (bool, error) {
	return bool(a), nil
}

// Channels names the notification destinations.
type Channels struct {
	Summary  string
	Approval string
	Error    string
}

// Config holds orchestration settings.
type Config struct {
	// CallTimeout bounds one ProcessCall run.
	CallTimeout time.Duration
	// PerformanceThreshold flags slow runs even when they succeed.
	PerformanceThreshold time.Duration
	Channels             Channels
}

// Result summarizes one processed call.
type Result struct {
	CallID           string
	LeadID           string
	Detected         int
	CreatedTaskIDs   []string
	AwaitingApproval int
	Failed           int
	Errors           []error
	Elapsed          time.Duration
}

// Orchestrator wires the pipeline together.
type Orchestrator struct {
	calls    systems.CallSource
	detector *detector.Detector
	manager  *tasks.Manager
	sync     *syncer.Synchronizer
	registry *systems.Registry
	approver Approver
	notifier notify.Notifier
	logger   *logging.Logger
	cfg      Config

	tracer       trace.Tracer
	callCounter  metric.Int64Counter
	taskCounter  metric.Int64Counter
	callDuration metric.Float64Histogram
}

// New creates an orchestrator.
func New(
	calls systems.CallSource,
	det *detector.Detector,
	manager *tasks.Manager,
	sync *syncer.Synchronizer,
	registry *systems.Registry,
	approver Approver,
	notifier notify.Notifier,
	logger *logging.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	if approver == nil {
		approver = AutoApprover(false)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.PerformanceThreshold <= 0 {
		cfg.PerformanceThreshold = 10 * time.Second
	}
	o := &Orchestrator{
		calls:    calls,
		detector: det,
		manager:  manager,
		sync:     sync,
		registry: registry,
		approver: approver,
		notifier: notifier,
		logger:   logger.Named("workflow"),
		cfg:      cfg,
		tracer:   otel.Tracer(instrumentationName),
	}
	o.initMetrics()
	return o
}

func (o *Orchestrator) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	o.callCounter, err = meter.Int64Counter(
		"commitd.workflow.calls_processed",
		metric.WithDescription("Calls run through the pipeline"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		o.logger.Warn("failed to create call counter", zap.Error(err))
	}

	o.taskCounter, err = meter.Int64Counter(
		"commitd.workflow.tasks_created",
		metric.WithDescription("Tasks created from detected commitments"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		o.logger.Warn("failed to create task counter", zap.Error(err))
	}

	o.callDuration, err = meter.Float64Histogram(
		"commitd.workflow.call_duration",
		metric.WithDescription("End-to-end call processing duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		o.logger.Warn("failed to create duration histogram", zap.Error(err))
	}
}

// ProcessCall runs the full pipeline for one call. Per-commitment failures
// are collected, not fatal; the hard failure modes are an unreachable call
// source and the deadline. A run that exceeds the performance threshold
// returns its Result together with a PerformanceError.
func (o *Orchestrator) ProcessCall(ctx context.Context, callID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "workflow.process_call",
		trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()

	start := time.Now()
	res := &Result{CallID: callID}

	call, err := o.calls.GetCall(ctx, callID)
	if err != nil {
		err = o.asPerformanceError("get call", start, err)
		o.fail(ctx, span, callID, err)
		return nil, err
	}
	res.LeadID = call.LeadID

	detection := o.detector.Detect(call.Transcript)
	res.Detected = len(detection.Commitments)
	span.SetAttributes(attribute.Int("commitments.detected", res.Detected))

	for _, c := range detection.Commitments {
		taskID, err := o.processCommitment(ctx, call, c)
		switch {
		case err == nil && taskID == "":
			res.AwaitingApproval++
		case err == nil:
			res.CreatedTaskIDs = append(res.CreatedTaskIDs, taskID)
		default:
			err = o.asPerformanceError("create commitment tasks", start, err)
			res.Failed++
			res.Errors = append(res.Errors, err)
			o.logger.Error("commitment processing failed",
				zap.String("call_id", callID),
				zap.String("category", c.Category),
				zap.Error(err),
			)
		}
	}

	res.Elapsed = time.Since(start)
	o.record(ctx, res)
	o.notifySummary(ctx, call, res)
	if res.Failed > 0 {
		o.notifyError(ctx, callID, res.Errors)
	}

	if res.Elapsed > o.cfg.PerformanceThreshold {
		perfErr := &errs.PerformanceError{
			Operation: "process call " + callID,
			Threshold: o.cfg.PerformanceThreshold,
			Actual:    res.Elapsed,
		}
		span.SetStatus(codes.Error, perfErr.Error())
		return res, perfErr
	}
	return res, nil
}

// processCommitment gates on approval, then creates the task in its primary
// system and mirrors it, as one transaction. An empty task id with nil error
// means the commitment is parked awaiting approval.
func (o *Orchestrator) processCommitment(ctx context.Context, call *systems.Call, c detector.Commitment) (string, error) {
	// Patterns that don't gate on approval have made that decision
	// explicitly; the lifecycle rule only blocks callers that never
	// considered it.
	approvalGranted := !c.RequiresApproval
	if c.RequiresApproval {
		approved, err := o.approver.Approve(ctx, c)
		if err != nil {
			return "", fmt.Errorf("approval check: %w", err)
		}
		if !approved {
			o.notifyApprovalNeeded(ctx, call, c)
			return "", nil
		}
		approvalGranted = true
	}

	tx := txn.NewManager(o.logger)

	created, err := tx.ExecuteStep(ctx, txn.Step{
		Operation:    "create primary task",
		TargetSystem: c.System,
		Run: func(ctx context.Context) (any, error) {
			rec, err := o.manager.CreateTask(ctx, tasks.CreateRequest{
				Description:     c.Description,
				Due:             c.Due,
				Category:        c.Category,
				System:          c.System,
				Priority:        c.Priority,
				ApprovalGranted: approvalGranted,
			})
			if err != nil {
				return nil, err
			}
			return rec.TaskID, nil
		},
		Compensate: func(ctx context.Context, result any) error {
			taskID := result.(string)
			client, err := o.registry.Get(c.System)
			if err != nil {
				return err
			}
			if err := client.DeleteTask(ctx, taskID); err != nil {
				return err
			}
			// The audit record survives; mark it cancelled.
			_, err = o.manager.Tracker().Transition(taskID, tasks.StatusCancelled, "rolled back", nil)
			return err
		},
	})
	if err != nil {
		return "", err
	}
	taskID := created.(string)

	_, err = tx.ExecuteStep(ctx, txn.Step{
		Operation:    "mirror to secondary",
		TargetSystem: systems.Counterpart(c.System),
		Run: func(ctx context.Context) (any, error) {
			return o.sync.SyncTask(ctx, taskID, c.System)
		},
	})
	if err != nil {
		return "", err
	}

	if o.taskCounter != nil {
		o.taskCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("system", string(c.System)),
			attribute.String("category", c.Category),
		))
	}
	return taskID, nil
}

// asPerformanceError converts a deadline hit during a downstream write into
// the performance-failure taxonomy; other errors pass through.
func (o *Orchestrator) asPerformanceError(operation string, start time.Time, err error) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &errs.PerformanceError{
		Operation: operation,
		Threshold: o.cfg.CallTimeout,
		Actual:    time.Since(start),
		Err:       err,
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result) {
	if o.callCounter != nil {
		o.callCounter.Add(ctx, 1)
	}
	if o.callDuration != nil {
		o.callDuration.Record(ctx, float64(res.Elapsed.Milliseconds()))
	}
	o.logger.Info("call processed",
		zap.String("call_id", res.CallID),
		zap.Int("detected", res.Detected),
		zap.Int("created", len(res.CreatedTaskIDs)),
		zap.Int("awaiting_approval", res.AwaitingApproval),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.Elapsed),
	)
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, callID string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Error("call processing failed", zap.String("call_id", callID), zap.Error(err))
	o.notifyError(ctx, callID, []error{err})
}

func (o *Orchestrator) notifySummary(ctx context.Context, call *systems.Call, res *Result) {
	if res.Detected == 0 {
		return
	}
	text := fmt.Sprintf("Call %s (lead %s): %d commitment(s) detected, %d task(s) created, %d awaiting approval, %d failed",
		res.CallID, call.LeadID, res.Detected, len(res.CreatedTaskIDs), res.AwaitingApproval, res.Failed)
	if err := o.notifier.Send(ctx, text, o.cfg.Channels.Summary); err != nil {
		o.logger.Warn("summary notification failed", zap.Error(err))
	}
}

func (o *Orchestrator) notifyApprovalNeeded(ctx context.Context, call *systems.Call, c detector.Commitment) {
	text := fmt.Sprintf("Approval needed for %s commitment on call %s: %q (due %s, confidence %.2f)",
		c.System, call.ID, c.Description, c.Due.Format(time.RFC3339), c.Confidence)
	if err := o.notifier.Send(ctx, text, o.cfg.Channels.Approval); err != nil {
		o.logger.Warn("approval notification failed", zap.Error(err))
	}
}

func (o *Orchestrator) notifyError(ctx context.Context, callID string, failures []error) {
	text := fmt.Sprintf("Call %s processing errors: %v", callID, errors.Join(failures...))
	if err := o.notifier.Send(ctx, text, o.cfg.Channels.Error); err != nil {
		o.logger.Warn("error notification failed", zap.Error(err))
	}
}
