package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// State is a phase of one wait session.
type State string

const (
	// StateAwaitingStartAck covers the time before the first snapshot. It is
	// never passed to OnSnapshot or returned in a Result.
	StateAwaitingStartAck State = "AwaitingStartAck"
	StatePolling          State = "Polling"
	StateSucceeded        State = "Succeeded"
	StateFailed           State = "Failed"
	StateStepCompleted    State = "StepCompleted"
	StateTimedOut         State = "TimedOut"
)

// Terminal reports whether no further polling happens in s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateStepCompleted, StateTimedOut:
		return true
	}
	return false
}

// Wait modes, selected from WaitOptions.
const (
	ModeStep           = "step"
	ModeStepSubsequent = "step-subsequent"
	ModeWorkflow       = "workflow"
)

// Poll timing defaults.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollInterval = 15 * time.Second
	DefaultPollTimeout     = 30 * time.Minute
)

// WaitOptions select what to wait for and how often to look.
type WaitOptions struct {
	// StepName limits the wait to one step. Empty waits for the whole workflow.
	StepName string
	// PerformSubsequent watches overall progress from StepName on instead of
	// the step's own return code.
	PerformSubsequent bool

	Interval    time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration

	// OnSnapshot, if set, is called with every fetched snapshot.
	OnSnapshot func(state State, snapshot *models.WorkflowInstance)
}

// Mode returns the wait mode implied by the options.
func (o WaitOptions) Mode() string {
	switch {
	case o.StepName == "":
		return ModeWorkflow
	case o.PerformSubsequent:
		return ModeStepSubsequent
	default:
		return ModeStep
	}
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxPollInterval
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = o.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	return o
}

// Result is the outcome of a successful wait.
type Result struct {
	Key      string                   `json:"workflowKey" yaml:"workflowKey"`
	State    State                    `json:"state" yaml:"state"`
	Snapshot *models.WorkflowInstance `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	// ReturnCode is the raw step return code in step mode. It is not
	// classified as success or failure.
	ReturnCode string        `json:"returnCode,omitempty" yaml:"returnCode,omitempty"`
	StepName   string        `json:"stepName,omitempty" yaml:"stepName,omitempty"`
	Polls      int           `json:"polls" yaml:"polls"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Poller repeatedly fetches workflow properties until a terminal condition.
// It only reads; it never cancels or deletes a workflow.
type Poller struct {
	backend WorkflowBackend
	logger  Logger
	polls   metric.Int64Counter
}

// NewPoller creates a Poller over backend.
func NewPoller(backend WorkflowBackend, logger Logger) *Poller {
	if logger == nil {
		logger = nopLogger{}
	}
	polls, err := otel.Meter(instrumentationName).Int64Counter(
		"zwf.workflow.polls",
		metric.WithDescription("Workflow property fetches made while waiting"),
	)
	if err != nil {
		logger.Warn("failed to create poll counter", "error", err)
	}
	return &Poller{backend: backend, logger: logger, polls: polls}
}

// Wait polls the workflow identified by key until it reaches the terminal
// condition for the selected mode. The first fetch is immediate; later ones
// back off exponentially from Interval up to MaxInterval.
//
// A non-success end state returns *workflow.TerminalFailure. Passing the
// Timeout returns *workflow.PollTimeoutError. Cancelling ctx returns the
// context's error.
func (p *Poller) Wait(ctx context.Context, key string, opts WaitOptions) (*Result, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	mode := opts.Mode()
	started := time.Now()

	res := &Result{Key: key, StepName: opts.StepName}
	log := p.logger

	waitCtx, cancel := context.WithTimeoutCause(ctx, opts.Timeout, workflow.ErrPollTimeout)
	defer cancel()

	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = opts.Interval
	delay.MaxInterval = opts.MaxInterval
	delay.MaxElapsedTime = 0
	delay.Reset()

	timedOut := func(cause error) (*Result, error) {
		elapsed := time.Since(started)
		log.Warn("workflow wait timed out", "workflow_key", key, "polls", res.Polls, "elapsed", elapsed)
		return nil, &workflow.PollTimeoutError{Key: key, Polls: res.Polls, Elapsed: elapsed, Last: res.Snapshot, Cause: cause}
	}

	for {
		snap, err := p.backend.Properties(waitCtx, key, workflow.PropertiesOptions{IncludeSteps: true})
		if err != nil {
			if errors.Is(context.Cause(waitCtx), workflow.ErrPollTimeout) && ctx.Err() == nil {
				return timedOut(err)
			}
			return nil, err
		}
		res.Polls++
		res.Snapshot = snap
		res.State = StatePolling
		if p.polls != nil {
			p.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
		}

		outcome, err := evaluate(mode, key, opts.StepName, snap)
		if err != nil {
			return nil, err
		}
		if outcome.state != "" {
			res.State = outcome.state
		}
		if opts.OnSnapshot != nil {
			opts.OnSnapshot(res.State, snap)
		}

		switch res.State {
		case StateSucceeded, StateStepCompleted:
			res.ReturnCode = outcome.returnCode
			res.Elapsed = time.Since(started)
			log.Info("workflow wait finished", "workflow_key", key, "state", res.State, "polls", res.Polls)
			return res, nil
		case StateFailed:
			log.Info("workflow wait finished", "workflow_key", key, "state", res.State, "status", snap.StatusName, "polls", res.Polls, "elapsed", time.Since(started))
			return nil, &workflow.TerminalFailure{Key: key, Mode: mode, Snapshot: snap, Ambiguous: outcome.ambiguous}
		}

		next := delay.NextBackOff()
		log.Debug("workflow still running", "workflow_key", key, "status", snap.StatusName, "next_poll", next)

		timer := time.NewTimer(next)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return timedOut(nil)
		case <-timer.C:
		}
	}
}

type outcome struct {
	state      State
	returnCode string
	ambiguous  bool
}

// evaluate inspects one snapshot. An empty outcome state means keep polling.
func evaluate(mode, key, stepName string, snap *models.WorkflowInstance) (outcome, error) {
	switch mode {
	case ModeStep:
		step := workflow.FindStep(snap.Steps, stepName)
		if step == nil {
			return outcome{}, fmt.Errorf("workflow %s: %w: %s", key, workflow.ErrStepNotFound, stepName)
		}
		if step.ReturnCode == nil {
			return outcome{}, nil
		}
		return outcome{state: StateStepCompleted, returnCode: *step.ReturnCode}, nil

	case ModeStepSubsequent:
		if snap.AutomationStatus != nil && snap.AutomationStatus.CurrentStepName != "" {
			return outcome{}, nil
		}
		if snap.StatusName == models.StatusComplete {
			return outcome{state: StateSucceeded}, nil
		}
		return outcome{state: StateFailed, ambiguous: snap.StatusName == models.StatusInProgress}, nil

	default:
		if snap.AutomationStatus == nil || snap.AutomationStatus.CurrentStepName != "" {
			return outcome{}, nil
		}
		if snap.StatusName == models.StatusComplete {
			return outcome{state: StateSucceeded}, nil
		}
		return outcome{state: StateFailed}, nil
	}
}
