package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"station-pipeline/internal/observability/metrics"
)

// Step is one pipeline stage. Optional steps log their failure and let the
// run continue; a required step failure halts the run.
type Step struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) (any, error)
}

// StepResult records one executed step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Detail   any           `json:"detail,omitempty"`
}

// RunReport summarizes one full pipeline execution.
type RunReport struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Succeeded  bool         `json:"succeeded"`
	Steps      []StepResult `json:"steps"`
}

const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Runner executes steps in order under a shared context.
type Runner struct {
	log *logrus.Logger
	now func() time.Time
}

// NewRunner constructs a runner.
func NewRunner(log *logrus.Logger) *Runner {
	return &Runner{log: log, now: time.Now}
}

// Execute runs every step in order. After a required step fails, the
// remaining steps are recorded as skipped.
func (r *Runner) Execute(ctx context.Context, steps []Step) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Succeeded: true,
	}
	r.log.WithField("run_id", report.RunID).Info("pipeline run started")

	halted := false
	for _, step := range steps {
		if halted {
			report.Steps = append(report.Steps, StepResult{Name: step.Name, Status: StatusSkipped})
			continue
		}

		started := r.now()
		detail, err := step.Run(ctx)
		elapsed := r.now().Sub(started)

		result := StepResult{Name: step.Name, Duration: elapsed, Detail: detail}
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			metrics.ObserveStage(step.Name, metrics.ResultError, elapsed)
			if step.Required {
				report.Succeeded = false
				halted = true
				r.log.WithField("step", step.Name).Errorf("required step failed: %v", err)
			} else {
				r.log.WithField("step", step.Name).Warnf("optional step failed: %v", err)
			}
		} else {
			result.Status = StatusOK
			metrics.ObserveStage(step.Name, metrics.ResultSuccess, elapsed)
			r.log.WithFields(logrus.Fields{
				"step":    step.Name,
				"elapsed": elapsed.Round(time.Millisecond).String(),
			}).Info("step finished")
		}
		report.Steps = append(report.Steps, result)
	}

	report.FinishedAt = r.now()
	r.log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"succeeded": report.Succeeded,
		"elapsed":   report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String(),
	}).Info("pipeline run finished")
	return report
}

// Elapsed returns the wall time of the whole run.
func (r RunReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedStep returns the name of the first failed step, if any.
func (r RunReport) FailedStep() (string, bool) {
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			return step.Name, true
		}
	}
	return "", false
}

func (r RunReport) String() string {
	return fmt.Sprintf("run %s: %d steps, succeeded=%t", r.RunID, len(r.Steps), r.Succeeded)
}
