package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunnerAllStepsSucceed(t *testing.T) {
	runner := NewRunner(testLogger())

	var order []string
	step := func(name string) Step {
		return Step{
			Name:     name,
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				order = append(order, name)
				return name + "-detail", nil
			},
		}
	}

	report := runner.Execute(context.Background(), []Step{step("first"), step("second")})

	if !report.Succeeded {
		t.Fatal("run marked failed")
	}
	if report.RunID == "" {
		t.Fatal("missing run id")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("execution order: %v", order)
	}
	for _, result := range report.Steps {
		if result.Status != StatusOK {
			t.Fatalf("step %s status %s", result.Name, result.Status)
		}
	}
	if _, failed := report.FailedStep(); failed {
		t.Fatal("FailedStep reported a failure")
	}
}

func TestRunnerRequiredFailureHaltsRun(t *testing.T) {
	runner := NewRunner(testLogger())

	ran := false
	steps := []Step{
		{
			Name:     "load",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				return nil, errors.New("boom")
			},
		},
		{
			Name:     "promote",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				ran = true
				return nil, nil
			},
		},
	}

	report := runner.Execute(context.Background(), steps)

	if report.Succeeded {
		t.Fatal("run marked succeeded")
	}
	if ran {
		t.Fatal("step after required failure executed")
	}
	if report.Steps[0].Status != StatusFailed || report.Steps[0].Error == "" {
		t.Fatalf("failed step not recorded: %+v", report.Steps[0])
	}
	if report.Steps[1].Status != StatusSkipped {
		t.Fatalf("trailing step not skipped: %+v", report.Steps[1])
	}
	if name, ok := report.FailedStep(); !ok || name != "load" {
		t.Fatalf("FailedStep: %s %t", name, ok)
	}
}

func TestRunnerOptionalFailureContinues(t *testing.T) {
	runner := NewRunner(testLogger())

	ran := false
	steps := []Step{
		{
			Name: "generate",
			Run: func(ctx context.Context) (any, error) {
				return nil, errors.New("no fixtures")
			},
		},
		{
			Name:     "load",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				ran = true
				return nil, nil
			},
		},
	}

	report := runner.Execute(context.Background(), steps)

	if !report.Succeeded {
		t.Fatal("optional failure failed the run")
	}
	if !ran {
		t.Fatal("required step after optional failure not executed")
	}
	if report.Steps[0].Status != StatusFailed {
		t.Fatalf("optional step status: %s", report.Steps[0].Status)
	}
}
