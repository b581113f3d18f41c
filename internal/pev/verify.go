package pev

import (
	"context"
	"fmt"
)

// Status is the overall verdict of one execution attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
)

// StepResult records the outcome of one attempted step. Result is set only
// on success and Error only on failure.
type StepResult struct {
	StepIndex int    `json:"step_index"`
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// VerifyResult is the verdict for an attempt.
type VerifyResult struct {
	Status      Status `json:"status"`
	FailedSteps []int  `json:"failed_steps,omitempty"`
	Explanation string `json:"explanation"`
}

// Verifier turns step outcomes into a verdict. Domain verifiers may inspect
// the result payloads as well.
type Verifier interface {
	Verify(ctx context.Context, goal string, results []StepResult) VerifyResult
}

type VerifierFunc func(ctx context.Context, goal string, results []StepResult) VerifyResult

func (f VerifierFunc) Verify(ctx context.Context, goal string, results []StepResult) VerifyResult {
	return f(ctx, goal, results)
}

// DefaultVerifier judges an attempt purely on step success.
type DefaultVerifier struct{}

func (DefaultVerifier) Verify(_ context.Context, _ string, results []StepResult) VerifyResult {
	if len(results) == 0 {
		return VerifyResult{Status: StatusFailed, Explanation: "no steps were executed"}
	}

	var failed []int
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.StepIndex)
		}
	}

	switch len(failed) {
	case 0:
		return VerifyResult{
			Status:      StatusSuccess,
			Explanation: fmt.Sprintf("all %d steps succeeded", len(results)),
		}
	case len(results):
		return VerifyResult{
			Status:      StatusFailed,
			FailedSteps: failed,
			Explanation: fmt.Sprintf("all %d steps failed", len(results)),
		}
	default:
		return VerifyResult{
			Status:      StatusPartial,
			FailedSteps: failed,
			Explanation: fmt.Sprintf("%d of %d steps failed", len(failed), len(results)),
		}
	}
}
