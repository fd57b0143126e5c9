package spiral

import (
	"context"
	"errors"

	"github.com/MKRushil/Pulse/pkg/llm"
)

// FailureKind tags how a reasoning call failed. The orchestrator pattern
// matches on it: timeout and malformed trigger the stage's degraded
// fallback, unavailable consumes the retry budget.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureTimeout     FailureKind = "timeout"
	FailureMalformed   FailureKind = "malformed"
	FailureUnavailable FailureKind = "unavailable"
)

// StageRequest is the stage-specific context handed to the reasoning
// capability. The caller bounds the call with a context deadline.
type StageRequest struct {
	Stage       Stage
	System      string
	Prompt      string
	Temperature float64
}

type StageResult struct {
	Text    string
	Failure FailureKind
}

func (r StageResult) Failed() bool {
	return r.Failure != FailureNone
}

// Reasoner is the external text-reasoning capability as the engine sees it.
// Failures arrive as values, not errors, so every branch is enumerable.
type Reasoner interface {
	Call(ctx context.Context, req StageRequest) StageResult
}

type llmReasoner struct {
	provider llm.LLMProvider
}

// NewLLMReasoner adapts an LLM provider to the Reasoner port. Deadline
// expiry maps to a timeout failure, any other provider error to
// unavailable; malformed is decided by the stage parsers downstream.
func NewLLMReasoner(provider llm.LLMProvider) Reasoner {
	return &llmReasoner{provider: provider}
}

func (r *llmReasoner) Call(ctx context.Context, req StageRequest) StageResult {
	history := []llm.Message{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.Prompt},
	}

	text, err := r.provider.Chat(ctx, history, llm.WithTemperature(req.Temperature))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StageResult{Failure: FailureTimeout}
		}
		return StageResult{Failure: FailureUnavailable}
	}
	return StageResult{Text: text}
}
