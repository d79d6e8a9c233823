package engine

import (
	"context"
	"time"

	"zonesniper/internal/model"
)

// Computer runs the heavy per-pair calculation. Implementations must be safe
// for concurrent use by the worker pool.
type Computer interface {
	// BuildParams derives calculation params for a pair at the given price.
	BuildParams(pair string, price float64) (model.DataParams, error)

	// Compute builds a trading model from the params, honoring ctx
	// cancellation.
	Compute(ctx context.Context, params model.DataParams) (*model.TradingModel, error)
}

// JobOutcome classifies how a calculation job ended.
type JobOutcome int

const (
	OutcomeSuccess JobOutcome = iota
	OutcomeFailure
	OutcomeCanceled
)

func (o JobOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// JobRequest is one calculation dispatched to the worker pool.
type JobRequest struct {
	Pair   string
	Price  float64 // trigger price the params were built for
	Params model.DataParams

	// Epoch is the registry epoch at dispatch time. Results carrying an
	// older epoch are discarded: a config reload invalidated them.
	Epoch uint64

	ctx context.Context // per-job cancellation, owned by the coordinator
}

// JobResult is what a worker sends back for every request, exactly once.
type JobResult struct {
	Pair    string
	Price   float64
	Params  model.DataParams
	Epoch   uint64
	Outcome JobOutcome
	Model   *model.TradingModel // nil unless OutcomeSuccess
	Err     error               // nil unless OutcomeFailure
	Elapsed time.Duration
}
