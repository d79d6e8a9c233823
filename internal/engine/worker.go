package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// worker consumes job requests until ctx is cancelled. Every request
// produces exactly one result; a panicking computation is reported as a
// failure instead of taking the process down.
func (e *Engine) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.jobCh:
			res := e.runJob(req)
			select {
			case e.resultCh <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runJob executes one calculation with the optional watchdog timeout.
func (e *Engine) runJob(req JobRequest) (res JobResult) {
	start := time.Now()
	res = JobResult{
		Pair:   req.Pair,
		Price:  req.Price,
		Params: req.Params,
		Epoch:  req.Epoch,
	}

	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailure
			res.Model = nil
			res.Err = fmt.Errorf("calculation panic: %v", r)
			log.Printf("[engine] %s: worker recovered from panic: %v", req.Pair, r)
		}
	}()

	jobCtx := req.ctx
	if e.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, e.cfg.JobTimeout)
		defer cancel()
	}

	m, err := e.comp.Compute(jobCtx, req.Params)
	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
		res.Model = m
	case errors.Is(err, context.Canceled):
		res.Outcome = OutcomeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		res.Outcome = OutcomeFailure
		res.Err = fmt.Errorf("watchdog: calculation exceeded %s", e.cfg.JobTimeout)
	default:
		res.Outcome = OutcomeFailure
		res.Err = err
	}
	return res
}
