// Package loss reduces measurement counts into scalar training losses.
//
// The loss for one sample is the negative empirical probability of the target
// outcome (the all-zero bitstring over the measured register), so it lives in
// [-1, 0] with -1 optimal. With n shots the standard error of the estimate is
// about sqrt(p(1-p)/n); the optimizer has to tolerate noise of that order.
package loss

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/qcompress/internal/backend"
	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
)

// Estimator executes circuits against a backend and turns counts into losses.
type Estimator struct {
	backend backend.Backend
	shots   int
	workers int
	log     zerolog.Logger
}

// NewEstimator creates an estimator. workers bounds the parallelism of batch
// evaluation; values below 1 default to 4.
func NewEstimator(b backend.Backend, shots, workers int, log zerolog.Logger) (*Estimator, error) {
	if b == nil {
		return nil, domain.ConfigErrorf("loss", "backend is not set")
	}
	if shots < 0 {
		return nil, domain.ConfigErrorf("loss", "negative shot count %d", shots)
	}
	if workers < 1 {
		workers = 4
	}
	return &Estimator{
		backend: b,
		shots:   shots,
		workers: workers,
		log:     log.With().Str("component", "loss").Logger(),
	}, nil
}

// Shots returns the configured shot count.
func (e *Estimator) Shots() int { return e.shots }

// StdErr returns the approximate statistical standard error of a probability
// estimate p at the configured shot count.
func (e *Estimator) StdErr(p float64) float64 {
	if e.shots == 0 {
		return 0
	}
	return math.Sqrt(p * (1 - p) / float64(e.shots))
}

// SampleLoss runs one circuit and returns its loss. Zero shots and a
// never-observed target outcome are the documented degenerate cases: both
// yield exactly 0 (no signal), never NaN and never an error.
func (e *Estimator) SampleLoss(ctx context.Context, c circuit.Circuit) (float64, error) {
	if e.shots == 0 {
		return 0, nil
	}

	counts, err := e.backend.Execute(ctx, c, e.shots)
	if err != nil {
		return 0, err
	}

	target := counts[backend.AllZeros(len(c.MeasuredQubits()))]
	if target == 0 {
		return 0, nil
	}
	return -float64(target) / float64(e.shots), nil
}

// BatchLoss evaluates every circuit and returns the arithmetic mean of the
// per-sample losses. Executions are independent, so they run on a bounded
// worker pool; the mean is order-independent, which keeps the parallel result
// identical to the sequential one.
func (e *Estimator) BatchLoss(ctx context.Context, circuits []circuit.Circuit) (float64, error) {
	if len(circuits) == 0 {
		return 0, domain.ConfigErrorf("loss", "empty training batch")
	}

	type job struct {
		index int
		c     circuit.Circuit
	}
	type result struct {
		index int
		loss  float64
		err   error
	}

	jobs := make(chan job, len(circuits))
	results := make(chan result, len(circuits))

	workers := e.workers
	if len(circuits) < workers {
		workers = len(circuits)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				l, err := e.SampleLoss(ctx, j.c)
				results <- result{index: j.index, loss: l, err: err}
			}
		}()
	}

	for i, c := range circuits {
		jobs <- job{index: i, c: c}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	losses := make([]float64, len(circuits))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sample %d: %w", r.index, r.err)
		}
		losses[r.index] = r.loss
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return stat.Mean(losses, nil), nil
}
