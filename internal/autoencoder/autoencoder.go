// Package autoencoder assembles the full training engine: qubit mapping,
// circuit construction, loss estimation and the training loop, behind one
// aggregate with a small configuration surface.
package autoencoder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/qcompress/internal/backend"
	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
	"github.com/aristath/qcompress/internal/loss"
	"github.com/aristath/qcompress/internal/qubit"
	"github.com/aristath/qcompress/internal/training"
)

// Config is the construction-time surface of one autoencoder instance.
type Config struct {
	Mapping       qubit.Mapping
	Reset         bool
	TrashTraining bool
	Shots         int
	Workers       int
	ReportEvery   int
	Compile       bool
}

// QAE owns a scoped backend reference for its lifetime. The backend is
// required at construction, so no circuit can ever be issued against a
// missing connection.
type QAE struct {
	config    Config
	builder   *circuit.Builder
	estimator *loss.Estimator
	optimizer training.Optimizer
	log       zerolog.Logger

	onIteration func(training.State)
}

// Option tweaks optional collaborators at construction.
type Option func(*options)

type options struct {
	prep        circuit.StatePrep
	ansatz      circuit.Ansatz
	optimizer   training.Optimizer
	onIteration func(training.State)
}

// WithStatePrep overrides the default RY product state preparation.
func WithStatePrep(prep circuit.StatePrep) Option {
	return func(o *options) { o.prep = prep }
}

// WithAnsatz overrides the default controlled-RY ansatz.
func WithAnsatz(ansatz circuit.Ansatz) Option {
	return func(o *options) { o.ansatz = ansatz }
}

// WithOptimizer overrides the default Nelder-Mead optimizer.
func WithOptimizer(opt training.Optimizer) Option {
	return func(o *options) { o.optimizer = opt }
}

// WithIterationCallback registers an observer for every optimization step.
func WithIterationCallback(fn func(training.State)) Option {
	return func(o *options) { o.onIteration = fn }
}

// New validates the configuration and builds the engine. A nil backend is a
// configuration error here, before anything executes.
func New(cfg Config, b backend.Backend, log zerolog.Logger, opts ...Option) (*QAE, error) {
	if b == nil {
		return nil, domain.ConfigErrorf("autoencoder", "backend connection is not set")
	}

	o := options{
		prep:      circuit.RYPrep{},
		ansatz:    circuit.ControlledRYAnsatz{},
		optimizer: training.NelderMead{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	estimator, err := loss.NewEstimator(b, cfg.Shots, cfg.Workers, log)
	if err != nil {
		return nil, err
	}

	return &QAE{
		config:      cfg,
		builder:     circuit.NewBuilder(cfg.Mapping, o.prep, o.ansatz, cfg.Reset, cfg.TrashTraining, cfg.Compile),
		estimator:   estimator,
		optimizer:   o.optimizer,
		log:         log.With().Str("component", "autoencoder").Logger(),
		onIteration: o.onIteration,
	}, nil
}

// NumParams returns the parameter count of the configured ansatz.
func (q *QAE) NumParams() int { return q.builder.NumParams() }

// MeanLoss builds one pipeline per training sample at the given parameters
// and returns the mean loss across the split.
func (q *QAE) MeanLoss(ctx context.Context, samples []float64, theta []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, domain.ConfigErrorf("autoencoder", "training split is empty")
	}

	circuits := make([]circuit.Circuit, len(samples))
	for i, sample := range samples {
		c, err := q.builder.Pipeline(sample, theta)
		if err != nil {
			return 0, err
		}
		circuits[i] = c
	}
	return q.estimator.BatchLoss(ctx, circuits)
}

// Train runs optimization mode over the training split.
func (q *QAE) Train(ctx context.Context, samples []float64, initial []float64) (training.Result, error) {
	loop, err := q.loop(ctx, samples)
	if err != nil {
		return training.Result{}, err
	}
	return loop.Train(initial)
}

// Scan runs scan mode over the training split for a fixed parameter grid.
func (q *QAE) Scan(ctx context.Context, samples []float64, grid [][]float64) ([]training.ScanPoint, error) {
	loop, err := q.loop(ctx, samples)
	if err != nil {
		return nil, err
	}
	return loop.Scan(grid)
}

func (q *QAE) loop(ctx context.Context, samples []float64) (*training.Loop, error) {
	evaluate := func(theta []float64) (float64, error) {
		return q.MeanLoss(ctx, samples, theta)
	}
	return training.NewLoop(evaluate, q.builder.NumParams(), q.optimizer, q.config.ReportEvery, q.onIteration, q.log)
}
