package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/qcompress/internal/autoencoder"
	"github.com/aristath/qcompress/internal/domain"
	"github.com/aristath/qcompress/internal/events"
	"github.com/aristath/qcompress/internal/qubit"
	"github.com/aristath/qcompress/internal/storage"
	"github.com/aristath/qcompress/internal/training"
)

// runRequest is the shared payload of train and scan requests.
type runRequest struct {
	Input         map[string]int `json:"input"`
	Latent        map[string]int `json:"latent"`
	Refresh       map[string]int `json:"refresh"`
	Reset         bool           `json:"reset"`
	TrashTraining bool           `json:"trash_training"`
	Compile       bool           `json:"compile"`
	Shots         int            `json:"shots"`
	Samples       []float64      `json:"samples"`

	// Train mode only.
	InitialParams  []float64 `json:"initial_params"`
	MaxEvaluations int       `json:"max_evaluations"`
	Tolerance      float64   `json:"tolerance"`

	// Scan mode only.
	Grid [][]float64 `json:"grid"`
}

func (s *Server) buildEngine(req *runRequest, onIteration func(training.State)) (*autoencoder.QAE, error) {
	mapping, err := qubit.NewMapping(req.Input, req.Latent, req.Refresh)
	if err != nil {
		return nil, err
	}

	shots := req.Shots
	if shots == 0 {
		shots = s.cfg.Shots
	}

	opts := []autoencoder.Option{
		autoencoder.WithOptimizer(training.NelderMead{
			MaxEvaluations: req.MaxEvaluations,
			Tolerance:      req.Tolerance,
		}),
	}
	if onIteration != nil {
		opts = append(opts, autoencoder.WithIterationCallback(onIteration))
	}

	return autoencoder.New(autoencoder.Config{
		Mapping:       mapping,
		Reset:         req.Reset,
		TrashTraining: req.TrashTraining,
		Shots:         shots,
		Workers:       s.cfg.Workers,
		ReportEvery:   s.cfg.ReportEvery,
		Compile:       req.Compile,
	}, s.backend, s.log, opts...)
}

// handleTrain starts an asynchronous optimization run.
// POST /api/train
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Samples) == 0 {
		s.writeError(w, http.StatusBadRequest, "samples must not be empty")
		return
	}

	runID, err := s.runRepo.CreateRun(storage.KindTrain, req.Reset, req.TrashTraining, req.Shots, req.InitialParams)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	onIteration := func(state training.State) {
		if err := s.runRepo.AppendIteration(storage.Iteration{
			RunID:     runID,
			Iteration: state.Iteration,
			Params:    state.Params,
			Loss:      state.Loss,
		}); err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist iteration")
		}
		s.eventBus.Publish(events.IterationCompleted, runID, map[string]interface{}{
			"iteration": state.Iteration,
			"loss":      state.Loss,
			"params":    state.Params,
		})
	}

	qae, err := s.buildEngine(&req, onIteration)
	if err != nil {
		s.failRun(runID, err)
		s.writeDomainError(w, err)
		return
	}
	if len(req.InitialParams) != qae.NumParams() {
		err := domain.ConfigErrorf("server", "initial_params has length %d, ansatz expects %d", len(req.InitialParams), qae.NumParams())
		s.failRun(runID, err)
		s.writeDomainError(w, err)
		return
	}

	s.eventBus.Publish(events.RunStarted, runID, map[string]interface{}{"kind": "train"})

	go func() {
		result, err := qae.Train(context.Background(), req.Samples, req.InitialParams)
		if err != nil {
			s.failRun(runID, err)
			s.eventBus.Publish(events.RunFailed, runID, map[string]interface{}{"error": err.Error()})
			return
		}

		if err := s.runRepo.CompleteRun(runID, result.Params, result.Loss, result.Evaluations); err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist run result")
		}
		s.eventBus.Publish(events.RunCompleted, runID, map[string]interface{}{
			"loss":        result.Loss,
			"params":      result.Params,
			"evaluations": result.Evaluations,
		})
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(storage.StatusRunning),
	})
}

// handleScan runs a synchronous landscape scan.
// POST /api/scan
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Samples) == 0 {
		s.writeError(w, http.StatusBadRequest, "samples must not be empty")
		return
	}

	qae, err := s.buildEngine(&req, nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	runID, err := s.runRepo.CreateRun(storage.KindScan, req.Reset, req.TrashTraining, req.Shots, nil)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	points, err := qae.Scan(r.Context(), req.Samples, req.Grid)
	if err != nil {
		s.failRun(runID, err)
		s.writeDomainError(w, err)
		return
	}

	results := make([]storage.ScanResult, len(points))
	for i, p := range points {
		results[i] = storage.ScanResult{RunID: runID, Position: i, Params: p.Params, Loss: p.Loss}
	}
	if err := s.runRepo.SaveScanPoints(runID, results); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist scan points")
	}
	if err := s.runRepo.CompleteRun(runID, nil, bestLoss(points), len(points)); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist scan run")
	}
	s.eventBus.Publish(events.ScanCompleted, runID, map[string]interface{}{"points": len(points)})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"points": points,
	})
}

func bestLoss(points []training.ScanPoint) float64 {
	best := 0.0
	for _, p := range points {
		if p.Loss < best {
			best = p.Loss
		}
	}
	return best
}

// handleListRuns returns recent runs, newest first.
// GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runRepo.ListRuns(50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one run by id.
// GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runRepo.GetRun(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleRunIterations returns a training run's optimization history.
// GET /api/runs/{id}/iterations
func (s *Server) handleRunIterations(w http.ResponseWriter, r *http.Request) {
	iterations, err := s.runRepo.ListIterations(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if iterations == nil {
		iterations = []storage.Iteration{}
	}
	s.writeJSON(w, http.StatusOK, iterations)
}

// handleRunScanPoints returns a scan run's results in grid order.
// GET /api/runs/{id}/scan
func (s *Server) handleRunScanPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.runRepo.ListScanPoints(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []storage.ScanResult{}
	}
	s.writeJSON(w, http.StatusOK, points)
}

// handleSystemStatus reports host and engine status.
// GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := s.systemStats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backend":       s.backend.Name(),
		"default_shots": s.cfg.Shots,
		"workers":       s.cfg.Workers,
		"cpu_percent":   cpuAvg,
		"ram_percent":   ramPercent,
	})
}

// systemStats calculates CPU and RAM usage percentages. A 100ms sampling
// window keeps the endpoint responsive for pollers.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (s *Server) failRun(runID string, runErr error) {
	if err := s.runRepo.FailRun(runID, runErr); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to mark run failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP status codes:
// configuration errors are the caller's fault, execution errors are not.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	if domain.IsConfiguration(err) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
