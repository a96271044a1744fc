package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
)

// Remote executes circuits on an external execution service over HTTP. The
// wire format mirrors the circuit's JSON shape, so any service accepting the
// same gate vocabulary can be plugged in without touching the engine.
type Remote struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewRemote creates a remote backend client for the given base URL.
func NewRemote(baseURL string, log zerolog.Logger) *Remote {
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("backend", "remote").Str("url", baseURL).Logger(),
	}
}

// Name implements Backend.
func (r *Remote) Name() string { return "remote" }

type executeRequest struct {
	Circuit circuit.Circuit `json:"circuit"`
	Shots   int             `json:"shots"`
}

type executeResponse struct {
	Counts map[string]int `json:"counts"`
	Error  string         `json:"error,omitempty"`
}

// Execute implements Backend. Transport and service failures surface as
// execution errors; the engine never retries, so any retry policy belongs
// behind the service itself.
func (r *Remote) Execute(ctx context.Context, c circuit.Circuit, shots int) (Counts, error) {
	if shots <= 0 {
		return Counts{}, nil
	}

	body, err := json.Marshal(executeRequest{Circuit: c, Shots: shots})
	if err != nil {
		return nil, domain.ExecErrorf("remote", "encode request: %v", err)
	}

	url := fmt.Sprintf("%s/execute", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ExecErrorf("remote", "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.ExecErrorf("remote", "execution request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ExecErrorf("remote", "service returned status %d", resp.StatusCode)
	}

	var result executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.ExecErrorf("remote", "decode response: %v", err)
	}
	if result.Error != "" {
		return nil, domain.ExecErrorf("remote", "service error: %s", result.Error)
	}

	r.log.Debug().
		Int("shots", shots).
		Int("outcomes", len(result.Counts)).
		Msg("Circuit executed remotely")
	return Counts(result.Counts), nil
}
