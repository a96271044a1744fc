package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qcompress/internal/circuit"
	"github.com/aristath/qcompress/internal/domain"
)

func TestRemote_Execute(t *testing.T) {
	var gotShots int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute", r.URL.Path)

		var req executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotShots = req.Shots
		require.Equal(t, 2, req.Circuit.NumQubits)

		json.NewEncoder(w).Encode(executeResponse{Counts: map[string]int{"00": 90, "11": 10}})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, zerolog.Nop())
	c := circuit.New(2).Append(circuit.Rotation(circuit.GateRY, 0, 0.5)).Measure(0, 1)

	counts, err := remote.Execute(context.Background(), c, 100)
	require.NoError(t, err)

	assert.Equal(t, 100, gotShots)
	assert.Equal(t, Counts{"00": 90, "11": 10}, counts)
}

func TestRemote_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(executeResponse{Error: "unsupported gate"})
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, zerolog.Nop())
	_, err := remote.Execute(context.Background(), circuit.New(1).Measure(0), 10)

	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestRemote_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	remote := NewRemote(srv.URL, zerolog.Nop())
	_, err := remote.Execute(context.Background(), circuit.New(1).Measure(0), 10)

	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestRemote_ConnectionRefused(t *testing.T) {
	remote := NewRemote("http://127.0.0.1:1", zerolog.Nop())
	_, err := remote.Execute(context.Background(), circuit.New(1).Measure(0), 10)

	require.Error(t, err)
	assert.True(t, domain.IsExecution(err))
}

func TestRemote_ZeroShotsSkipsNetwork(t *testing.T) {
	remote := NewRemote("http://127.0.0.1:1", zerolog.Nop())

	counts, err := remote.Execute(context.Background(), circuit.New(1).Measure(0), 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
