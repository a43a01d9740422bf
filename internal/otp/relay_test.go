package otp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelaySendsPayload(t *testing.T) {
	var got relayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewRelaySender(srv.URL, WithRelayLogger(discardLogger()))
	require.NoError(t, sender.SendCode(context.Background(), "a@x.com", "123456", "Jane Doe"))

	assert.Equal(t, "a@x.com", got.To)
	assert.Equal(t, "123456", got.Code)
	assert.Equal(t, "Jane Doe", got.DisplayName)
}

func TestRelayRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewRelaySender(srv.URL, WithRelayLogger(discardLogger()))
	require.NoError(t, sender.SendCode(context.Background(), "a@x.com", "123456", ""))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRelayDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender := NewRelaySender(srv.URL, WithRelayLogger(discardLogger()))
	err := sender.SendCode(context.Background(), "a@x.com", "123456", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are permanent")
}

func TestRelayGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewRelaySender(srv.URL, WithRelayLogger(discardLogger()))
	err := sender.SendCode(context.Background(), "a@x.com", "123456", "")
	require.Error(t, err)
	assert.Equal(t, int32(defaultRelayMaxTries), calls.Load())
}
