package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakao-autopilot/src/client"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{}))
	assert.Equal(t, 50, opts.n)
	assert.Equal(t, "", opts.url)
	assert.Equal(t, 5*time.Second, opts.deadline)
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--url", "http://127.0.0.1:5001", "--deadline", "7s"}))
	assert.Equal(t, 3, opts.n)
	assert.Equal(t, "http://127.0.0.1:5001", opts.url)
	assert.Equal(t, 7*time.Second, opts.deadline)
}

func TestFireCountsOutcomes(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) % 3 {
		case 0:
			w.WriteHeader(http.StatusInternalServerError)
		case 1:
			_, _ = w.Write([]byte(`{"batch_id":"b","results":[]}`))
		default:
			w.WriteHeader(http.StatusConflict)
		}
	}))
	defer srv.Close()

	got := fire(client.New(srv.URL), 6, time.Second)
	assert.Equal(t, int32(2), got.ok)
	assert.Equal(t, int32(2), got.busy)
	assert.Equal(t, int32(2), got.err)
}
