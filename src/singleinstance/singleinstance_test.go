package singleinstance

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort finds a loopback port that is currently unused.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func TestAcquireDetectAndInfo(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	port := freePort(t)

	srv, err := Acquire(ctx, port, "127.0.0.1:5001")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer srv.Close()

	assert.True(t, Detect(ctx, port))
	info, err := ResidentInfo(ctx, port)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5001", info)

	_, err = Acquire(ctx, port, "other")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestDetectWithoutResident(t *testing.T) {
	port := freePort(t)
	assert.False(t, Detect(context.Background(), port))
	_, err := ResidentInfo(context.Background(), port)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, err := Acquire(context.Background(), freePort(t), "x")
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	require.NoError(t, srv.Close())
	assert.NoError(t, srv.Close())
}
