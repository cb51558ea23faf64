package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakao-autopilot/src/workflow"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndReadBack(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	results := []workflow.Result{
		{Key: "kim", Username: "kim", Status: workflow.StatusSuccess, Items: []workflow.ItemResult{
			{Index: 0, Kind: workflow.KindText, Status: workflow.StatusSuccess},
			{Index: 1, Kind: workflow.KindImage, Status: workflow.StatusFail, Reason: "upload stuck"},
		}},
		{Key: "lee", Username: "lee", Status: workflow.StatusSkip, Reason: "no messages"},
	}
	require.NoError(t, j.Record(ctx, Batch{ID: "b1", Kind: KindMessageSend, StartedAt: start, FinishedAt: start.Add(time.Minute)}, results))

	got, err := j.Results(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, results, got)

	b, err := j.Batch(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, KindMessageSend, b.Kind)

	missing, err := j.Batch(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFriendStatusUsesLatest(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, j.Record(ctx, Batch{ID: "a", Kind: KindFriendAdd, StartedAt: now, FinishedAt: now},
		[]workflow.Result{{Key: "010", Phone: "010", Status: workflow.StatusFail}}))
	require.NoError(t, j.Record(ctx, Batch{ID: "b", Kind: KindFriendAdd, StartedAt: now, FinishedAt: now},
		[]workflow.Result{{Key: "010", Phone: "010", Status: workflow.StatusAlreadyRegistered}}))

	st, ok, err := j.FriendStatus(ctx, "010")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, workflow.StatusAlreadyRegistered, st)

	_, ok, err = j.FriendStatus(ctx, "999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDuplicateBatchRejected(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	b := Batch{ID: "dup", Kind: KindFriendAdd, StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, j.Record(ctx, b, nil))
	assert.Error(t, j.Record(ctx, b, nil))
}
