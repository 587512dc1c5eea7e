package offline_test

import (
	"context"
	"testing"

	"github.com/shelfsyncapp/shelfsync-server/internal/notify"
	"github.com/shelfsyncapp/shelfsync-server/internal/offline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoingOfflineFlagsPendingAndNotifiesOnce(t *testing.T) {
	rec := &notify.Recorder{}
	m := offline.NewMonitor(func(context.Context) error { return nil }, rec, nil)

	m.SetOnline(context.Background(), false)
	m.SetOnline(context.Background(), false) // duplicate transition is a no-op

	assert.False(t, m.Online())
	assert.True(t, m.PendingSync())

	sent := rec.All()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.SeverityWarning, sent[0].Severity)
}

func TestReconnectRunsExactlyOneCatchUp(t *testing.T) {
	rec := &notify.Recorder{}
	calls := 0
	m := offline.NewMonitor(func(context.Context) error { calls++; return nil }, rec, nil)

	ctx := context.Background()
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)
	m.SetOnline(ctx, true) // duplicate transition is a no-op

	assert.Equal(t, 1, calls)
	assert.False(t, m.PendingSync())

	sent := rec.All()
	require.Len(t, sent, 2)
	assert.Equal(t, notify.SeverityInfo, sent[1].Severity)
}

func TestReconnectWithoutPendingSkipsCatchUp(t *testing.T) {
	calls := 0
	m := offline.NewMonitor(func(context.Context) error { calls++; return nil }, &notify.Recorder{}, nil)

	// online -> online transitions only; nothing pending.
	ctx := context.Background()
	m.SetOnline(ctx, true)
	assert.Equal(t, 0, calls)
}

func TestCatchUpFailureKeepsPending(t *testing.T) {
	m := offline.NewMonitor(func(context.Context) error { return assert.AnError }, &notify.Recorder{}, nil)

	ctx := context.Background()
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)

	assert.True(t, m.PendingSync(), "failed catch-up leaves pendingSync set")

	// Next offline/online cycle retries.
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)
	assert.True(t, m.PendingSync())
}

func TestMarkSyncedClearsPending(t *testing.T) {
	m := offline.NewMonitor(func(context.Context) error { return assert.AnError }, &notify.Recorder{}, nil)

	ctx := context.Background()
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, true)
	require.True(t, m.PendingSync(), "failed catch-up leaves pendingSync set")

	// A later successful cycle (for example a user-driven resync) reports in.
	m.MarkSynced()
	assert.False(t, m.PendingSync())

	// Idempotent with nothing pending.
	m.MarkSynced()
	assert.False(t, m.PendingSync())
}
