package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/hce-card/pkg/bridge"
	"github.com/gregLibert/hce-card/pkg/hce"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j, _ := openTemp(t)

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, j.Record(ctx, Entry{
		At:       base,
		Link:     "pipe",
		Kind:     hce.KindSelectAID.String(),
		Command:  hce.SelectAIDCommand(),
		Response: hce.Dispatch(hce.SelectAIDCommand()),
		Elapsed:  150 * time.Microsecond,
	}))
	require.NoError(t, j.Record(ctx, Entry{
		At:     base.Add(time.Second),
		Link:   "pipe",
		Kind:   "DEACTIVATED",
		Reason: hce.DeactivationDeselected.String(),
	}))

	got, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "DEACTIVATED", got[0].Kind)
	assert.Equal(t, "DESELECTED", got[0].Reason)
	assert.Empty(t, got[0].Command)
	assert.True(t, got[0].At.Equal(base.Add(time.Second)))

	assert.Equal(t, "SELECT AID", got[1].Kind)
	assert.Equal(t, hce.SelectAIDCommand(), got[1].Command)
	assert.Equal(t, hce.Dispatch(hce.SelectAIDCommand()), got[1].Response)
	assert.Equal(t, 150*time.Microsecond, got[1].Elapsed)
	assert.Less(t, got[1].ID, got[0].ID)

	limited, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j, _ := openTemp(t)

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(ctx, Entry{At: base.Add(time.Duration(i) * time.Hour), Link: "l", Kind: "UNKNOWN"}))
	}

	n, err := j.Prune(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestOpenSetsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	j, path := openTemp(t)

	var version int
	require.NoError(t, j.db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version))
	assert.Equal(t, len(migrations), version)
	require.NoError(t, j.Close())

	// Reopening an up-to-date journal is a no-op.
	again, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	j, path := openTemp(t)
	_, err := j.db.ExecContext(ctx, `PRAGMA user_version = 99;`)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = Open(ctx, path)
	assert.Error(t, err)
}

func TestRecorderObserve(t *testing.T) {
	ctx := context.Background()
	j, _ := openTemp(t)

	r := NewRecorder(j, nil, nil, 4)
	r.Start(ctx)

	now := time.UnixMilli(1_700_000_000_000)
	r.Observe(bridge.Event{
		Time:     now,
		Link:     "tcp:127.0.0.1:5000",
		Type:     bridge.MsgCommand,
		Command:  hce.ReadRecordCommand(),
		Response: hce.Dispatch(hce.ReadRecordCommand()),
	})
	r.Observe(bridge.Event{
		Time:   now.Add(time.Millisecond),
		Link:   "tcp:127.0.0.1:5000",
		Type:   bridge.MsgDeactivated,
		Reason: hce.DeactivationLinkLoss,
	})
	r.Close()

	got, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DEACTIVATED", got[0].Kind)
	assert.Equal(t, "LINK_LOSS", got[0].Reason)
	assert.Equal(t, "READ RECORD", got[1].Kind)
	assert.Equal(t, "tcp:127.0.0.1:5000", got[1].Link)
}
