package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, dir string) *Tracker {
	t.Helper()
	tr, err := NewTracker(dir, nil)
	require.NoError(t, err)
	tr.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return tr
}

func TestStartPersistsImmediately(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)

	id, err := tr.Start(Parameters{Query: "category:promotions", Market: "india", Provider: "gemini"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "20240301_123000_"))
	assert.Len(t, id, len("20240301_123000_")+8)
	assert.Equal(t, StatusRunning, tr.Status())
	assert.True(t, tr.CanResume())

	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	require.NoError(t, err)
	var state State
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, id, state.SessionID)
	assert.Equal(t, "india", state.Parameters.Market)
}

func TestOperationsRequireRunningSession(t *testing.T) {
	tr := newTestTracker(t, t.TempDir())

	assert.ErrorIs(t, tr.MarkProcessed("a"), ErrNotRunning)
	assert.ErrorIs(t, tr.UpdateProgress(Progress{Fetched: Int(1)}), ErrNotRunning)
	assert.ErrorIs(t, tr.UpdateResults(Results{Approved: Int(1)}), ErrNotRunning)
	assert.ErrorIs(t, tr.Flush(), ErrNotRunning)
	_, err := tr.Complete()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, tr.IsProcessed("a"))
	assert.Equal(t, Summary{}, tr.Summary())
}

func TestResumeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)

	id, err := tr.Start(Parameters{Query: "older_than:30d", MaxMessages: 500})
	require.NoError(t, err)

	require.NoError(t, tr.MarkProcessed("m2"))
	require.NoError(t, tr.MarkProcessed("m1"))
	require.NoError(t, tr.MarkProcessed("m1"))
	require.NoError(t, tr.UpdateProgress(Progress{TotalFound: Int(10), Fetched: Int(2)}))
	require.NoError(t, tr.UpdateResults(Results{Approved: Int(1), Rejected: Int(1)}))
	require.NoError(t, tr.Flush())

	// unflushed changes are lost by a crash
	require.NoError(t, tr.MarkProcessed("m3"))

	resumed := newTestTracker(t, dir)
	require.True(t, resumed.Load())
	assert.Equal(t, id, resumed.SessionID())
	assert.Equal(t, 500, resumed.Parameters().MaxMessages)
	assert.True(t, resumed.IsProcessed("m1"))
	assert.True(t, resumed.IsProcessed("m2"))
	assert.False(t, resumed.IsProcessed("m3"))

	s := resumed.Summary()
	assert.Equal(t, 10, s.TotalFound)
	assert.Equal(t, 2, s.Fetched)
	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Approved)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 0, s.Flagged)
}

func TestPartialUpdatesLeaveOtherFields(t *testing.T) {
	tr := newTestTracker(t, t.TempDir())
	_, err := tr.Start(Parameters{})
	require.NoError(t, err)

	require.NoError(t, tr.UpdateProgress(Progress{TotalFound: Int(5), Fetched: Int(3)}))
	require.NoError(t, tr.UpdateProgress(Progress{Classified: Int(2)}))
	require.NoError(t, tr.UpdateResults(Results{Flagged: Int(4)}))
	require.NoError(t, tr.UpdateResults(Results{Approved: Int(0)}))

	s := tr.Summary()
	assert.Equal(t, 5, s.TotalFound)
	assert.Equal(t, 3, s.Fetched)
	assert.Equal(t, 2, s.Classified)
	assert.Equal(t, 4, s.Flagged)
	assert.Equal(t, 0, s.Approved)
}

func TestProcessedIDsAreSorted(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)
	_, err := tr.Start(Parameters{})
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, tr.MarkProcessed(id))
	}
	require.NoError(t, tr.Flush())

	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `["a","b","c"]`, string(raw["processed_ids"]))
}

func TestLoadMissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)
	assert.False(t, tr.Load())
	assert.False(t, tr.CanResume())

	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0o600))
	assert.False(t, tr.Load())
	assert.Equal(t, StatusNew, tr.Status())

	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte(`{"processed_ids":[]}`), 0o600))
	assert.False(t, tr.Load())

	// a fresh session replaces the corrupt file
	_, err := tr.Start(Parameters{})
	require.NoError(t, err)
	assert.True(t, newTestTracker(t, dir).Load())
}

func TestComplete(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)

	id, err := tr.Start(Parameters{Query: "q"})
	require.NoError(t, err)
	require.NoError(t, tr.MarkProcessed("m1"))
	require.NoError(t, tr.UpdateResults(Results{Approved: Int(1)}))

	archive, err := tr.Complete()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "completed_state_"+id+"_20240301T123000.json"), archive)
	assert.Equal(t, StatusCompleted, tr.Status())
	assert.False(t, tr.CanResume())
	assert.Equal(t, "", tr.SessionID())
	assert.ErrorIs(t, tr.MarkProcessed("m2"), ErrNotRunning)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	var state State
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, id, state.SessionID)
	require.NotNil(t, state.CompletedAt)
	assert.Equal(t, 1, state.Approved)
	assert.Contains(t, state.Processed, "m1")

	assert.False(t, newTestTracker(t, dir).Load())
}

func TestFlushLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)
	_, err := tr.Start(Parameters{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.MarkProcessed(string(rune('a'+i))))
		require.NoError(t, tr.Flush())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stateFileName, entries[0].Name())
}

func TestDiscard(t *testing.T) {
	dir := t.TempDir()
	tr := newTestTracker(t, dir)
	_, err := tr.Start(Parameters{})
	require.NoError(t, err)

	require.NoError(t, tr.Discard())
	assert.False(t, tr.CanResume())
	assert.Equal(t, StatusNew, tr.Status())
	require.NoError(t, tr.Discard())
}

func TestLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	require.NoError(t, err)

	_, err = AcquireLock(dir)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	again, err := AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
	require.NoError(t, again.Release())
}
