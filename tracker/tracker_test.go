package tracker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/validation"
)

func testDecision(pipelineID string) validation.Decision {
	return validation.Decision{
		PipelineID: pipelineID,
		ItemID:     "item-1",
		Action:     "recommend",
	}
}

func TestTrackRequestCreatesPendingRecord(t *testing.T) {
	tr := New(nil, nil)
	tr.TrackRequest("p1", map[string]string{"context_type": "browse"})

	record := tr.GetStatus("p1")
	require.NotNil(t, record)
	assert.Equal(t, StatusPending, record.Status)
	assert.False(t, record.RequestedAt.IsZero())
	assert.Nil(t, record.DecidedAt)
}

func TestTrackRequestOverwritesPrior(t *testing.T) {
	tr := New(nil, nil)
	tr.TrackRequest("p1", map[string]string{"attempt": "1"})
	tr.TrackDecision("p1", testDecision("p1"))
	tr.TrackRequest("p1", map[string]string{"attempt": "2"})

	record := tr.GetStatus("p1")
	require.NotNil(t, record)
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, "2", record.Context["attempt"])
	assert.Nil(t, record.Decision)
}

func TestUnknownPipelineEventsAreNoOps(t *testing.T) {
	tr := New(nil, nil)

	tr.TrackDecision("ghost", testDecision("ghost"))
	tr.TrackValidation("ghost", validation.ValidationResult{})
	tr.TrackCompletion("ghost", "success")

	assert.Nil(t, tr.GetStatus("ghost"))
	assert.Empty(t, tr.GetHistory("ghost"))
	assert.Equal(t, 0, tr.ActiveCount())
}

func TestLifecycleRoundTrip(t *testing.T) {
	tr := New(nil, nil)

	tr.TrackRequest("p1", map[string]string{"context_type": "browse"})
	tr.TrackDecision("p1", testDecision("p1"))
	tr.TrackValidation("p1", validation.ValidationResult{HasIssues: false})
	tr.TrackCompletion("p1", "success")

	assert.Nil(t, tr.GetStatus("p1"))

	history := tr.GetHistory("p1")
	require.Len(t, history, 1)
	record := history[0]

	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, "success", record.Result)
	require.NotNil(t, record.DecidedAt)
	require.NotNil(t, record.ValidatedAt)
	require.NotNil(t, record.CompletedAt)

	// timestamps advance monotonically through the lifecycle
	assert.False(t, record.DecidedAt.Before(record.RequestedAt))
	assert.False(t, record.ValidatedAt.Before(*record.DecidedAt))
	assert.False(t, record.CompletedAt.Before(*record.ValidatedAt))
}

func TestHistoryAppendsInCompletionOrder(t *testing.T) {
	tr := New(nil, nil)

	for _, result := range []string{"first", "second", "third"} {
		tr.TrackRequest("p1", nil)
		tr.TrackCompletion("p1", result)
	}

	history := tr.GetHistory("p1")
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Result)
	assert.Equal(t, "second", history[1].Result)
	assert.Equal(t, "third", history[2].Result)
}

func TestGetStatusReturnsCopy(t *testing.T) {
	tr := New(nil, nil)
	tr.TrackRequest("p1", map[string]string{"key": "original"})

	record := tr.GetStatus("p1")
	record.Context["key"] = "mutated"
	record.Status = StatusCompleted

	fresh := tr.GetStatus("p1")
	assert.Equal(t, "original", fresh.Context["key"])
	assert.Equal(t, StatusPending, fresh.Status)
}

func TestAuditLogWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	audit, err := OpenAuditLog(path)
	require.NoError(t, err)
	defer audit.Close()

	tr := New(audit, nil)
	tr.TrackRequest("p1", nil)
	tr.TrackDecision("p1", testDecision("p1"))
	tr.TrackCompletion("p1", "success")

	records, err := audit.List("p1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].PipelineID)
	assert.Equal(t, StatusCompleted, records[0].Status)
	assert.Equal(t, "success", records[0].Result)

	other, err := audit.List("p2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAuditAppendRejectsIncompleteRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	audit, err := OpenAuditLog(path)
	require.NoError(t, err)
	defer audit.Close()

	err = audit.Append(&DecisionRecord{PipelineID: "p1"})
	require.Error(t, err)
}
