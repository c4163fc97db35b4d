package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/jobs"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Error(t, s.SaveJob(ctx, &jobs.ReconcileJob{}))

	for i, j := range []*jobs.ReconcileJob{
		{JobID: "j1", SessionID: "s1", UserID: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", SessionID: "s1", UserID: "u1", Status: jobs.JobStatusFailed},
		{JobID: "j3", SessionID: "s2", UserID: "u2", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveJob(ctx, j))
	}

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	got.Status = jobs.JobStatusRunning
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, again.Status, "GetJob must return a copy")

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	list, err := s.ListJobs(ctx, jobs.JobFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "j2", list[0].JobID)

	list, err = s.ListJobs(ctx, jobs.JobFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = s.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "j2", list[0].JobID)

	list, err = s.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.UpdateJobStatus(ctx, "j3", jobs.JobStatusFailed, "boom"))
	got, err = s.GetJob(ctx, "j3")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
}
