package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoverer struct {
	calls int
	err   error
}

func (f *fakeRecoverer) RecoverPending(context.Context) error {
	f.calls++
	return f.err
}

func TestReminderSweepRunsRecovery(t *testing.T) {
	recoverer := &fakeRecoverer{}
	job := NewReminderSweepJob(recoverer, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, recoverer.calls)
}

func TestReminderSweepPropagatesError(t *testing.T) {
	boom := errors.New("store down")
	job := NewReminderSweepJob(&fakeRecoverer{err: boom}, nil)

	err := job.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reminder sweep")
}

func TestReminderSweepIdentity(t *testing.T) {
	job := NewReminderSweepJob(&fakeRecoverer{}, nil)

	assert.Equal(t, "reminder_sweep", job.Name())
	assert.NotEmpty(t, job.Description())
}
