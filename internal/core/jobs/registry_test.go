package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/RepoScribe/internal/models"
)

func TestRegistryOpenGetClose(t *testing.T) {
	r := NewRegistry(&fakeClient{}, Options{PollInterval: 5 * time.Millisecond}, 8, time.Minute)
	defer r.Shutdown()

	id, ctrl := r.Open("sub:1", testRepo)
	require.NotEmpty(t, id)

	got, err := r.Get("sub:1", id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	_, err = r.Get("sub:2", id)
	assert.ErrorIs(t, err, ErrViewNotFound)
	assert.ErrorIs(t, r.Close("sub:2", id), ErrViewNotFound)

	require.NoError(t, r.Close("sub:1", id))
	_, err = r.Get("sub:1", id)
	assert.ErrorIs(t, err, ErrViewNotFound)

	err = ctrl.Generate(context.Background(), testSession, GenerateRequest{Consent: true})
	assert.ErrorIs(t, err, ErrViewClosed)
}

func TestRegistryEvictionClosesController(t *testing.T) {
	client := &fakeClient{submitID: "1"}
	r := NewRegistry(client, Options{PollInterval: 5 * time.Millisecond}, 1, time.Minute)
	defer r.Shutdown()

	_, first := r.Open("sub:1", testRepo)
	require.NoError(t, first.Generate(context.Background(), testSession, GenerateRequest{Consent: true}))

	r.Open("sub:1", testRepo)
	assert.Equal(t, 1, r.Len())
	assert.ErrorIs(t, first.Generate(context.Background(), testSession, GenerateRequest{Consent: true}), ErrViewClosed)

	time.Sleep(10 * time.Millisecond)
	polls := client.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, client.polls.Load())
}

// stallingLedger blocks terminal-status writes until released.
type stallingLedger struct {
	*fakeLedger
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (l *stallingLedger) RecordJobStatus(context.Context, models.ID, models.JobStatus, time.Time) error {
	l.once.Do(func() { close(l.entered) })
	<-l.release
	return nil
}

func TestRegistryEvictionDoesNotWaitForLedgerWrites(t *testing.T) {
	ledger := &stallingLedger{fakeLedger: &fakeLedger{}, entered: make(chan struct{}), release: make(chan struct{})}
	client := &fakeClient{submitID: "3", reports: []models.JobStatusReport{completedReport()}}
	r := NewRegistry(client, Options{PollInterval: 5 * time.Millisecond, Ledger: ledger}, 1, time.Minute)
	defer r.Shutdown()
	defer close(ledger.release)

	_, first := r.Open("sub:1", testRepo)
	require.NoError(t, first.Generate(context.Background(), testSession, GenerateRequest{Consent: true}))

	select {
	case <-ledger.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("terminal status was never recorded")
	}

	done := make(chan string)
	go func() {
		id, _ := r.Open("sub:1", testRepo)
		_, err := r.Get("sub:1", id)
		assert.NoError(t, err)
		done <- id
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry stalled behind an evicted view's ledger write")
	}
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, StateCompleted, first.State())
}

func TestRegistryViewsIndependent(t *testing.T) {
	r := NewRegistry(&fakeClient{submitID: "2"}, Options{PollInterval: 5 * time.Millisecond}, 8, time.Minute)
	defer r.Shutdown()

	_, a := r.Open("sub:1", testRepo)
	_, b := r.Open("sub:1", testRepo)
	require.NoError(t, a.Generate(context.Background(), testSession, GenerateRequest{Consent: true}))

	assert.Equal(t, StatePolling, a.State())
	assert.Equal(t, StateIdle, b.State())
}
