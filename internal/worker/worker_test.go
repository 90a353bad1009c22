package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabrag/internal/model"
)

type fakeReindexer struct {
	files []string
	err   error
}

func (f *fakeReindexer) Reindex(_ context.Context, fileID string) (int, error) {
	f.files = append(f.files, fileID)
	return 3, f.err
}

func jobBody(t *testing.T, fileID string) []byte {
	t.Helper()
	body, err := json.Marshal(model.ReindexJob{FileID: fileID, Reason: "embedding provider error", EnqueuedAt: time.Now()})
	require.NoError(t, err)
	return body
}

func TestHandleReindexesFile(t *testing.T) {
	r := &fakeReindexer{}
	w := NewReindexWorker(nil, r, "q", time.Second, nil, nil)

	require.NoError(t, w.handle(context.Background(), jobBody(t, "f1")))
	assert.Equal(t, []string{"f1"}, r.files)
}

func TestHandleRejectsMalformedJob(t *testing.T) {
	r := &fakeReindexer{}
	w := NewReindexWorker(nil, r, "q", time.Second, nil, nil)

	assert.ErrorIs(t, w.handle(context.Background(), []byte("{not json")), errMalformedJob)
	assert.ErrorIs(t, w.handle(context.Background(), []byte(`{"reason":"x"}`)), errMalformedJob)
	assert.Empty(t, r.files)
}

func TestHandleReturnsReindexError(t *testing.T) {
	cause := errors.New("index offline")
	w := NewReindexWorker(nil, &fakeReindexer{err: cause}, "q", time.Second, nil, nil)

	err := w.handle(context.Background(), jobBody(t, "f1"))
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, errMalformedJob)
}

type countingSweep struct {
	calls atomic.Int32
}

func (c *countingSweep) ReindexPending(context.Context, time.Duration, int) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestSweeperRunsPeriodically(t *testing.T) {
	c := &countingSweep{}
	s := NewSweeper(c, 5*time.Millisecond, time.Minute, 10, nil)
	s.Start(context.Background())
	defer s.Close()

	assert.Eventually(t, func() bool { return c.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSweeperDisabled(t *testing.T) {
	c := &countingSweep{}
	s := NewSweeper(c, 0, time.Minute, 10, nil)
	s.Start(context.Background())
	s.Close()
	assert.Zero(t, c.calls.Load())
}
