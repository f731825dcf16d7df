package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/enrichment"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/store"
)

type recorder struct {
	calls     []string
	filter    store.ListingFilter
	batchSize int
	enrichErr error
}

func (r *recorder) EnrichAll(_ context.Context, f store.ListingFilter) (*enrichment.BatchReport, error) {
	r.calls = append(r.calls, "enrich")
	r.filter = f
	if r.enrichErr != nil {
		return nil, r.enrichErr
	}
	return &enrichment.BatchReport{Total: 2, Succeeded: 2}, nil
}

func (r *recorder) RescoreAll(_ context.Context, batchSize int) (*scoring.RescoreReport, error) {
	r.calls = append(r.calls, "rescore")
	r.batchSize = batchSize
	return &scoring.RescoreReport{Total: 2, Scored: 2}, nil
}

func TestCronSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"07:00", "0 7 * * *", false},
		{"19:30", "30 19 * * *", false},
		{" 0:05 ", "5 0 * * *", false},
		{"24:00", "", true},
		{"7", "", true},
		{"07:60", "", true},
		{"aa:bb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CronSpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	r := &recorder{}
	s, err := New([]string{"07:00", "19:00"}, "Europe/Madrid", r, r, 50)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	_, err = New([]string{"07:00"}, "Mars/Olympus", r, r, 50)
	assert.Error(t, err)

	_, err = New(nil, "Europe/Madrid", r, r, 50)
	assert.Error(t, err)

	_, err = New([]string{"7am"}, "Europe/Madrid", r, r, 50)
	assert.Error(t, err)
}

func TestRun_EnrichThenRescore(t *testing.T) {
	r := &recorder{}
	s, err := New([]string{"07:00"}, "Europe/Madrid", r, r, 25)
	require.NoError(t, err)

	s.Run(context.Background())
	assert.Equal(t, []string{"enrich", "rescore"}, r.calls)
	assert.True(t, r.filter.OnlyPending)
	assert.Equal(t, 25, r.batchSize)
}

func TestRun_RescoresAfterEnrichFailure(t *testing.T) {
	r := &recorder{enrichErr: errors.New("store down")}
	s, err := New([]string{"07:00"}, "Europe/Madrid", r, r, 50)
	require.NoError(t, err)

	s.Run(context.Background())
	assert.Equal(t, []string{"enrich", "rescore"}, r.calls)
}

// blockingEnricher holds EnrichAll until its context ends.
type blockingEnricher struct {
	recorder
	started chan struct{}
	err     chan error
}

func (b *blockingEnricher) EnrichAll(ctx context.Context, _ store.ListingFilter) (*enrichment.BatchReport, error) {
	close(b.started)
	<-ctx.Done()
	b.err <- ctx.Err()
	return nil, ctx.Err()
}

func TestStop_CancelsRunningJob(t *testing.T) {
	b := &blockingEnricher{started: make(chan struct{}), err: make(chan error, 1)}
	s, err := New([]string{"07:00"}, "Europe/Madrid", b, &b.recorder, 50)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		s.runJob()
		close(finished)
	}()
	<-b.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s.Stop(ctx)

	select {
	case got := <-b.err:
		assert.ErrorIs(t, got, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("running job was not canceled by Stop")
	}
	<-finished
	assert.Equal(t, []string{"rescore"}, b.calls, "rescore is still attempted after a canceled enrichment")
}

func TestLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = Acquire(path)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Release())
	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
	assert.NoError(t, second.Release(), "release is idempotent")
}

func TestDefaultLockPath(t *testing.T) {
	assert.Equal(t, "landscore_scheduler.lock", filepath.Base(DefaultLockPath()))
}
