package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type source struct {
	mu      sync.Mutex
	snap    observer.Snapshot
	updated atomic.Bool
}

func (s *source) Snapshot() observer.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *source) IsUpdated() bool { return s.updated.Swap(false) }

func (s *source) add(obs ...observer.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Observations = append(s.snap.Observations, obs...)
	s.updated.Store(true)
}

type memSink struct {
	mu      sync.Mutex
	batches []*Batch
	err     error
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Send(ctx context.Context, b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return s.err
}

func (s *memSink) Close() error { return nil }

func (s *memSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

var (
	t0      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dropbox = process.Identity{Kind: process.KindApplication, Name: "Dropbox", BundleID: "com.getdropbox.dropbox"}
)

func obs(sec int) observer.Observation {
	return observer.Observation{
		Time:       t0.Add(time.Duration(sec) * time.Second),
		Process:    dropbox,
		Action:     rule.ActionBlock,
		Reason:     "Cloud sync",
		RemoteHost: "dropbox.com",
		RemotePort: 443,
	}
}

func TestExportIncremental(t *testing.T) {
	src := &source{}
	sink := &memSink{}
	e := NewExporter(src, SinksOption(sink))

	src.add(obs(1), obs(2))
	b, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Len(t, b.Observations, 2)

	src.add(obs(3))
	b2, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, b2.ID)
	require.Len(t, b2.Observations, 1)
	assert.Equal(t, obs(3).Time, b2.Observations[0].Time)

	b3, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b3.Observations)
	assert.Equal(t, 3, sink.len())
}

func TestExportSinkFailure(t *testing.T) {
	failing := &memSink{err: errors.New("down")}
	ok := &memSink{}
	e := NewExporter(&source{}, SinksOption(failing, ok))

	_, err := e.Export(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, ok.len())
}

func TestRunSkipsIdleIntervals(t *testing.T) {
	src := &source{}
	sink := &memSink{}
	e := NewExporter(src, SinksOption(sink), IntervalOption(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sink.len())

	src.add(obs(1))
	assert.Eventually(t, func() bool { return sink.len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestHTTPSink(t *testing.T) {
	var (
		mu    sync.Mutex
		got   Batch
		token string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		token = r.Header.Get("X-Token")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := HTTPSink(srv.URL, HeaderHTTPSinkOption(http.Header{"X-Token": []string{"secret"}}))
	defer sink.Close()

	b := &Batch{ID: "b1", Snapshot: observer.Snapshot{Time: t0, Observations: []observer.Observation{obs(1)}}}
	require.NoError(t, sink.Send(context.Background(), b))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "secret", token)
	assert.Equal(t, "b1", got.ID)
	require.Len(t, got.Observations, 1)
	assert.Equal(t, "dropbox.com", got.Observations[0].RemoteHost)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	assert.Error(t, HTTPSink(failing.URL).Send(context.Background(), b))
}

func TestSQLiteSink(t *testing.T) {
	sink, err := SQLiteSink(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	defer sink.Close()

	b := &Batch{
		ID: "b1",
		Snapshot: observer.Snapshot{
			Time:   t0,
			Totals: observer.Totals{BlockedFlows: 2},
			Processes: []observer.ProcessStats{
				{Process: dropbox, Count: 2, BytesBlocked: 2048, LastSeen: t0},
			},
			Observations: []observer.Observation{obs(1), obs(2)},
		},
	}
	require.NoError(t, sink.Send(context.Background(), b))

	db := sink.(*sqliteSink).db
	var batch batchRecord
	require.NoError(t, db.First(&batch, "id = ?", "b1").Error)
	assert.Equal(t, uint64(2), batch.BlockedFlows)

	var procs []processRecord
	require.NoError(t, db.Find(&procs).Error)
	require.Len(t, procs, 1)
	assert.Equal(t, "com.getdropbox.dropbox", procs[0].ProcessID)
	assert.Equal(t, uint64(2048), procs[0].BytesBlocked)

	var n int64
	require.NoError(t, db.Model(&observationRecord{}).Where("batch_id = ?", "b1").Count(&n).Error)
	assert.Equal(t, int64(2), n)

	// batch ids are unique
	err = sink.Send(context.Background(), b)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, gorm.ErrRecordNotFound))
}
