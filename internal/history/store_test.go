package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/wake"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func attempt(id, radio string, started time.Time, result wake.Result) wake.Attempt {
	return wake.Attempt{
		ID:       id,
		RadioID:  radio,
		Started:  started,
		Duration: 250 * time.Millisecond,
		Timeout:  2 * time.Second,
		Result:   result,
	}
}

func TestOpenEmpty(t *testing.T) {
	s := openMemory(t)

	records, err := s.List(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecordAndList(t *testing.T) {
	s := openMemory(t)
	ctx := audit.WithActor(context.Background(), "alice")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := attempt("a-1", "radio-01", base, wake.Woken)
	a.ActionIssued = true
	a.Extensions = 2
	s.RecordWake(ctx, a)
	s.RecordWake(ctx, attempt("a-2", "radio-02", base.Add(time.Second), wake.TimedOut))

	failed := attempt("a-3", "radio-01", base.Add(2*time.Second), 0)
	failed.Err = fmt.Errorf("issue reconnect: boom")
	s.RecordWake(ctx, failed)

	all, err := s.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a-3", "a-2", "a-1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	radio1, err := s.List(context.Background(), Query{RadioID: "radio-01"})
	require.NoError(t, err)
	require.Len(t, radio1, 2)

	got := radio1[1]
	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, "woken", got.Result)
	assert.Equal(t, audit.CodeSuccess, got.Code)
	assert.True(t, got.ActionIssued)
	assert.Equal(t, 2, got.Extensions)
	assert.Equal(t, int64(250), got.DurationMs)
	assert.Equal(t, int64(2000), got.TimeoutMs)
	assert.True(t, got.Started.Equal(base))

	assert.Equal(t, "error", radio1[0].Result)
	assert.Equal(t, "issue reconnect: boom", radio1[0].Error)
}

func TestListLimitAndSince(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		s.RecordWake(context.Background(), attempt(fmt.Sprintf("a-%d", i), "radio-01", base.Add(time.Duration(i)*time.Minute), wake.Woken))
	}

	page, err := s.List(context.Background(), Query{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a-9", page[0].ID)

	recent, err := s.List(context.Background(), Query{Since: base.Add(7 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestInsertDuplicateIsPermanent(t *testing.T) {
	s := openMemory(t)
	r := FromAttempt(context.Background(), attempt("dup", "radio-01", time.Now(), wake.Woken))

	require.NoError(t, s.Insert(context.Background(), r))
	err := s.Insert(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestInsertRequiresID(t *testing.T) {
	s := openMemory(t)
	assert.Error(t, s.Insert(context.Background(), Record{RadioID: "radio-01"}))
}

func TestPrune(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.RecordWake(context.Background(), attempt(fmt.Sprintf("a-%d", i), "radio-01", base.Add(time.Duration(i)*time.Hour), wake.Woken))
	}

	n, err := s.Prune(context.Background(), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := s.List(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestFileStoreConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.RecordWake(context.Background(), attempt(fmt.Sprintf("c-%d", i), "radio-01", time.Now(), wake.Woken))
		}(i)
	}
	wg.Wait()

	records, err := s.List(context.Background(), Query{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 20)

	// Reopen sees the same data.
	require.NoError(t, s.Close())
	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()
	records, err = s2.List(context.Background(), Query{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	busy := errors.New("database is locked (5) (SQLITE_BUSY)")
	assert.Equal(t, busy, classify(busy))

	var perm *backoff.PermanentError
	assert.True(t, errors.As(classify(errors.New("UNIQUE constraint failed")), &perm))
}
