package journal_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
)

type storeFactory func(t *testing.T) journal.Store

func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_assigns_seq_and_timestamp", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		r1, err := store.Append(journal.Record{RunID: "run-1", EventID: "e1", Kind: journal.KindQueued})
		require.NoError(t, err)
		r2, err := store.Append(journal.Record{RunID: "run-1", EventID: "e1", Kind: journal.KindStarted})
		require.NoError(t, err)

		assert.Greater(t, r2.Seq, r1.Seq)
		assert.False(t, r1.Timestamp.IsZero())
	})

	t.Run(name+"/List_by_run_in_order", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		kinds := []journal.Kind{journal.KindQueued, journal.KindStarted, journal.KindRetry, journal.KindCompleted}
		for i, k := range kinds {
			_, err := store.Append(journal.Record{
				RunID:    "run-1",
				EventID:  "e1",
				DebugKey: "save",
				Kind:     k,
				Attempt:  i,
				Detail:   string(k),
			})
			require.NoError(t, err)
		}
		_, err := store.Append(journal.Record{RunID: "run-2", EventID: "e2", Kind: journal.KindQueued})
		require.NoError(t, err)

		records, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, records, len(kinds))
		for i, r := range records {
			assert.Equal(t, kinds[i], r.Kind)
			assert.Equal(t, "save", r.DebugKey)
			assert.Equal(t, i, r.Attempt)
			assert.Equal(t, string(kinds[i]), r.Detail)
		}

		all, err := store.List("")
		require.NoError(t, err)
		assert.Len(t, all, len(kinds)+1)
	})

	t.Run(name+"/List_empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		records, err := store.List("missing")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run(name+"/ListByEvent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for _, id := range []string{"a", "b", "a"} {
			_, err := store.Append(journal.Record{RunID: "run-1", EventID: id, Kind: journal.KindQueued})
			require.NoError(t, err)
		}

		records, err := store.ListByEvent("a")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run(name+"/Count", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for _, run := range []string{"run-1", "run-1", "run-2"} {
			_, err := store.Append(journal.Record{RunID: run, EventID: "e", Kind: journal.KindQueued})
			require.NoError(t, err)
		}

		n, err := store.Count("run-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.Count("")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run(name+"/Timestamp_preserved", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		_, err := store.Append(journal.Record{RunID: "run-1", EventID: "e", Kind: journal.KindError, Timestamp: ts})
		require.NoError(t, err)

		records, err := store.List("run-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, ts.Equal(records[0].Timestamp))
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())
		assert.NoError(t, store.Close())

		_, err := store.Append(journal.Record{RunID: "run-1"})
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.List("run-1")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.ListByEvent("e")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.Count("")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		const goroutines = 20
		const perGoroutine = 10

		var wg sync.WaitGroup
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					_, _ = store.Append(journal.Record{RunID: "run-1", EventID: "e", Kind: journal.KindStarted})
					_, _ = store.List("run-1")
				}
			}()
		}
		wg.Wait()

		n, err := store.Count("run-1")
		require.NoError(t, err)
		assert.Equal(t, goroutines*perGoroutine, n)
	})
}

func TestStores(t *testing.T) {
	storeContractTest(t, "Memory", func(t *testing.T) journal.Store {
		return journal.NewMemoryStore()
	})
	storeContractTest(t, "SQLite", func(t *testing.T) journal.Store {
		store, err := journal.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	store1, err := journal.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	_, err = store1.Append(journal.Record{RunID: "run-1", EventID: "e1", Kind: journal.KindCompleted, Detail: "42"})
	require.NoError(t, err)
	require.NoError(t, store1.Close())

	store2, err := journal.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	records, err := store2.List("run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].Detail)
	assert.Equal(t, journal.KindCompleted, records[0].Kind)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := journal.NewSQLiteStore("/nonexistent/path/journal.db")
	assert.Error(t, err)
}
