package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testDB(tb testing.TB) *DB {
	db, err := Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func record(id, question string) Record {
	return Record{
		AgentID:  id,
		Name:     "cosmosdb-demo-agent-mcp",
		Model:    "gpt-4o",
		MCPLabel: "cosmosdb",
		Question: question,
	}
}

func TestDB(t *testing.T) {
	const testid = "asst_Yh2kQm9TzX4bLp0aWc7NdR1e"

	t.Run("list-empty", func(t *testing.T) {
		db := testDB(t)
		require.Empty(t, db.List())
	})

	t.Run("save", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(record(testid, "question 1")))

		rec, err := db.Find("asst_Yh2")
		require.NoError(t, err)
		require.Equal(t, testid, rec.AgentID)
		require.Equal(t, "question 1", rec.Question)
		require.False(t, rec.CreatedAt.IsZero())

		require.Len(t, db.List(), 1)
	})

	t.Run("save no id", func(t *testing.T) {
		db := testDB(t)
		require.Error(t, db.Save(record("", "question 1")))
	})

	t.Run("update keeps created at", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(record(testid, "question 1")))
		first, err := db.Find(testid)
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		rec := record(testid, "question 1")
		rec.RunID = "run_Ab12Cd34Ef56"
		rec.Status = "completed"
		require.NoError(t, db.Save(rec))

		got, err := db.Find(testid)
		require.NoError(t, err)
		require.Equal(t, "completed", got.Status)
		require.Equal(t, first.CreatedAt, got.CreatedAt)
		require.True(t, got.UpdatedAt.After(first.UpdatedAt))
		require.Len(t, db.List(), 1)
	})

	t.Run("latest", func(t *testing.T) {
		db := testDB(t)

		_, err := db.Latest()
		require.ErrorIs(t, err, ErrNoMatches)

		older := record(testid, "question 1")
		older.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, db.Save(older))
		require.NoError(t, db.Save(record("asst_Newer0000000", "question 2")))

		head, err := db.Latest()
		require.NoError(t, err)
		require.Equal(t, "asst_Newer0000000", head.AgentID)
	})

	t.Run("find by run id", func(t *testing.T) {
		db := testDB(t)

		rec := record(testid, "question 1")
		rec.RunID = "run_Zq81Lm0Pq2"
		require.NoError(t, db.Save(rec))

		got, err := db.Find("run_Zq8")
		require.NoError(t, err)
		require.Equal(t, testid, got.AgentID)
	})

	t.Run("find short prefix", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(record(testid, "question 1")))
		_, err := db.Find("as")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("find match nothing", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(record(testid, "question 1")))
		_, err := db.Find("asst_nope")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("find match many", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(record(testid, "question 1")))
		require.NoError(t, db.Save(record("asst_Yh2kOther", "question 2")))
		_, err := db.Find("asst_Yh2k")
		require.ErrorIs(t, err, ErrManyMatches)
	})

	t.Run("delete", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(record(testid, "question 1")))
		require.NoError(t, db.Delete("asst_unknown"))
		require.Error(t, db.Delete(""))

		list := db.List()
		require.NotEmpty(t, list)
		for _, item := range list {
			require.NoError(t, db.Delete(item.AgentID))
		}
		require.Empty(t, db.List())
	})

	t.Run("older than", func(t *testing.T) {
		db := testDB(t)

		old := record("asst_Old00000", "question 1")
		old.CreatedAt = time.Now().Add(-48 * time.Hour)
		require.NoError(t, db.Save(old))
		require.NoError(t, db.Save(record(testid, "question 2")))

		list := db.ListOlderThan(24 * time.Hour)
		require.Len(t, list, 1)
		require.Equal(t, "asst_Old00000", list[0].AgentID)
	})

	t.Run("completions", func(t *testing.T) {
		db := testDB(t)

		rec := record(testid, "how many databases")
		rec.RunID = "run_Ax1"
		require.NoError(t, db.Save(rec))
		require.NoError(t, db.Save(record("asst_Other", "other")))

		require.Equal(t, []string{
			fmt.Sprintf("%s\t%s", testid, "how many databases"),
		}, db.Completions("asst_Y"))
		require.Equal(t, []string{
			fmt.Sprintf("%s\t%s", "run_Ax1", "how many databases"),
		}, db.Completions("run_"))
		require.Len(t, db.Completions(""), 3)
	})

	t.Run("compacts the index", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)

		for i := 0; i < compactMinOps; i++ {
			require.NoError(t, db.Save(record(testid, fmt.Sprintf("question %d", i))))
		}
		require.Equal(t, 1, db.ops)
		require.NoError(t, db.Close())

		db2, err := Open(dir)
		require.NoError(t, err)
		rec, err := db2.Find(testid)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("question %d", compactMinOps-1), rec.Question)
		require.NoError(t, db2.Close())
	})

	t.Run("persists to jsonl index", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Save(record(testid, "question 1")))
		require.NoError(t, db.Close())

		db2, err := Open(dir)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, db2.Close())
		})

		rec, err := db2.Find(testid[:8])
		require.NoError(t, err)
		require.Equal(t, testid, rec.AgentID)

		_, err = os.Stat(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
	})

	t.Run("corrupt index", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{nope\n"), 0o600))
		_, err := Open(dir)
		require.ErrorContains(t, err, "could not parse index event")
	})
}

func TestShortID(t *testing.T) {
	for in, want := range map[string]string{
		"asst_Yh2kQm9TzX4bLp0a": "asst_Yh2kQm9T",
		"run_abc":               "run_abc",
		"0123456789abcdef":      "01234567",
		"short":                 "short",
	} {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, ShortID(in))
		})
	}
	require.True(t, IDRegexp.MatchString("see thread_Ab12 for details"))
	require.False(t, IDRegexp.MatchString("nothing here"))
}
