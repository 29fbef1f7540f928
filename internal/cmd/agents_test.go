package cmd

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/cosmos-agent/internal/storage"
)

// seedLedger saves records into the ledger of rt and returns once the
// ledger is closed again.
func seedLedger(t *testing.T, rt *runtime, records ...storage.Record) {
	t.Helper()
	store, err := openLocalStore(rt.cfg.CachePath)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, store.DB.Save(rec))
	}
	require.NoError(t, store.Close())
}

func ledgerIDs(t *testing.T, rt *runtime) []string {
	t.Helper()
	store, err := openLocalStore(rt.cfg.CachePath)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	var ids []string
	for _, rec := range store.DB.List() {
		ids = append(ids, rec.AgentID)
	}
	return ids
}

func TestAgentsList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		rt := newTestRuntime(t, http.NewServeMux())

		stdout, stderr, err := execute(t, rt, "agents", "list", "--raw")
		require.NoError(t, err)
		require.Empty(t, stdout)
		require.Contains(t, stderr, "No agents found.")
	})

	t.Run("raw", func(t *testing.T) {
		rt := newTestRuntime(t, http.NewServeMux())
		seedLedger(t, rt,
			storage.Record{AgentID: "asst_old", Question: "first", Status: "completed", CreatedAt: time.Now().Add(-time.Hour)},
			storage.Record{AgentID: "asst_new", Question: "second"},
		)

		stdout, _, err := execute(t, rt, "agents", "list", "--raw")
		require.NoError(t, err)
		require.Regexp(t, `(?s)asst_new\tsecond\t-\t.*\nasst_old\tfirst\tcompleted\t`, stdout)
	})
}

func TestAgentsDelete(t *testing.T) {
	t.Run("by prefix and run id", func(t *testing.T) {
		svc := newFakeService(t)
		rt := newTestRuntime(t, svc.mux)
		seedLedger(t, rt,
			storage.Record{AgentID: "asst_abc123", Endpoint: rt.cfg.Endpoint},
			storage.Record{AgentID: "asst_xyz789", RunID: "run_xyz789"},
			storage.Record{AgentID: "asst_keep"},
		)

		stdout, _, err := execute(t, rt, "agents", "delete", "asst_abc", "run_xyz789")
		require.NoError(t, err)
		require.Equal(t, []string{"asst_abc123", "asst_xyz789"}, svc.deletedAgents())
		require.Contains(t, stdout, "DELETED")
		require.Equal(t, []string{"asst_keep"}, ledgerIDs(t, rt))
	})

	t.Run("already gone remotely", func(t *testing.T) {
		svc := newFakeService(t)
		rt := newTestRuntime(t, svc.mux)
		seedLedger(t, rt, storage.Record{AgentID: "asst_gone"})

		_, _, err := execute(t, rt, "agents", "delete", "asst_gone", "--quiet")
		require.NoError(t, err)
		require.Empty(t, svc.deletedAgents())
		require.Empty(t, ledgerIDs(t, rt))
	})

	t.Run("unknown id", func(t *testing.T) {
		svc := newFakeService(t)
		rt := newTestRuntime(t, svc.mux)

		_, _, err := execute(t, rt, "agents", "delete", "asst_nope")
		require.ErrorIs(t, err, storage.ErrNoMatches)
		require.Empty(t, svc.deletedAgents())
	})

	t.Run("remote failure keeps the record", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("DELETE "+projectPath+"/assistants/{id}", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"code":"forbidden","message":"nope"}}`, http.StatusForbidden)
		})
		rt := newTestRuntime(t, mux)
		seedLedger(t, rt, storage.Record{AgentID: "asst_abc123"})

		_, _, err := execute(t, rt, "agents", "delete", "asst_abc123")
		require.ErrorContains(t, err, "403")
		require.Equal(t, []string{"asst_abc123"}, ledgerIDs(t, rt))
	})
}

func TestAgentsPrune(t *testing.T) {
	t.Run("requires older-than", func(t *testing.T) {
		rt := newTestRuntime(t, http.NewServeMux())

		_, _, err := execute(t, rt, "agents", "prune")
		require.ErrorContains(t, err, "missing --older-than")
	})

	t.Run("deletes old agents", func(t *testing.T) {
		svc := newFakeService(t)
		rt := newTestRuntime(t, svc.mux)
		seedLedger(t, rt,
			storage.Record{AgentID: "asst_old", CreatedAt: time.Now().Add(-72 * time.Hour)},
			storage.Record{AgentID: "asst_new"},
		)

		_, _, err := execute(t, rt, "agents", "prune", "--older-than", "2d", "--yes")
		require.NoError(t, err)
		require.Equal(t, []string{"asst_old"}, svc.deletedAgents())
		require.Equal(t, []string{"asst_new"}, ledgerIDs(t, rt))
	})

	t.Run("nothing to prune", func(t *testing.T) {
		svc := newFakeService(t)
		rt := newTestRuntime(t, svc.mux)
		seedLedger(t, rt, storage.Record{AgentID: "asst_new"})

		_, stderr, err := execute(t, rt, "agents", "prune", "--older-than", "7d", "--yes")
		require.NoError(t, err)
		require.Contains(t, stderr, "No agents found.")
		require.Empty(t, svc.deletedAgents())
	})
}
