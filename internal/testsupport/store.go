package testsupport

import (
	"testing"

	"ytwhisper/internal/config"
	"ytwhisper/internal/history"
)

// MustOpenStore opens the history store configured in cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
