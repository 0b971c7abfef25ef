package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCacheSetGet(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set("market:137:USDC", []byte(`{"id":"USDC"}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, hit, err := store.Get("market:137:USDC")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(value) != `{"id":"USDC"}` {
		t.Fatalf("unexpected value %s", value)
	}

	if _, hit, _ := store.Get("market:137:WETH"); hit {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set("k", []byte(`1`), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	if _, hit, err := store.Get("k"); err != nil || hit {
		t.Fatalf("expected expired entry to miss, hit=%v err=%v", hit, err)
	}
	if err := store.Prune(); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
}

func TestCacheOverwrite(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set("k", []byte(`old`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("k", []byte(`new`), time.Minute); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	value, hit, err := store.Get("k")
	if err != nil || !hit {
		t.Fatalf("Get failed: hit=%v err=%v", hit, err)
	}
	if string(value) != "new" {
		t.Fatalf("expected latest write, got %s", value)
	}
}

func TestCacheNilStoreIsSafe(t *testing.T) {
	var store *Store
	if err := store.Set("k", []byte(`1`), time.Minute); err != nil {
		t.Fatalf("nil Set should no-op: %v", err)
	}
	if _, hit, err := store.Get("k"); err != nil || hit {
		t.Fatalf("nil Get should miss: hit=%v err=%v", hit, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close should no-op: %v", err)
	}
}

func TestCacheConcurrentSet(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "cache.db")
	lockPath := filepath.Join(tmp, "cache.lock")

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()
			for i := 0; i < 20; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerID, i)
				if err := store.Set(key, []byte(`{"ok":true}`), time.Minute); err != nil {
					errCh <- fmt.Errorf("worker %d set %d: %w", workerID, i, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}
