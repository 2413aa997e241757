package keystore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/authcache/cache"
)

// fakeStore is an in-memory origin with call counting.
type fakeStore struct {
	mu      sync.Mutex
	bundles map[string]*KeyBundle
	apis    map[string]*API
	usage   map[string]*Usage
	owners  map[string][]KeySummary

	bundleCalls atomic.Int64
	failWith    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bundles: make(map[string]*KeyBundle),
		apis:    make(map[string]*API),
		usage:   make(map[string]*Usage),
		owners:  make(map[string][]KeySummary),
	}
}

func (f *fakeStore) GetKeyBundle(_ context.Context, id string) (*KeyBundle, error) {
	f.bundleCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	b, ok := f.bundles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListKeysByOwner(_ context.Context, ownerID string) ([]KeySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[ownerID], nil
}

func (f *fakeStore) GetAPI(_ context.Context, id string) (*API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apis[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetUsage(_ context.Context, keyID string) (*Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usage[keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) putBundle(b *KeyBundle) {
	f.mu.Lock()
	f.bundles[b.Key.ID] = b
	f.mu.Unlock()
}

var _ Store = (*fakeStore)(nil)

func newTestCached(t *testing.T, origin Store, windows cache.Windows) (*CachedStore, *cache.Tiered) {
	t.Helper()
	local, err := cache.NewMemoryTier(windows, 128)
	if err != nil {
		t.Fatalf("NewMemoryTier failed: %v", err)
	}
	tiered, err := cache.NewTiered(nil, local)
	if err != nil {
		t.Fatalf("NewTiered failed: %v", err)
	}
	cached, err := NewCachedStore(origin, tiered, nil)
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	return cached, tiered
}

func testBundle(id, owner string) *KeyBundle {
	return &KeyBundle{
		Key: APIKey{
			ID:      id,
			OwnerID: owner,
			APIID:   "api1",
			KeyHash: HashKey("raw-" + id),
			Name:    "test key",
		},
		API:         API{ID: "api1", OwnerID: owner, Name: "billing"},
		Roles:       []string{"reader"},
		Permissions: []string{"invoices:read"},
	}
}

func TestNewCachedStore_Validation(t *testing.T) {
	origin := newFakeStore()
	_, tiered := newTestCached(t, origin, cache.DefaultWindows())

	if _, err := NewCachedStore(nil, tiered, nil); !errors.Is(err, ErrNilStore) {
		t.Error("expected ErrNilStore")
	}
	if _, err := NewCachedStore(origin, nil, nil); !errors.Is(err, ErrNilCache) {
		t.Error("expected ErrNilCache")
	}
}

func TestCachedStore_ReadThrough(t *testing.T) {
	origin := newFakeStore()
	origin.putBundle(testBundle("k1", "owner1"))
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())
	ctx := context.Background()

	got, err := cached.GetKeyBundle(ctx, "k1")
	if err != nil {
		t.Fatalf("GetKeyBundle failed: %v", err)
	}
	if got.Key.ID != "k1" || got.API.Name != "billing" {
		t.Errorf("unexpected bundle: %+v", got)
	}

	// Second lookup is served from cache.
	if _, err := cached.GetKeyBundle(ctx, "k1"); err != nil {
		t.Fatalf("second GetKeyBundle failed: %v", err)
	}
	if n := origin.bundleCalls.Load(); n != 1 {
		t.Errorf("origin consulted %d times, want 1", n)
	}
}

func TestCachedStore_NegativeCaching(t *testing.T) {
	origin := newFakeStore()
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())
	ctx := context.Background()

	if _, err := cached.GetKeyBundle(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetKeyBundle = %v, want ErrNotFound", err)
	}
	if _, err := cached.GetKeyBundle(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second GetKeyBundle = %v, want ErrNotFound", err)
	}
	if n := origin.bundleCalls.Load(); n != 1 {
		t.Errorf("origin consulted %d times for a confirmed miss, want 1", n)
	}
}

func TestCachedStore_OriginErrorPropagates(t *testing.T) {
	origin := newFakeStore()
	origin.failWith = errors.New("db connection refused")
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())

	_, err := cached.GetKeyBundle(context.Background(), "k1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("origin failure should propagate, got: %v", err)
	}
}

func TestCachedStore_Invalidation(t *testing.T) {
	origin := newFakeStore()
	origin.putBundle(testBundle("k1", "owner1"))
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())
	ctx := context.Background()

	got, err := cached.GetKeyBundle(ctx, "k1")
	if err != nil {
		t.Fatalf("GetKeyBundle failed: %v", err)
	}
	if got.Key.Disabled {
		t.Fatal("test key should start enabled")
	}

	// Disable the key at the origin. The cache keeps serving the old
	// record until invalidated.
	updated := testBundle("k1", "owner1")
	updated.Key.Disabled = true
	origin.putBundle(updated)

	got, _ = cached.GetKeyBundle(ctx, "k1")
	if got.Key.Disabled {
		t.Fatal("cache should still hold the pre-mutation record")
	}

	if err := cached.InvalidateKey(ctx, "k1"); err != nil {
		t.Fatalf("InvalidateKey failed: %v", err)
	}

	got, err = cached.GetKeyBundle(ctx, "k1")
	if err != nil {
		t.Fatalf("GetKeyBundle after invalidation failed: %v", err)
	}
	if !got.Key.Disabled {
		t.Error("invalidation should force a re-fetch of the mutated record")
	}
}

func TestCachedStore_EmptyOwnerListing(t *testing.T) {
	origin := newFakeStore()
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())
	ctx := context.Background()

	keys, err := cached.ListKeysByOwner(ctx, "owner-without-keys")
	if err != nil {
		t.Fatalf("ListKeysByOwner failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty listing, got %d keys", len(keys))
	}
}

func TestCachedStore_StaleServesThenRefreshes(t *testing.T) {
	origin := newFakeStore()
	origin.putBundle(testBundle("k1", "owner1"))

	windows := cache.Windows{Fresh: 30 * time.Millisecond, Stale: time.Hour}
	cached, tiered := newTestCached(t, origin, windows)
	ctx := context.Background()

	if _, err := cached.GetKeyBundle(ctx, "k1"); err != nil {
		t.Fatalf("warm-up GetKeyBundle failed: %v", err)
	}

	// Mutate the origin, then wait for the cached copy to go stale.
	updated := testBundle("k1", "owner1")
	updated.Key.Name = "renamed"
	origin.putBundle(updated)
	time.Sleep(60 * time.Millisecond)

	// The stale read answers immediately with the old record.
	got, err := cached.GetKeyBundle(ctx, "k1")
	if err != nil {
		t.Fatalf("stale GetKeyBundle failed: %v", err)
	}
	if got.Key.Name != "test key" {
		t.Errorf("stale read = %q, want the old record", got.Key.Name)
	}

	// The background refresh lands the new record.
	tiered.Wait()
	got, err = cached.GetKeyBundle(ctx, "k1")
	if err != nil {
		t.Fatalf("post-refresh GetKeyBundle failed: %v", err)
	}
	if got.Key.Name != "renamed" {
		t.Errorf("post-refresh read = %q, want the refreshed record", got.Key.Name)
	}
}

func TestCachedStore_GetAPIAndUsage(t *testing.T) {
	origin := newFakeStore()
	origin.apis["api1"] = &API{ID: "api1", OwnerID: "owner1", Name: "billing"}
	origin.usage["k1"] = &Usage{KeyID: "k1", Requests: 42}
	cached, _ := newTestCached(t, origin, cache.DefaultWindows())
	ctx := context.Background()

	api, err := cached.GetAPI(ctx, "api1")
	if err != nil || api.Name != "billing" {
		t.Errorf("GetAPI = %+v, %v", api, err)
	}

	usage, err := cached.GetUsage(ctx, "k1")
	if err != nil || usage.Requests != 42 {
		t.Errorf("GetUsage = %+v, %v", usage, err)
	}

	if _, err := cached.GetUsage(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUsage for unknown key = %v, want ErrNotFound", err)
	}
}
