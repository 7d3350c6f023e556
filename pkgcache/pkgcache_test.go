package pkgcache

import (
	"context"
	"errors"
	"testing"
)

func TestLocalCacheHitSkipsFetch(t *testing.T) {
	l := NewLocal()
	l.Set("/v2/deps/abc", []byte(`{"x":"1"}`))

	fetchCalls := 0
	v, err := WithLocalCacheData(l, "/v2/deps/abc", func() ([]byte, error) {
		fetchCalls++
		return nil, errors.New("should not be called")
	}, func(b []byte) (string, error) {
		return string(b), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 0 {
		t.Fatalf("expected 0 fetch calls on cache hit, got %d", fetchCalls)
	}
	if v != `{"x":"1"}` {
		t.Fatalf("unexpected value: %q", v)
	}
}

func TestLocalCacheMissFetchesAndStores(t *testing.T) {
	l := NewLocal()
	fetchCalls := 0
	_, err := WithLocalCacheData(l, "/v2/deps/abc", func() ([]byte, error) {
		fetchCalls++
		return []byte("data"), nil
	}, func(b []byte) (string, error) {
		return string(b), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 1 {
		t.Fatalf("expected 1 fetch call, got %d", fetchCalls)
	}
	if cached, ok := l.Get("/v2/deps/abc"); !ok || string(cached) != "data" {
		t.Fatalf("expected fetched data to be cached, got %q, %v", cached, ok)
	}
}

func TestLocalCacheTransformFailureRefetches(t *testing.T) {
	l := NewLocal()
	l.Set("/v2/deps/abc", []byte("corrupt"))

	fetchCalls := 0
	transformCalls := 0
	v, err := WithLocalCacheData(l, "/v2/deps/abc", func() ([]byte, error) {
		fetchCalls++
		return []byte("good"), nil
	}, func(b []byte) (string, error) {
		transformCalls++
		if string(b) == "corrupt" {
			return "", errors.New("corrupt cache entry")
		}
		return string(b), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 1 {
		t.Fatalf("expected a live refetch after transform failure, got %d fetch calls", fetchCalls)
	}
	if v != "good" {
		t.Fatalf("expected refetched value, got %q", v)
	}
	if transformCalls != 2 {
		t.Fatalf("expected transform to run on both the cached and fetched data, got %d", transformCalls)
	}
}

func TestPersistentIsCachedTrueOnlyForNonEmptyData(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	p := NewPersistent(store)

	if cached, _ := p.IsCached(ctx, "/v2/mod/x"); cached {
		t.Fatal("expected no entry to report as cached")
	}

	store.Put(ctx, Entry{Request: "/v2/mod/x", Data: nil})
	if cached, _ := p.IsCached(ctx, "/v2/mod/x"); cached {
		t.Fatal("expected empty-data entry to not be cached")
	}

	store.Put(ctx, Entry{Request: "/v2/mod/x", Data: []byte("payload")})
	if cached, _ := p.IsCached(ctx, "/v2/mod/x"); !cached {
		t.Fatal("expected non-empty entry to report as cached")
	}
}

func TestWithCacheDataMissThenHit(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	p := NewPersistent(store)

	fetchCalls := 0
	fetch := func() ([]byte, error) {
		fetchCalls++
		return []byte("payload"), nil
	}
	transform := func(b []byte) (string, error) { return string(b), nil }

	if _, err := WithCacheData(ctx, p, "/v2/mod/x", fetch, transform); err != nil {
		t.Fatal(err)
	}
	if _, err := WithCacheData(ctx, p, "/v2/mod/x", fetch, transform); err != nil {
		t.Fatal(err)
	}
	if fetchCalls != 1 {
		t.Fatalf("expected exactly one fetch across two calls, got %d", fetchCalls)
	}
}
