package service

import (
	"context"
	"errors"
	"testing"

	"github.com/daeho-lim/shopcollect/internal/naver"
	"github.com/daeho-lim/shopcollect/internal/repository"
)

func newTestCollector(t *testing.T, searcher *fakeSearcher) (*Collector, *ProductStore) {
	t.Helper()
	db := newTestDB(t)
	store := NewProductStore(
		repository.NewProductRepository(db),
		repository.NewSearchHistoryRepository(db),
		nil,
	)
	return NewCollector(searcher, store, &CollectorConfig{MaxResults: 10}), store
}

func TestCollectKeywordRejectsEmptyQuery(t *testing.T) {
	collector, _ := newTestCollector(t, &fakeSearcher{})

	if _, err := collector.CollectKeyword(context.Background(), &CollectRequest{}); !errors.Is(err, naver.ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestCollectKeywordSkipsKnownKeyword(t *testing.T) {
	ctx := context.Background()
	searcher := &fakeSearcher{perQuery: 3}
	collector, _ := newTestCollector(t, searcher)

	first, err := collector.CollectKeyword(ctx, &CollectRequest{Query: "텀블러"})
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.Skipped || first.Collected != 3 || first.New != 3 {
		t.Errorf("first pass = %+v, want 3 collected / 3 new", first)
	}

	second, err := collector.CollectKeyword(ctx, &CollectRequest{Query: "텀블러"})
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if !second.Skipped {
		t.Fatal("second pass not skipped")
	}
	if second.LastCollectedAt == nil {
		t.Error("skipped result has no last collected time")
	}
	if searcher.callCount() != 1 {
		t.Errorf("searcher saw %d calls, want 1", searcher.callCount())
	}
}

func TestCollectKeywordForceOverridesSkip(t *testing.T) {
	ctx := context.Background()
	searcher := &fakeSearcher{perQuery: 2}
	collector, _ := newTestCollector(t, searcher)

	if _, err := collector.CollectKeyword(ctx, &CollectRequest{Query: "물병"}); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	forced, err := collector.CollectKeyword(ctx, &CollectRequest{Query: "물병", Force: true})
	if err != nil {
		t.Fatalf("forced pass failed: %v", err)
	}
	if forced.Skipped {
		t.Fatal("forced pass was skipped")
	}
	if forced.Updated != 2 || forced.New != 0 {
		t.Errorf("forced pass = %+v, want 2 updated / 0 new", forced)
	}
	if searcher.callCount() != 2 {
		t.Errorf("searcher saw %d calls, want 2", searcher.callCount())
	}
}

func TestCollectKeywordPropagatesSearchErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream down")
	searcher := &fakeSearcher{failures: map[string]error{"냄비": boom}}
	collector, store := newTestCollector(t, searcher)

	if _, err := collector.CollectKeyword(ctx, &CollectRequest{Query: "냄비"}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the searcher error", err)
	}

	// A failed pass must not leave a ledger entry behind
	collected, err := store.HasCollected(ctx, "냄비")
	if err != nil {
		t.Fatalf("HasCollected failed: %v", err)
	}
	if collected {
		t.Error("failed pass wrote a ledger entry")
	}
}
