package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes
	// writes from the run loop with reads from the test
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&domain.Product{},
		&domain.SearchHistory{},
		&domain.BatchJob{},
		&domain.KeywordTask{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *ProductStore {
	t.Helper()
	db := newTestDB(t)
	return NewProductStore(
		repository.NewProductRepository(db),
		repository.NewSearchHistoryRepository(db),
		nil,
	)
}

func intPtr(v int) *int { return &v }

func testProduct(id string, keyword string, rank int, lprice int) domain.Product {
	return domain.Product{
		ProductID:     id,
		Title:         "상품 " + id,
		LPrice:        intPtr(lprice),
		MallName:      "몰A",
		Category1:     "디지털",
		SearchKeyword: keyword,
		Tags:          domain.StringArray{"상품", id},
		Rank:          rank,
	}
}

func TestSaveCollectedInsertsAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := []domain.Product{
		testProduct("p-1", "노트북", 1, 10000),
		testProduct("p-2", "노트북", 2, 20000),
	}
	result, err := store.SaveCollected(ctx, "노트북", "sim", 2, first)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if result.New != 2 || result.Updated != 0 {
		t.Errorf("first pass = %+v, want 2 new / 0 updated", result)
	}

	// Second pass sees the same products at new prices and with different
	// categorization; only the price fields may change.
	second := []domain.Product{
		testProduct("p-1", "게이밍 노트북", 1, 9000),
		testProduct("p-2", "게이밍 노트북", 2, 18000),
	}
	second[0].Category1 = "가전"
	second[0].Tags = domain.StringArray{"다른", "태그"}

	result, err = store.SaveCollected(ctx, "게이밍 노트북", "sim", 2, second)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if result.New != 0 || result.Updated != 2 {
		t.Errorf("second pass = %+v, want 0 new / 2 updated", result)
	}

	got, err := store.GetProduct(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.LPrice == nil || *got.LPrice != 9000 {
		t.Errorf("lprice = %v, want 9000", got.LPrice)
	}
	if got.Category1 != "디지털" {
		t.Errorf("category1 = %q, want first-observed value", got.Category1)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "상품" {
		t.Errorf("tags = %v, want first-observed value", got.Tags)
	}
	if got.SearchKeyword != "노트북" {
		t.Errorf("search keyword = %q, want first-observed value", got.SearchKeyword)
	}
}

func TestSaveCollectedDedupsWithinPass(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	items := []domain.Product{
		testProduct("p-1", "마우스", 1, 5000),
		testProduct("p-1", "마우스", 7, 5000),
	}
	result, err := store.SaveCollected(ctx, "마우스", "sim", 2, items)
	if err != nil {
		t.Fatalf("SaveCollected failed: %v", err)
	}
	if result.New != 1 {
		t.Errorf("new = %d, want 1", result.New)
	}

	got, err := store.GetProduct(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Rank != 1 {
		t.Errorf("rank = %d, want the first occurrence kept", got.Rank)
	}
}

func TestSaveCollectedWritesLedger(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	collected, err := store.HasCollected(ctx, "키보드")
	if err != nil {
		t.Fatalf("HasCollected failed: %v", err)
	}
	if collected {
		t.Fatal("keyword reported collected before any pass")
	}
	last, err := store.LastCollectedAt(ctx, "키보드")
	if err != nil {
		t.Fatalf("LastCollectedAt failed: %v", err)
	}
	if last != nil {
		t.Errorf("last collected = %v, want nil", last)
	}

	items := []domain.Product{testProduct("p-1", "키보드", 1, 30000)}
	if _, err := store.SaveCollected(ctx, "키보드", "asc", 42, items); err != nil {
		t.Fatalf("SaveCollected failed: %v", err)
	}

	collected, err = store.HasCollected(ctx, "키보드")
	if err != nil {
		t.Fatalf("HasCollected failed: %v", err)
	}
	if !collected {
		t.Error("keyword not reported collected after a pass")
	}
	last, err = store.LastCollectedAt(ctx, "키보드")
	if err != nil {
		t.Fatalf("LastCollectedAt failed: %v", err)
	}
	if last == nil {
		t.Fatal("last collected is nil after a pass")
	}

	entries, err := store.HistoryByKeyword(ctx, "키보드", 10)
	if err != nil {
		t.Fatalf("HistoryByKeyword failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(entries))
	}
	if entries[0].TotalCount != 42 || entries[0].Sort != "asc" || entries[0].Display != 1 {
		t.Errorf("ledger entry = %+v", entries[0])
	}
}

func TestSaveCollectedEmptyPass(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	result, err := store.SaveCollected(ctx, "없는키워드", "sim", 0, nil)
	if err != nil {
		t.Fatalf("SaveCollected failed: %v", err)
	}
	if result.New != 0 || result.Updated != 0 {
		t.Errorf("result = %+v, want empty", result)
	}

	// Even an empty pass records the keyword as collected
	collected, err := store.HasCollected(ctx, "없는키워드")
	if err != nil {
		t.Fatalf("HasCollected failed: %v", err)
	}
	if !collected {
		t.Error("empty pass did not write a ledger entry")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	items := []domain.Product{
		testProduct("p-1", "모니터", 1, 100000),
		testProduct("p-2", "모니터", 2, 120000),
		testProduct("p-3", "모니터", 3, 90000),
	}
	items[0].MallName = "몰B"
	items[1].MallName = "몰B"
	items[2].MallName = "몰C"
	if _, err := store.SaveCollected(ctx, "모니터", "sim", 3, items); err != nil {
		t.Fatalf("SaveCollected failed: %v", err)
	}

	summary, err := store.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.TotalProducts != 3 {
		t.Errorf("total products = %d, want 3", summary.TotalProducts)
	}
	if len(summary.TopMalls) != 2 {
		t.Fatalf("got %d malls, want 2", len(summary.TopMalls))
	}
	if summary.TopMalls[0].Name != "몰B" || summary.TopMalls[0].Count != 2 {
		t.Errorf("top mall = %+v, want 몰B with 2", summary.TopMalls[0])
	}
}

func TestSearchProducts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	items := []domain.Product{
		testProduct("p-1", "이어폰", 1, 30000),
		testProduct("p-2", "이어폰", 2, 80000),
	}
	items[0].Title = "무선 이어폰"
	items[1].Title = "유선 헤드셋"
	if _, err := store.SaveCollected(ctx, "이어폰", "sim", 2, items); err != nil {
		t.Fatalf("SaveCollected failed: %v", err)
	}

	products, total, err := store.SearchProducts(ctx, &repository.ProductFilter{
		Keyword: "무선",
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if total != 1 || len(products) != 1 {
		t.Fatalf("got %d/%d results, want 1", len(products), total)
	}
	if products[0].ProductID != "p-1" {
		t.Errorf("matched %s, want p-1", products[0].ProductID)
	}

	minPrice := 50000
	products, total, err = store.SearchProducts(ctx, &repository.ProductFilter{
		MinPrice: &minPrice,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("SearchProducts failed: %v", err)
	}
	if total != 1 || products[0].ProductID != "p-2" {
		t.Errorf("price filter matched %d rows, first %v", total, products)
	}
}
