package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeShopServer serves deterministic paged search results. Each item's
// product ID encodes its absolute position so tests can check rank order.
func fakeShopServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		display, _ := strconv.Atoi(r.URL.Query().Get("display"))

		items := make([]SearchItem, 0, display)
		for i := 0; i < display && start+i <= total; i++ {
			pos := start + i
			items = append(items, SearchItem{
				Title:       fmt.Sprintf("상품 %d", pos),
				ProductID:   fmt.Sprintf("p-%d", pos),
				LPrice:      "1000",
				ProductType: "1",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchPage{
			Total:   total,
			Start:   start,
			Display: len(items),
			Items:   items,
		})
	}))
}

func TestCollectPaginates(t *testing.T) {
	srv := fakeShopServer(t, 5)
	defer srv.Close()

	client := NewClient(&Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIURL:       srv.URL,
		PageSize:     2,
	})

	products, total, err := client.Collect(context.Background(), "이어폰", 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(products) != 5 {
		t.Fatalf("collected %d products, want 5", len(products))
	}
	for i, p := range products {
		if p.Rank != i+1 {
			t.Errorf("products[%d].Rank = %d, want %d", i, p.Rank, i+1)
		}
		if want := fmt.Sprintf("p-%d", i+1); p.ProductID != want {
			t.Errorf("products[%d].ProductID = %s, want %s", i, p.ProductID, want)
		}
		if p.SearchKeyword != "이어폰" {
			t.Errorf("products[%d].SearchKeyword = %s", i, p.SearchKeyword)
		}
	}
}

func TestCollectHonorsMaxResults(t *testing.T) {
	srv := fakeShopServer(t, 50)
	defer srv.Close()

	client := NewClient(&Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIURL:       srv.URL,
		PageSize:     2,
	})

	products, _, err := client.Collect(context.Background(), "키보드", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 3 {
		t.Errorf("collected %d products, want 3", len(products))
	}
}

func TestCollectSkipsMalformedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchPage{
			Total: 3,
			Items: []SearchItem{
				{Title: "ok", ProductID: "p-1", LPrice: "1000"},
				{Title: "no id"},
				{Title: "bad price", ProductID: "p-3", LPrice: "abc"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(&Config{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL})

	products, _, err := client.Collect(context.Background(), "마우스", 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("collected %d products, want 1", len(products))
	}
	if products[0].ProductID != "p-1" {
		t.Errorf("kept product %s, want p-1", products[0].ProductID)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchPage{Total: 1, Items: []SearchItem{
			{Title: "ok", ProductID: "p-1"},
		}})
	}))
	defer srv.Close()

	client := NewClient(&Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIURL:       srv.URL,
		RetryCount:   2,
	})

	page, err := client.Search(context.Background(), "노트북", 10, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("got %d items, want 1", len(page.Items))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiError{ErrorCode: "SE01", ErrorMessage: "Incorrect query request"})
	}))
	defer srv.Close()

	client := NewClient(&Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIURL:       srv.URL,
		RetryCount:   3,
	})

	_, err := client.Search(context.Background(), "노트북", 10, 1, nil)
	if err == nil {
		t.Fatal("expected an error for HTTP 400")
	}
	if !strings.Contains(err.Error(), "SE01") {
		t.Errorf("error %q does not carry the API error code", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client := NewClient(&Config{ClientID: "id", ClientSecret: "secret"})

	if _, err := client.Search(context.Background(), "", 10, 1, nil); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search error = %v, want ErrEmptyQuery", err)
	}
	if _, _, err := client.Collect(context.Background(), "", 10, nil); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Collect error = %v, want ErrEmptyQuery", err)
	}
}

func TestSearchPassesOptions(t *testing.T) {
	var gotSort, gotFilter, gotExclude string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSort = r.URL.Query().Get("sort")
		gotFilter = r.URL.Query().Get("filter")
		gotExclude = r.URL.Query().Get("exclude")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchPage{})
	}))
	defer srv.Close()

	client := NewClient(&Config{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL})

	_, err := client.Search(context.Background(), "모니터", 10, 1, &SearchOptions{
		Sort:    "asc",
		Filter:  "naverpay",
		Exclude: "used:rental",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSort != "asc" || gotFilter != "naverpay" || gotExclude != "used:rental" {
		t.Errorf("options not forwarded: sort=%q filter=%q exclude=%q", gotSort, gotFilter, gotExclude)
	}
}
