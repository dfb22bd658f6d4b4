package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daeho-lim/shopcollect/internal/domain"
	"github.com/daeho-lim/shopcollect/internal/naver"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"github.com/daeho-lim/shopcollect/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseKeywordCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "plain keywords",
			input: "노트북\n마우스\n키보드\n",
			want:  []string{"노트북", "마우스", "키보드"},
		},
		{
			name:  "header row skipped",
			input: "keyword\n노트북\n마우스\n",
			want:  []string{"노트북", "마우스"},
		},
		{
			name:  "header match is case insensitive",
			input: "Keyword\n노트북\n",
			want:  []string{"노트북"},
		},
		{
			name:  "byte order mark stripped",
			input: "\ufeffkeyword\n노트북\n",
			want:  []string{"노트북"},
		},
		{
			name:  "comments and blank rows skipped",
			input: "# 수집 대상\n노트북\n\n마우스\n,\n",
			want:  []string{"노트북", "마우스"},
		},
		{
			name:  "only first column used",
			input: "노트북,100\n마우스,200\n",
			want:  []string{"노트북", "마우스"},
		},
		{
			name:  "surrounding whitespace trimmed",
			input: " 노트북 \n",
			want:  []string{"노트북"},
		},
		{
			name:  "keyword literal kept past the first row",
			input: "노트북\nkeyword\n",
			want:  []string{"노트북", "keyword"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseKeywordCSV(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("keywords[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

// multipartUpload builds a multipart body with one file field.
func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// Upload rejects malformed requests before touching the batch service, so
// these cases run against a handler with no service wired.
func TestUploadValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBatchHandler(nil)

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/batch/upload", nil)

		h.Upload(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		body, contentType := multipartUpload(t, "keywords.txt", "노트북\n")
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/batch/upload", body)
		c.Request.Header.Set("Content-Type", contentType)

		h.Upload(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if !strings.Contains(w.Body.String(), ".csv") {
			t.Errorf("body %q does not explain the extension requirement", w.Body.String())
		}
	})

	t.Run("no keywords", func(t *testing.T) {
		body, contentType := multipartUpload(t, "keywords.csv", "keyword\n# nothing here\n")
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/batch/upload", body)
		c.Request.Header.Set("Content-Type", contentType)

		h.Upload(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

// blockingSearcher holds every collection open until release is closed.
type blockingSearcher struct {
	entered chan string
	release chan struct{}
}

func (s *blockingSearcher) Collect(ctx context.Context, query string, maxResults int, opts *naver.SearchOptions) ([]domain.Product, int, error) {
	if s.entered != nil {
		s.entered <- query
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	return []domain.Product{
		{ProductID: query + "-1", Title: query, SearchKeyword: query, Rank: 1},
	}, 1, nil
}

var handlerDBSeq int64

func newBatchUploadHandler(t *testing.T, searcher service.Searcher) (*BatchHandler, *service.BatchService) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_test_%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&handlerDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
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

	store := service.NewProductStore(
		repository.NewProductRepository(db),
		repository.NewSearchHistoryRepository(db),
		nil,
	)
	collector := service.NewCollector(searcher, store, nil)
	svc := service.NewBatchService(
		repository.NewBatchRepository(db),
		collector,
		service.NewBroadcaster(16),
		&service.BatchServiceConfig{PollInterval: 10 * time.Millisecond},
	)
	return NewBatchHandler(svc), svc
}

func TestUploadConflictKeepsJobPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	searcher := &blockingSearcher{
		entered: make(chan string, 1),
		release: make(chan struct{}),
	}
	h, svc := newBatchUploadHandler(t, searcher)

	doUpload := func(content string) *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, "keywords.csv", content)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/batch/upload", body)
		c.Request.Header.Set("Content-Type", contentType)
		h.Upload(c)
		return w
	}

	first := doUpload("키워드A\n")
	if first.Code != http.StatusOK {
		t.Fatalf("first upload status = %d, body %s", first.Code, first.Body.String())
	}
	<-searcher.entered

	// The run slot is busy, so the second job is created but not started
	second := doUpload("키워드B\n")
	if second.Code != http.StatusConflict {
		t.Fatalf("second upload status = %d, want 409", second.Code)
	}
	if !strings.Contains(second.Body.String(), "batch_id") {
		t.Errorf("conflict body %q carries no batch_id", second.Body.String())
	}
	if !strings.Contains(second.Body.String(), "pending") {
		t.Errorf("conflict body %q does not report the pending status", second.Body.String())
	}

	close(searcher.release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if running, _ := svc.ActiveBatch(); !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run slot never released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
