package handler

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/service"
	"github.com/gin-gonic/gin"
)

// BatchHandler handles batch collection endpoints.
type BatchHandler struct {
	batchService *service.BatchService
}

// NewBatchHandler creates a new batch handler.
// Parameters:
//   - batchService: batch service instance.
// Returns:
//   - *BatchHandler: initialized handler.
func NewBatchHandler(batchService *service.BatchService) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
	}
}

// Upload handles POST /api/v1/batch/upload.
// Accepts a multipart CSV of keywords, creates a batch job, and starts it.
// The run slot is claimed before answering so a busy process reports 409;
// the run itself proceeds in the background.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "CSV file is required (multipart field 'file')",
		})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Only .csv files are accepted",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer file.Close()

	keywords, err := parseKeywordCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Malformed CSV: " + err.Error(),
		})
		return
	}
	if len(keywords) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": service.ErrNoKeywords.Error(),
		})
		return
	}

	rateLimitSeconds := 0
	if v := c.PostForm("rate_limit_seconds"); v != "" {
		rateLimitSeconds, _ = strconv.Atoi(v)
	}

	logger.CtxInfo(ctx, "Received batch upload: filename=%s, keywords=%d, client_ip=%s",
		fileHeader.Filename, len(keywords), c.ClientIP())

	job, err := h.batchService.CreateFromKeywords(ctx, fileHeader.Filename, keywords, rateLimitSeconds)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if err := h.batchService.Start(ctx, job.BatchID); err != nil {
		var alreadyRunning *service.AlreadyRunningError
		if errors.As(err, &alreadyRunning) {
			// The job stays pending and can be started once the slot frees up
			c.JSON(http.StatusConflict, gin.H{
				"error":    alreadyRunning.Error(),
				"batch_id": job.BatchID,
				"status":   job.Status,
			})
			return
		}
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Batch collection started",
		"batch_id":       job.BatchID,
		"total_keywords": job.TotalKeywords,
	})
}

// Start handles POST /api/v1/batch/:id/start for pending or failed batches.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Start(c *gin.Context) {
	batchID := c.Param("id")
	if err := h.batchService.Start(c.Request.Context(), batchID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Batch collection started",
		"batch_id": batchID,
	})
}

// Status handles GET /api/v1/batch/:id/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Status(c *gin.Context) {
	snap, err := h.batchService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Keywords handles GET /api/v1/batch/:id/keywords.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Keywords(c *gin.Context) {
	job, tasks, err := h.batchService.Keywords(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": job.BatchID,
		"status":   job.Status,
		"keywords": tasks,
	})
}

// List handles GET /api/v1/batch/list.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.batchService.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batches": jobs,
		"total":   len(jobs),
	})
}

// Pause handles POST /api/v1/batch/:id/pause.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Pause(c *gin.Context) {
	batchID := c.Param("id")
	if err := h.batchService.Pause(c.Request.Context(), batchID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Batch paused",
		"batch_id": batchID,
	})
}

// Resume handles POST /api/v1/batch/:id/resume.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Resume(c *gin.Context) {
	batchID := c.Param("id")
	if err := h.batchService.Resume(c.Request.Context(), batchID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Batch resumed",
		"batch_id": batchID,
	})
}

// Cancel handles POST /api/v1/batch/:id/cancel.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Cancel(c *gin.Context) {
	batchID := c.Param("id")
	if err := h.batchService.Cancel(c.Request.Context(), batchID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Batch cancelled",
		"batch_id": batchID,
	})
}

// Delete handles DELETE /api/v1/batch/:id for terminal batches.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *BatchHandler) Delete(c *gin.Context) {
	batchID := c.Param("id")
	if err := h.batchService.Delete(c.Request.Context(), batchID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Batch deleted",
		"batch_id": batchID,
	})
}

// Stream handles GET /api/v1/batch/:id/stream as a server-sent event feed.
// An initial snapshot is sent on connect; afterwards every published
// snapshot is forwarded until the client disconnects.
// Parameters:
//   - c: Gin request context.
// Returns: none (streams SSE events).
func (h *BatchHandler) Stream(c *gin.Context) {
	batchID := c.Param("id")

	snap, err := h.batchService.Status(c.Request.Context(), batchID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	broadcaster := h.batchService.Broadcaster()
	sub := broadcaster.Subscribe(batchID)
	defer broadcaster.Unsubscribe(sub)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("status", snap)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("status", snap)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// parseKeywordCSV reads keywords from the first column of a CSV stream.
// A leading BOM and an optional "keyword" header row are tolerated; blank
// rows and rows starting with '#' are skipped.
func parseKeywordCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var keywords []string
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}

		keyword := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if first {
			first = false
			if strings.EqualFold(keyword, "keyword") {
				continue
			}
		}
		if keyword == "" {
			continue
		}
		keywords = append(keywords, keyword)
	}
	return keywords, nil
}
