package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/daeho-lim/shopcollect/internal/logger"
	"github.com/daeho-lim/shopcollect/internal/repository"
	"github.com/daeho-lim/shopcollect/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProductHandler handles product collection and query endpoints.
type ProductHandler struct {
	collector *service.Collector
	store     *service.ProductStore
}

// NewProductHandler creates a new product handler.
// Parameters:
//   - collector: per-keyword collector.
//   - store: product store gateway.
// Returns:
//   - *ProductHandler: initialized handler.
func NewProductHandler(collector *service.Collector, store *service.ProductStore) *ProductHandler {
	return &ProductHandler{
		collector: collector,
		store:     store,
	}
}

// CollectRequest represents the one-shot collect API request.
type CollectRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results" binding:"omitempty,min=1,max=1000"`
	Sort       string `json:"sort" binding:"omitempty,oneof=sim date asc dsc"`
	Filter     string `json:"filter"`
	Exclude    string `json:"exclude"`
	Force      bool   `json:"force"`
}

// Collect handles POST /api/v1/products/collect.
// Runs one collection pass for a single keyword. Unless force is set, a
// keyword with an existing ledger entry is skipped.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) Collect(c *gin.Context) {
	ctx := c.Request.Context()

	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	logger.CtxInfo(ctx, "Received collect request: query=%s, max_results=%d, force=%v, client_ip=%s",
		req.Query, req.MaxResults, req.Force, c.ClientIP())

	result, err := h.collector.CollectKeyword(ctx, &service.CollectRequest{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		Sort:       req.Sort,
		Filter:     req.Filter,
		Exclude:    req.Exclude,
		Force:      req.Force,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if result.Skipped {
		c.JSON(http.StatusOK, gin.H{
			"message":           "Keyword was collected before; pass force=true to collect again",
			"skipped":           true,
			"query":             result.Query,
			"last_collected_at": result.LastCollectedAt,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Search handles GET /api/v1/products/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) Search(c *gin.Context) {
	filter := &repository.ProductFilter{
		Keyword:   c.Query("keyword"),
		ProductID: c.Query("product_id"),
		Category1: c.Query("category1"),
		MallName:  c.Query("mall_name"),
	}
	if v := c.Query("min_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MinPrice = &n
		}
	}
	if v := c.Query("max_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MaxPrice = &n
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	products, total, err := h.store.SearchProducts(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    total,
		"limit":    filter.Limit,
		"skip":     filter.Skip,
		"products": products,
	})
}

// List handles GET /api/v1/products.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	products, err := h.store.ListProducts(c.Request.Context(), limit, offset)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    len(products),
	})
}

// Get handles GET /api/v1/products/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) Get(c *gin.Context) {
	productID := c.Param("id")
	product, err := h.store.GetProduct(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Product not found: " + productID,
			})
			return
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Delete handles DELETE /api/v1/products/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) Delete(c *gin.Context) {
	productID := c.Param("id")
	if err := h.store.DeleteProduct(c.Request.Context(), productID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Product deleted",
		"product_id": productID,
	})
}

// Stats handles GET /api/v1/products/stats/summary.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) Stats(c *gin.Context) {
	summary, err := h.store.Stats(c.Request.Context(), 10)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RecentHistory handles GET /api/v1/products/history/recent.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) RecentHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.store.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"history": entries,
		"total":   len(entries),
	})
}

// KeywordHistory handles GET /api/v1/products/history/keyword/:keyword.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProductHandler) KeywordHistory(c *gin.Context) {
	keyword := c.Param("keyword")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.store.HistoryByKeyword(c.Request.Context(), keyword, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"keyword": keyword,
		"history": entries,
		"total":   len(entries),
	})
}
