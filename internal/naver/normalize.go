package naver

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/daeho-lim/shopcollect/internal/domain"
)

// maxTags caps the number of tags extracted per product.
const maxTags = 20

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// stripMarkup removes HTML tags the API embeds in titles (e.g. <b> around
// matched terms) and trims surrounding whitespace.
func stripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

// parsePrice parses an optional numeric string field.
// Blank means the field is absent; a non-numeric value is a malformed item.
func parsePrice(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return &v, nil
}

// classification is the decoded form of a product type code.
type classification struct {
	group          *domain.ProductGroup
	match          *domain.CatalogMatch
	isUsed         bool
	isDiscontinued bool
	isPresale      bool
}

// classifyProductType decodes a Naver product type code (1-12).
// Codes 1-3 are general, 4-6 used, 7-9 discontinued, 10-12 presale; within
// each group the code mod 3 distinguishes price-compared (1), unmatched (2),
// and catalog-matched (0) items. Codes outside 1-12 decode to nothing.
func classifyProductType(code int) classification {
	var c classification
	if code < 1 || code > 12 {
		return c
	}

	var group domain.ProductGroup
	switch {
	case code <= 3:
		group = domain.ProductGroupGeneral
	case code <= 6:
		group = domain.ProductGroupUsed
		c.isUsed = true
	case code <= 9:
		group = domain.ProductGroupDiscontinued
		c.isDiscontinued = true
	default:
		group = domain.ProductGroupPresale
		c.isPresale = true
	}
	c.group = &group

	var match domain.CatalogMatch
	switch code % 3 {
	case 1:
		match = domain.CatalogMatchCompared
	case 2:
		match = domain.CatalogMatchUnmatched
	default:
		match = domain.CatalogMatchMatched
	}
	c.match = &match

	return c
}

// extractTags builds the tag list for a product: words of the cleaned title
// longer than one character, then brand and maker. Duplicates are removed
// preserving first occurrence, capped at maxTags.
func extractTags(title, brand, maker string) []string {
	candidates := make([]string, 0, maxTags)
	for _, word := range strings.Fields(title) {
		if utf8.RuneCountInString(word) > 1 {
			candidates = append(candidates, word)
		}
	}
	if brand != "" {
		candidates = append(candidates, brand)
	}
	if maker != "" {
		candidates = append(candidates, maker)
	}

	seen := make(map[string]struct{}, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, t := range candidates {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// normalizeItem converts one raw search item into a product record.
// Parameters:
//   - item: raw API item.
//   - keyword: search keyword this item was collected under.
//   - rank: 1-based position of the item across the whole result set.
// Returns:
//   - *domain.Product: normalized product.
//   - error: non-nil if the item is malformed and should be skipped.
func normalizeItem(item *SearchItem, keyword string, rank int) (*domain.Product, error) {
	if item.ProductID == "" {
		return nil, fmt.Errorf("item at rank %d has no product ID", rank)
	}

	title := stripMarkup(item.Title)

	lprice, err := parsePrice(item.LPrice)
	if err != nil {
		return nil, err
	}
	hprice, err := parsePrice(item.HPrice)
	if err != nil {
		return nil, err
	}

	productType := 0
	if item.ProductType != "" {
		productType, err = strconv.Atoi(item.ProductType)
		if err != nil {
			return nil, fmt.Errorf("invalid product type %q: %w", item.ProductType, err)
		}
	}
	cls := classifyProductType(productType)

	var discountRate *float64
	var priceRange *int
	if lprice != nil && hprice != nil && *lprice > 0 && *hprice > 0 {
		rate := math.Round(float64(*hprice-*lprice)/float64(*hprice)*100*100) / 100
		span := *hprice - *lprice
		discountRate = &rate
		priceRange = &span
	}

	brand := strings.TrimSpace(item.Brand)
	maker := strings.TrimSpace(item.Maker)

	return &domain.Product{
		ProductID:         item.ProductID,
		Title:             title,
		Link:              item.Link,
		Image:             item.Image,
		LPrice:            lprice,
		HPrice:            hprice,
		MallName:          strings.TrimSpace(item.MallName),
		Maker:             maker,
		Brand:             brand,
		Category1:         strings.TrimSpace(item.Category1),
		Category2:         strings.TrimSpace(item.Category2),
		Category3:         strings.TrimSpace(item.Category3),
		Category4:         strings.TrimSpace(item.Category4),
		ProductType:       productType,
		ProductGroup:      cls.group,
		CatalogMatch:      cls.match,
		IsUsed:            cls.isUsed,
		IsDiscontinued:    cls.isDiscontinued,
		IsPresale:         cls.isPresale,
		SearchKeyword:     keyword,
		Tags:              extractTags(title, brand, maker),
		Rank:              rank,
		PriceDiscountRate: discountRate,
		PriceRange:        priceRange,
	}, nil
}
