package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ProductGroup represents the lifecycle group decoded from a Naver product type code.
// Values include ProductGroupGeneral, ProductGroupUsed, ProductGroupDiscontinued, and ProductGroupPresale.
type ProductGroup string

const (
	ProductGroupGeneral      ProductGroup = "general"
	ProductGroupUsed         ProductGroup = "used"
	ProductGroupDiscontinued ProductGroup = "discontinued"
	ProductGroupPresale      ProductGroup = "presale"
)

// CatalogMatch represents the price-comparison match kind decoded from a product type code.
// Values include CatalogMatchCompared, CatalogMatchUnmatched, and CatalogMatchMatched.
type CatalogMatch string

const (
	CatalogMatchCompared  CatalogMatch = "price_compared"
	CatalogMatchUnmatched CatalogMatch = "unmatched"
	CatalogMatchMatched   CatalogMatch = "matched"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Product represents a collected shopping item keyed by its Naver product ID.
// Fields include listing data, decoded classification, derived price metrics,
// and collection provenance.
type Product struct {
	ProductID           string        `gorm:"type:text;primaryKey" json:"product_id"`
	Title               string        `gorm:"type:text;not null" json:"title"`
	Link                string        `gorm:"type:text" json:"link,omitempty"`
	Image               string        `gorm:"type:text" json:"image,omitempty"`
	LPrice              *int          `json:"lprice,omitempty"`
	HPrice              *int          `json:"hprice,omitempty"`
	MallName            string        `gorm:"type:text;index:idx_products_mall" json:"mall_name,omitempty"`
	Maker               string        `gorm:"type:text" json:"maker,omitempty"`
	Brand               string        `gorm:"type:text" json:"brand,omitempty"`
	Category1           string        `gorm:"type:text;index:idx_products_category1" json:"category1,omitempty"`
	Category2           string        `gorm:"type:text" json:"category2,omitempty"`
	Category3           string        `gorm:"type:text" json:"category3,omitempty"`
	Category4           string        `gorm:"type:text" json:"category4,omitempty"`
	ProductType         int           `json:"product_type"`
	ProductGroup        *ProductGroup `gorm:"type:text" json:"product_group,omitempty"`
	CatalogMatch        *CatalogMatch `gorm:"type:text" json:"catalog_match,omitempty"`
	IsUsed              bool          `json:"is_used"`
	IsDiscontinued      bool          `json:"is_discontinued"`
	IsPresale           bool          `json:"is_presale"`
	SearchKeyword       string        `gorm:"type:text;index:idx_products_keyword" json:"search_keyword"`
	Tags                StringArray   `gorm:"type:text" json:"tags"`
	Rank                int           `json:"rank"`
	PriceDiscountRate   *float64      `json:"price_discount_rate,omitempty"`
	PriceRange          *int          `json:"price_range,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Product.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Product) TableName() string {
	return "products"
}
