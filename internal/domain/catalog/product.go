// Package catalog contains the storefront product read model, the stable
// option identity mapping and the offer update queue.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog Errors
// ---------------------------------------------------------------------------

var (
	ErrProductNotFound             = errors.New("catalog: product not found")
	ErrCategoryNotFound            = errors.New("catalog: category not found")
	ErrOptionNotFound              = errors.New("catalog: product option not found")
	ErrIdentifierResolutionFailed  = errors.New("catalog: option identifier could not be resolved")
	ErrEmptyLiveSet                = errors.New("catalog: refusing to reconcile against an empty live set")
	ErrNoProductsToExport          = errors.New("catalog: no products to export")
	ErrInvalidAttributeSource      = errors.New("catalog: invalid attribute source")
	ErrVariationsUnavailable       = errors.New("catalog: product variations could not be loaded")
	ErrStoreUnavailable            = errors.New("catalog: store unavailable")
	ErrExportAlreadyRunning        = errors.New("catalog: another catalog export is running")
	ErrUnsupportedExportContent    = errors.New("catalog: unsupported export content type")
	ErrVariationWithoutParentFound = errors.New("catalog: variation parent could not be loaded")
)

// ---------------------------------------------------------------------------
// Product enums
// ---------------------------------------------------------------------------

// ProductType is the storefront product type
type ProductType string

const (
	ProductTypeSimple    ProductType = "simple"
	ProductTypeVariable  ProductType = "variable"
	ProductTypeVariation ProductType = "variation"
)

// IsValid checks if the product type is valid
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeSimple, ProductTypeVariable, ProductTypeVariation:
		return true
	}
	return false
}

// StockStatus is the storefront stock status for products without stock management
type StockStatus string

const (
	StockStatusInStock     StockStatus = "instock"
	StockStatusOutOfStock  StockStatus = "outofstock"
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// BackorderMode is the storefront backorder setting
type BackorderMode string

const (
	BackordersNo     BackorderMode = "no"
	BackordersNotify BackorderMode = "notify"
	BackordersYes    BackorderMode = "yes"
)

// ProductStatusPublished is the status of products visible in the store
const ProductStatusPublished = "publish"

// ---------------------------------------------------------------------------
// Product read model
// ---------------------------------------------------------------------------

// Product is a storefront product, variable product or variation as seen by
// the exports. It is read-only; the store owns it.
type Product struct {
	ID       int64
	ParentID int64
	Type     ProductType
	Status   string

	SKU              string
	Name             string
	ParentName       string
	Description      string
	ShortDescription string
	Permalink        string

	RegularPrice decimal.Decimal
	Price        decimal.Decimal

	ManageStock   bool
	StockQuantity int
	StockStatus   StockStatus
	Backorders    BackorderMode

	Weight string
	Length string
	Width  string
	Height string

	ImageURL    string
	GalleryURLs []string
	CategoryIDs []int64

	// Attributes are the product level attributes; on a variable product the
	// ones flagged Variation span the variation domain
	Attributes []ProductAttribute
	// VariationAttributes are the selected values of a variation in parent
	// attribute order. An empty value means "any".
	VariationAttributes []VariationAttribute

	Taxonomies   []TaxonomyTerms
	CustomFields []CustomField
	Meta         []MetaEntry
	// PluginFields holds values exposed by storefront plugins: provider -> key -> values
	PluginFields map[string]map[string][]string

	// Translations of the product by language, excluding the store default
	Translations map[string]ProductTranslation

	VariationIDs []int64
}

// ProductTranslation is the translated copy of a product in one language
type ProductTranslation struct {
	ProductID        int64
	Name             string
	Description      string
	ShortDescription string
	Permalink        string
}

// ProductAttribute is an attribute assigned to a product
type ProductAttribute struct {
	// Key is the taxonomy name (pa_color) for global attributes or the
	// attribute name for local ones
	Key       string
	Name      string
	Global    bool
	Variation bool
	Options   []AttributeOption
	// Labels holds the attribute name per language
	Labels map[string]string
}

// AttributeOption is one value of a product attribute
type AttributeOption struct {
	TermID int64
	Slug   string
	Name   string
	// Names holds the value per language
	Names map[string]string
}

// VariationAttribute is the value a variation fixes for a parent attribute
type VariationAttribute struct {
	Key   string
	Value string
}

// TaxonomyTerms lists the terms of one taxonomy assigned to a product
type TaxonomyTerms struct {
	Taxonomy string
	Label    string
	Terms    []string
}

// CustomField is a field provided by a custom fields plugin
type CustomField struct {
	Name   string
	Label  string
	Values []string
}

// MetaEntry is a free form product meta value
type MetaEntry struct {
	Key    string
	Values []string
}

// IsVariation reports whether the product is a variation of a variable product
func (p *Product) IsVariation() bool {
	return p.ParentID > 0
}

// IsVariable reports whether the product has variations
func (p *Product) IsVariable() bool {
	return p.Type == ProductTypeVariable
}

// RootID returns the parent id for variations and the own id otherwise
func (p *Product) RootID() int64 {
	if p.ParentID > 0 {
		return p.ParentID
	}
	return p.ID
}

// VariationID returns the own id for variations and nil otherwise
func (p *Product) VariationID() *int64 {
	if p.ParentID == 0 {
		return nil
	}
	id := p.ID
	return &id
}

// Title returns the parent title for variations and the name otherwise
func (p *Product) Title() string {
	if p.ParentID > 0 && p.ParentName != "" {
		return p.ParentName
	}
	return p.Name
}

// BackordersAllowed reports whether backorders are enabled
func (p *Product) BackordersAllowed() bool {
	return p.Backorders == BackordersYes || p.Backorders == BackordersNotify
}

// InStock reports the stock status for products without stock management
func (p *Product) InStock() bool {
	return p.StockStatus != StockStatusOutOfStock
}

// Attribute returns the product attribute with the given key
func (p *Product) Attribute(key string) (ProductAttribute, bool) {
	for _, a := range p.Attributes {
		if a.Key == key {
			return a, true
		}
	}
	return ProductAttribute{}, false
}

// VariationValue returns the value a variation fixes for an attribute key
func (p *Product) VariationValue(key string) (string, bool) {
	for _, a := range p.VariationAttributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// TaxonomyTerms returns the terms assigned for a taxonomy
func (p *Product) TaxonomyTerms(taxonomy string) []string {
	for _, t := range p.Taxonomies {
		if t.Taxonomy == taxonomy {
			return t.Terms
		}
	}
	return nil
}

// Translation returns the translated copy for a language, if any
func (p *Product) Translation(language string) (ProductTranslation, bool) {
	t, ok := p.Translations[language]
	return t, ok
}

// TranslationIDs returns the ids of all translated copies
func (p *Product) TranslationIDs() []int64 {
	ids := make([]int64, 0, len(p.Translations))
	for _, t := range p.Translations {
		if t.ProductID > 0 && t.ProductID != p.ID {
			ids = append(ids, t.ProductID)
		}
	}
	return ids
}

// ---------------------------------------------------------------------------
// Category
// ---------------------------------------------------------------------------

// Category is a storefront product category
type Category struct {
	ID       int64
	ParentID int64
	Name     string
	// Names holds the category name per language
	Names map[string]string
}

// NameFor returns the category name for a language, falling back to the default name
func (c *Category) NameFor(language string) string {
	if n, ok := c.Names[language]; ok && n != "" {
		return n
	}
	return c.Name
}

// ---------------------------------------------------------------------------
// Store port
// ---------------------------------------------------------------------------

// ProductQuery selects one page of products
type ProductQuery struct {
	Page          int
	PageSize      int
	Types         []ProductType
	OnlyPublished bool
}

// Store is the read side of the storefront catalog
type Store interface {
	// ListProducts returns one page; an empty page ends the listing
	ListProducts(ctx context.Context, query ProductQuery) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListVariations(ctx context.Context, parentID int64) ([]Product, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
}
