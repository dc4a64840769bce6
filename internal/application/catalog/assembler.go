package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
)

// ErrInvalidExportLanguage is returned for export languages that are not BCP 47 tags
var ErrInvalidExportLanguage = errors.New("catalog: invalid export language")

// MaxImages is the number of unique images the marketplace accepts per option
const MaxImages = 10

// Process names used in run logs
const (
	ProcessCatalogExport = "catalog_export"
	ProcessOfferExport   = "offer_export"
)

var (
	defaultTitleSource       = catalog.MustParseAttributeSource("core:name")
	defaultDescriptionSource = catalog.MustParseAttributeSource("core:description")
)

// OptionResult is an assembled option or the reason it was left out
type OptionResult struct {
	Record *catalog.OptionRecord
	Skip   catalog.SkipReason
}

// Assembler renders storefront products into catalog export records for one
// connection. It holds the per-build duplicate sets and is not safe for
// concurrent use.
type Assembler struct {
	store      catalog.Store
	session    *Session
	conn       *connection.Connection
	logger     *zap.Logger
	languages  []string
	attributes *attributeBuilder
	categories *categoryResolver

	seenIdentifiers map[int64]struct{}
	seenEANs        map[string]struct{}
	skipped         map[catalog.SkipReason]int
	options         int
}

// ValidateLanguages checks that every export language is a well formed tag
func ValidateLanguages(languages []string) error {
	if len(languages) == 0 {
		return connection.ErrMissingExportLanguage
	}
	for _, lang := range languages {
		if _, err := language.Parse(lang); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidExportLanguage, lang)
		}
	}
	return nil
}

// NewAssembler creates an assembler for one build
func NewAssembler(store catalog.Store, session *Session, conn *connection.Connection, logger *zap.Logger) (*Assembler, error) {
	if err := ValidateLanguages(conn.Catalog.ExportLanguages); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	languages := conn.Catalog.ExportLanguages
	return &Assembler{
		store:     store,
		session:   session,
		conn:      conn,
		logger:    logger,
		languages: languages,
		attributes: &attributeBuilder{
			languages:         languages,
			defaultLanguage:   conn.Catalog.DefaultLanguage(),
			includeTaxonomies: conn.Catalog.IncludeTaxonomies,
			brandSource:       conn.Catalog.BrandSource,
		},
		categories:      newCategoryResolver(store, languages, logger),
		seenIdentifiers: make(map[int64]struct{}),
		seenEANs:        make(map[string]struct{}),
		skipped:         make(map[catalog.SkipReason]int),
	}, nil
}

// Skipped returns the skip counts of this build
func (a *Assembler) Skipped() map[catalog.SkipReason]int {
	out := make(map[catalog.SkipReason]int, len(a.skipped))
	for k, v := range a.skipped {
		out[k] = v
	}
	return out
}

// OptionCount returns the number of options assembled so far
func (a *Assembler) OptionCount() int {
	return a.options
}

// AssembleProduct renders one simple or variable product. Products without
// any exportable option are skipped.
func (a *Assembler) AssembleProduct(ctx context.Context, p *catalog.Product) (*catalog.ProductRecord, catalog.SkipReason) {
	variants, err := a.variants(ctx, p)
	if err != nil {
		a.skip(catalog.SkipStoreError, p, zap.Error(err))
		return nil, catalog.SkipStoreError
	}

	record := &catalog.ProductRecord{Identifier: p.ID}
	for _, v := range variants {
		res := a.AssembleOption(ctx, v)
		if res.Skip != catalog.SkipNone {
			continue
		}
		record.Options = append(record.Options, *res.Record)
	}
	if len(record.Options) == 0 {
		a.skip(catalog.SkipNoOptions, p)
		return nil, catalog.SkipNoOptions
	}
	a.options += len(record.Options)

	if a.conn.Catalog.BrandSource.IsSet() {
		record.Brand = a.conn.Catalog.BrandSource.Resolve(p, nil)
	}
	if tree := a.categories.Tree(ctx, p.CategoryIDs); len(tree) > 0 {
		record.Categories = &catalog.CategoryList{Items: tree}
	}
	return record, catalog.SkipNone
}

func (a *Assembler) variants(ctx context.Context, p *catalog.Product) ([]Variant, error) {
	if !p.IsVariable() {
		return []Variant{SimpleVariant(p)}, nil
	}
	variations, err := a.store.ListVariations(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrVariationsUnavailable, err)
	}
	for i := range variations {
		if variations[i].ParentID == 0 {
			variations[i].ParentID = p.ID
		}
		if variations[i].ParentName == "" {
			variations[i].ParentName = p.Name
		}
	}
	return GenerateVariants(p, variations), nil
}

// AssembleOption renders one variant. Checks run in a fixed order:
// identifier, SKU, duplicate identifier, EAN validity, duplicate EAN.
// The identifier is resolved first so a variant that is skipped still
// counts as live and keeps its option id across builds.
func (a *Assembler) AssembleOption(ctx context.Context, v Variant) OptionResult {
	p := v.Product
	policy := a.conn.Catalog

	identifier, err := a.session.Resolve(ctx, ResolveRequest{
		ProductID:                 v.RootID(),
		VariationID:               p.VariationID(),
		Name:                      p.Name,
		Snapshot:                  v.Selection,
		IgnoreAttributesForSimple: policy.SkipRegenerateIDsForSimple,
	})
	if err != nil {
		return a.skipOption(catalog.SkipIdentifierFailed, p, zap.Error(err))
	}

	sku := strings.TrimSpace(p.SKU)
	if sku == "" {
		return a.skipOption(catalog.SkipMissingSKU, p, zap.Int64("identifier", identifier))
	}

	if _, dup := a.seenIdentifiers[identifier]; dup {
		return a.skipOption(catalog.SkipDuplicateIdentifier, p, zap.Int64("identifier", identifier))
	}
	a.seenIdentifiers[identifier] = struct{}{}

	ean := catalog.NormalizeEAN(policy.EANSource.Resolve(p, v.Parent), policy.EANLeadingZero)
	if !catalog.IsValidEAN13(ean) {
		if policy.SkipInvalidEAN {
			return a.skipOption(catalog.SkipInvalidEAN, p, zap.Int64("identifier", identifier), zap.String("ean", ean))
		}
		ean = ""
	}
	if ean != "" {
		if _, dup := a.seenEANs[ean]; dup {
			return a.skipOption(catalog.SkipDuplicateEAN, p, zap.Int64("identifier", identifier), zap.String("ean", ean))
		}
		a.seenEANs[ean] = struct{}{}
	}

	record := &catalog.OptionRecord{
		Identifier: identifier,
		SKU:        sku,
		Stock:      catalog.ComputeStock(p, a.conn.Offer.StockPolicy()),
		EAN:        ean,
	}

	if titles := a.titles(v); len(titles) > 0 {
		record.Titles = &catalog.TitleList{Items: titles}
	}
	if descriptions := a.descriptions(v); len(descriptions) > 0 {
		record.Descriptions = &catalog.DescriptionList{Items: descriptions}
	}
	if urls := a.urls(v); len(urls) > 0 {
		record.URLs = &catalog.URLList{Items: urls}
	}
	applyOfferFields(record, p, v.Parent, a.conn)
	if images := Images(p, v.Parent); len(images) > 0 {
		record.Images = &catalog.ImageList{Items: images}
	}
	if attrs := a.attributes.build(v); len(attrs) > 0 {
		record.Attributes = &catalog.AttributeList{Items: attrs}
	}
	return OptionResult{Record: record}
}

// applyOfferFields fills cost, delivery time and prices, shared by catalog and offer documents
func applyOfferFields(record *catalog.OptionRecord, p, parent *catalog.Product, conn *connection.Connection) {
	policy := conn.Catalog
	if cost := strings.TrimSpace(policy.CostSource.Resolve(p, parent)); cost != "" {
		if d, err := decimal.NewFromString(cost); err == nil {
			record.Cost = catalog.FormatAmount(d)
		}
	}
	record.DeliveryTime = strings.TrimSpace(policy.DeliverySource.Resolve(p, parent))
	record.Price = catalog.FormatAmount(catalog.ExportPrice(p, policy.SpecialPriceExport))
	if original := catalog.ExportPriceOriginal(p, policy.SpecialPriceExport); original != nil {
		record.PriceOriginal = catalog.FormatAmount(*original)
	}
}

func (a *Assembler) skip(reason catalog.SkipReason, p *catalog.Product, fields ...zap.Field) {
	a.skipped[reason]++
	fields = append([]zap.Field{
		zap.Int64("id", p.ID),
		zap.String("sku", p.SKU),
		zap.String("reason", reason.String()),
	}, fields...)
	if reason == catalog.SkipStoreError {
		a.logger.Error(reason.Message(), fields...)
		return
	}
	a.logger.Warn(reason.Message(), fields...)
}

func (a *Assembler) skipOption(reason catalog.SkipReason, p *catalog.Product, fields ...zap.Field) OptionResult {
	a.skip(reason, p, fields...)
	return OptionResult{Skip: reason}
}

// ---------------------------------------------------------------------------
// Localized content
// ---------------------------------------------------------------------------

func (a *Assembler) defaultLanguage() string {
	return a.conn.Catalog.DefaultLanguage()
}

func (a *Assembler) titles(v Variant) []catalog.LocalizedText {
	src := a.conn.Catalog.TitleSource
	if !src.IsSet() {
		src = defaultTitleSource
	}
	return a.localized(v, func(p, parent *catalog.Product) string {
		return src.Resolve(p, parent)
	})
}

func (a *Assembler) descriptions(v Variant) []catalog.LocalizedText {
	src := a.conn.Catalog.DescriptionSource
	if !src.IsSet() {
		src = defaultDescriptionSource
	}
	return a.localized(v, func(p, parent *catalog.Product) string {
		return nl2br(src.Resolve(p, parent))
	})
}

func (a *Assembler) urls(v Variant) []catalog.LocalizedText {
	return a.localized(v, func(p, _ *catalog.Product) string {
		return p.Permalink
	})
}

// localized evaluates get per export language on the translated product and
// falls back to the translated parent when the variation has no value
func (a *Assembler) localized(v Variant, get func(p, parent *catalog.Product) string) []catalog.LocalizedText {
	var out []catalog.LocalizedText
	def := a.defaultLanguage()
	for _, lang := range a.languages {
		p := localize(v.Product, lang, def)
		parent := localize(v.Parent, lang, def)
		value := strings.TrimSpace(get(p, parent))
		if value == "" && parent != nil {
			value = strings.TrimSpace(get(parent, nil))
		}
		if value != "" {
			out = append(out, catalog.LocalizedText{Language: lang, Value: value})
		}
	}
	return out
}

// localize returns the product as seen in a language. Missing translations
// and empty translated fields fall back to the default language copy.
func localize(p *catalog.Product, lang, defaultLanguage string) *catalog.Product {
	if p == nil || lang == defaultLanguage {
		return p
	}
	t, ok := p.Translation(lang)
	if !ok {
		return p
	}
	c := *p
	if t.Name != "" {
		c.Name = t.Name
	}
	if t.Description != "" {
		c.Description = t.Description
	}
	if t.ShortDescription != "" {
		c.ShortDescription = t.ShortDescription
	}
	if t.Permalink != "" {
		c.Permalink = t.Permalink
	}
	return &c
}

func localizedName(p *catalog.Product, lang, defaultLanguage string) string {
	return localize(p, lang, defaultLanguage).Name
}

func nl2br(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

// Images returns the main image followed by the gallery, unique by URL and
// capped at MaxImages. Variations without images use the parent's.
func Images(p, parent *catalog.Product) []catalog.Image {
	urls := imageURLs(p)
	if len(urls) == 0 && parent != nil {
		urls = imageURLs(parent)
	}

	seen := make(map[string]struct{}, len(urls))
	images := make([]catalog.Image, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, catalog.Image{URL: u, Order: len(images) + 1})
		if len(images) == MaxImages {
			break
		}
	}
	return images
}

func imageURLs(p *catalog.Product) []string {
	urls := make([]string, 0, len(p.GalleryURLs)+1)
	if p.ImageURL != "" {
		urls = append(urls, p.ImageURL)
	}
	for _, u := range p.GalleryURLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
