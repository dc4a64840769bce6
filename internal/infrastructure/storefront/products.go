package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/marketsync/backend/internal/domain/catalog"
)

const (
	defaultProductPageSize = 50
	globalAttributePrefix  = "pa_"
	taxonomyTags           = "product_tag"
	taxonomyBrands         = "product_brand"
	pluginWooCommerce      = "woocommerce"
	pluginMeta             = "meta"
	totalHeader            = "X-WP-Total"
)

type wcImage struct {
	Src string `json:"src"`
}

type wcRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type wcAttribute struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	Variation bool     `json:"variation"`
	Options   []string `json:"options"`
	// Option is set on variation attributes
	Option string `json:"option"`
}

type wcMeta struct {
	ID    int64           `json:"id"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type wcProduct struct {
	ID               int64           `json:"id"`
	ParentID         int64           `json:"parent_id"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	SKU              string          `json:"sku"`
	GlobalUniqueID   string          `json:"global_unique_id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ShortDescription string          `json:"short_description"`
	Permalink        string          `json:"permalink"`
	RegularPrice     string          `json:"regular_price"`
	Price            string          `json:"price"`
	ManageStock      json.RawMessage `json:"manage_stock"`
	StockQuantity    *int            `json:"stock_quantity"`
	StockStatus      string          `json:"stock_status"`
	Backorders       string          `json:"backorders"`
	Weight           string          `json:"weight"`
	Dimensions       struct {
		Length string `json:"length"`
		Width  string `json:"width"`
		Height string `json:"height"`
	} `json:"dimensions"`
	Images       []wcImage        `json:"images"`
	Image        *wcImage         `json:"image"`
	Categories   []wcRef          `json:"categories"`
	Tags         []wcRef          `json:"tags"`
	Brands       []wcRef          `json:"brands"`
	Attributes   []wcAttribute    `json:"attributes"`
	Variations   []int64          `json:"variations"`
	MetaData     []wcMeta         `json:"meta_data"`
	ACF          map[string]any   `json:"acf"`
	Translations map[string]int64 `json:"translations"`
}

type wcCategory struct {
	ID     int64  `json:"id"`
	Parent int64  `json:"parent"`
	Name   string `json:"name"`
}

// attributeTerm is one term of a global attribute
type attributeTerm struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Slugify mirrors the storefront's title sanitizing: accents stripped,
// lower case, runs of other characters collapsed into a dash.
func Slugify(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(stripped)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ListProducts returns one page of products. Several types are listed as
// one stream, type after type, so only the last page of the stream is short.
func (a *Adapter) ListProducts(ctx context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	size := q.PageSize
	if size <= 0 {
		size = defaultProductPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	types := make([]string, 0, len(q.Types))
	for _, t := range q.Types {
		types = append(types, string(t))
	}
	if len(types) == 0 {
		types = []string{""}
	}

	offset := (page - 1) * size
	remaining := size
	var raw []wcProduct
	for i, t := range types {
		if remaining == 0 {
			break
		}
		query := map[string]string{}
		if t != "" {
			query["type"] = t
		}
		if q.OnlyPublished {
			query["status"] = catalog.ProductStatusPublished
		}

		if i < len(types)-1 {
			total, err := a.countProducts(ctx, query)
			if err != nil {
				return nil, err
			}
			if offset >= total {
				offset -= total
				continue
			}
		}

		query["offset"] = strconv.Itoa(offset)
		query["per_page"] = strconv.Itoa(remaining)
		var batch []wcProduct
		if err := a.get(ctx, "/products", query, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrStoreUnavailable, err)
		}
		raw = append(raw, batch...)
		remaining -= len(batch)
		offset = 0
	}

	products := make([]catalog.Product, 0, len(raw))
	for i := range raw {
		p, err := a.toProduct(ctx, &raw[i], nil)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, nil
}

func (a *Adapter) countProducts(ctx context.Context, query map[string]string) (int, error) {
	q := map[string]string{"per_page": "1"}
	for k, v := range query {
		q[k] = v
	}
	resp, err := a.send(ctx, http.MethodGet, "/products", q, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", catalog.ErrStoreUnavailable, err)
	}
	total, err := strconv.Atoi(resp.Header().Get(totalHeader))
	if err != nil {
		return 0, fmt.Errorf("%w: missing %s header", catalog.ErrStoreUnavailable, totalHeader)
	}
	return total, nil
}

// GetProduct loads a product or variation by id.
func (a *Adapter) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	w, err := a.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.ParentID == 0 {
		return a.toProduct(ctx, w, nil)
	}
	parent, err := a.getProduct(ctx, w.ParentID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: variation %d", catalog.ErrVariationWithoutParentFound, id)
		}
		return nil, err
	}
	return a.toProduct(ctx, w, parent)
}

// ListVariations loads all variations of a variable product.
func (a *Adapter) ListVariations(ctx context.Context, parentID int64) ([]catalog.Product, error) {
	parent, err := a.getProduct(ctx, parentID)
	if err != nil {
		return nil, err
	}
	raw, err := getAll[wcProduct](ctx, a, fmt.Sprintf("/products/%d/variations", parentID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: product %d: %v", catalog.ErrVariationsUnavailable, parentID, err)
	}
	variations := make([]catalog.Product, 0, len(raw))
	for i := range raw {
		raw[i].ParentID = parentID
		v, err := a.toProduct(ctx, &raw[i], parent)
		if err != nil {
			return nil, err
		}
		variations = append(variations, *v)
	}
	return variations, nil
}

// GetCategory loads a product category.
func (a *Adapter) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	var c wcCategory
	if err := a.get(ctx, fmt.Sprintf("/products/categories/%d", id), nil, &c); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %d", catalog.ErrCategoryNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", catalog.ErrStoreUnavailable, err)
	}
	return &catalog.Category{ID: c.ID, ParentID: c.Parent, Name: c.Name}, nil
}

func (a *Adapter) getProduct(ctx context.Context, id int64) (*wcProduct, error) {
	var w wcProduct
	if err := a.get(ctx, fmt.Sprintf("/products/%d", id), nil, &w); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %d", catalog.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", catalog.ErrStoreUnavailable, err)
	}
	return &w, nil
}

// attributeTerms returns the cached terms of a global attribute.
func (a *Adapter) attributeTerms(ctx context.Context, attributeID int64) ([]attributeTerm, error) {
	a.termsMu.RLock()
	terms, ok := a.terms[attributeID]
	a.termsMu.RUnlock()
	if ok {
		return terms, nil
	}

	terms, err := getAll[attributeTerm](ctx, a, fmt.Sprintf("/products/attributes/%d/terms", attributeID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: attribute %d terms: %v", catalog.ErrStoreUnavailable, attributeID, err)
	}
	a.termsMu.Lock()
	a.terms[attributeID] = terms
	a.termsMu.Unlock()
	return terms, nil
}

func (a *Adapter) termByName(ctx context.Context, attributeID int64, name string) (attributeTerm, error) {
	terms, err := a.attributeTerms(ctx, attributeID)
	if err != nil {
		return attributeTerm{}, err
	}
	for _, t := range terms {
		if t.Name == name || t.Slug == name {
			return t, nil
		}
	}
	return attributeTerm{Name: name, Slug: Slugify(name)}, nil
}

func attributeKey(w wcAttribute) string {
	if w.ID > 0 {
		if w.Slug != "" {
			return w.Slug
		}
		return globalAttributePrefix + Slugify(w.Name)
	}
	return w.Name
}

// toProduct converts a storefront product. parent is set for variations.
func (a *Adapter) toProduct(ctx context.Context, w *wcProduct, parent *wcProduct) (*catalog.Product, error) {
	p := &catalog.Product{
		ID:               w.ID,
		ParentID:         w.ParentID,
		Type:             catalog.ProductType(w.Type),
		Status:           w.Status,
		SKU:              w.SKU,
		Name:             w.Name,
		Description:      w.Description,
		ShortDescription: w.ShortDescription,
		Permalink:        w.Permalink,
		RegularPrice:     parseDecimal(w.RegularPrice),
		Price:            parseDecimal(w.Price),
		ManageStock:      manageStock(w.ManageStock),
		StockStatus:      catalog.StockStatus(w.StockStatus),
		Backorders:       catalog.BackorderMode(w.Backorders),
		Weight:           w.Weight,
		Length:           w.Dimensions.Length,
		Width:            w.Dimensions.Width,
		Height:           w.Dimensions.Height,
		VariationIDs:     w.Variations,
	}
	if w.StockQuantity != nil {
		p.StockQuantity = *w.StockQuantity
	}
	if parent != nil {
		p.Type = catalog.ProductTypeVariation
		p.ParentID = parent.ID
		p.ParentName = parent.Name
	}

	images := w.Images
	if w.Image != nil && w.Image.Src != "" {
		images = append([]wcImage{*w.Image}, images...)
	}
	for i, img := range images {
		if i == 0 {
			p.ImageURL = img.Src
			continue
		}
		p.GalleryURLs = append(p.GalleryURLs, img.Src)
	}

	categories := w.Categories
	if parent != nil && len(categories) == 0 {
		categories = parent.Categories
	}
	for _, c := range categories {
		p.CategoryIDs = append(p.CategoryIDs, c.ID)
	}

	if parent != nil {
		if err := a.fillVariationAttributes(ctx, p, w, parent); err != nil {
			return nil, err
		}
	} else if err := a.fillAttributes(ctx, p, w); err != nil {
		return nil, err
	}

	p.Taxonomies = taxonomies(w)
	p.Meta, p.PluginFields = metaFields(w)
	p.CustomFields = customFields(w.ACF)
	p.Translations = a.translations(ctx, w)
	return p, nil
}

func (a *Adapter) fillAttributes(ctx context.Context, p *catalog.Product, w *wcProduct) error {
	for _, attr := range w.Attributes {
		pa := catalog.ProductAttribute{
			Key:       attributeKey(attr),
			Name:      attr.Name,
			Global:    attr.ID > 0,
			Variation: attr.Variation,
		}
		for _, opt := range attr.Options {
			if !pa.Global {
				pa.Options = append(pa.Options, catalog.AttributeOption{Slug: Slugify(opt), Name: opt})
				continue
			}
			term, err := a.termByName(ctx, attr.ID, opt)
			if err != nil {
				return err
			}
			pa.Options = append(pa.Options, catalog.AttributeOption{TermID: term.ID, Slug: term.Slug, Name: term.Name})
		}
		p.Attributes = append(p.Attributes, pa)
	}
	return nil
}

// fillVariationAttributes lists the variation's values in parent attribute
// order. Parent variation attributes the variation leaves open are "any"
// and get an empty value.
func (a *Adapter) fillVariationAttributes(ctx context.Context, p *catalog.Product, w *wcProduct, parent *wcProduct) error {
	selected := make(map[string]wcAttribute, len(w.Attributes))
	for _, attr := range w.Attributes {
		selected[attributeKey(attr)] = attr
	}
	for _, pattr := range parent.Attributes {
		if !pattr.Variation {
			continue
		}
		key := attributeKey(pattr)
		attr, ok := selected[key]
		if !ok || attr.Option == "" {
			p.VariationAttributes = append(p.VariationAttributes, catalog.VariationAttribute{Key: key})
			continue
		}
		value := Slugify(attr.Option)
		if pattr.ID > 0 {
			term, err := a.termByName(ctx, pattr.ID, attr.Option)
			if err != nil {
				return err
			}
			value = term.Slug
		}
		p.VariationAttributes = append(p.VariationAttributes, catalog.VariationAttribute{Key: key, Value: value})
	}
	return nil
}

func taxonomies(w *wcProduct) []catalog.TaxonomyTerms {
	var out []catalog.TaxonomyTerms
	if len(w.Tags) > 0 {
		out = append(out, catalog.TaxonomyTerms{Taxonomy: taxonomyTags, Label: "Tags", Terms: refNames(w.Tags)})
	}
	if len(w.Brands) > 0 {
		out = append(out, catalog.TaxonomyTerms{Taxonomy: taxonomyBrands, Label: "Brands", Terms: refNames(w.Brands)})
	}
	for _, attr := range w.Attributes {
		if attr.ID == 0 || len(attr.Options) == 0 {
			continue
		}
		out = append(out, catalog.TaxonomyTerms{Taxonomy: attributeKey(attr), Label: attr.Name, Terms: attr.Options})
	}
	return out
}

func refNames(refs []wcRef) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

func metaFields(w *wcProduct) ([]catalog.MetaEntry, map[string]map[string][]string) {
	plugins := map[string]map[string][]string{}
	if w.GlobalUniqueID != "" {
		plugins[pluginWooCommerce] = map[string][]string{"global_unique_id": {w.GlobalUniqueID}}
	}
	if len(w.MetaData) == 0 {
		return nil, plugins
	}

	var meta []catalog.MetaEntry
	exposed := map[string][]string{}
	for _, m := range w.MetaData {
		values := rawValues(m.Value)
		meta = append(meta, catalog.MetaEntry{Key: m.Key, Values: values})
		exposed[m.Key] = append(exposed[m.Key], values...)
	}
	plugins[pluginMeta] = exposed
	return meta, plugins
}

func customFields(acf map[string]any) []catalog.CustomField {
	if len(acf) == 0 {
		return nil
	}
	fields := make([]catalog.CustomField, 0, len(acf))
	for name, v := range acf {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		fields = append(fields, catalog.CustomField{Name: name, Label: name, Values: rawValues(raw)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// rawValues flattens a JSON meta value into strings. Arrays yield one value
// per scalar element, objects and nulls yield nothing.
func rawValues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		items = []json.RawMessage{raw}
	}
	var values []string
	for _, item := range items {
		var v any
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		switch t := v.(type) {
		case string:
			values = append(values, t)
		case float64:
			values = append(values, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			values = append(values, strconv.FormatBool(t))
		}
	}
	return values
}

func (a *Adapter) translations(ctx context.Context, w *wcProduct) map[string]catalog.ProductTranslation {
	if len(w.Translations) == 0 {
		return nil
	}
	out := make(map[string]catalog.ProductTranslation, len(w.Translations))
	for lang, id := range w.Translations {
		if id == w.ID {
			continue
		}
		t, err := a.getProduct(ctx, id)
		if err != nil {
			a.logger.Warn("Failed to load product translation",
				zap.Int64("product_id", w.ID),
				zap.String("language", lang),
				zap.Error(err))
			continue
		}
		out[lang] = catalog.ProductTranslation{
			ProductID:        t.ID,
			Name:             t.Name,
			Description:      t.Description,
			ShortDescription: t.ShortDescription,
			Permalink:        t.Permalink,
		}
	}
	return out
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// manageStock reads manage_stock, which variations report as "parent"
// when stock is managed on the parent.
func manageStock(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s == "parent"
	}
	return false
}
