package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/infrastructure/config"
)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	a, err := NewAdapter(&config.StorefrontConfig{BaseURL: srv.URL + "/", ConsumerKey: "ck", ConsumerSecret: "cs"})
	require.NoError(t, err)
	return a
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewAdapter_RequiresBaseURL(t *testing.T) {
	_, err := NewAdapter(&config.StorefrontConfig{})
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dark Red", "dark-red"},
		{"Café Crème", "cafe-creme"},
		{"  Large / XL ", "large-xl"},
		{"pa_color", "pa_color"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestAdapter_ListProducts_ChainsTypes(t *testing.T) {
	byType := map[string][]map[string]any{
		"simple":   {{"id": 1, "type": "simple"}, {"id": 2, "type": "simple"}, {"id": 3, "type": "simple"}},
		"variable": {{"id": 10, "type": "variable"}, {"id": 11, "type": "variable"}},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "publish", q.Get("status"))
		items := byType[q.Get("type")]
		offset, _ := strconv.Atoi(q.Get("offset"))
		perPage, _ := strconv.Atoi(q.Get("per_page"))
		if offset > len(items) {
			offset = len(items)
		}
		end := offset + perPage
		if end > len(items) {
			end = len(items)
		}
		w.Header().Set(totalHeader, strconv.Itoa(len(items)))
		writeJSON(w, items[offset:end])
	})
	a := newTestAdapter(t, mux)

	ids := func(page int) []int64 {
		products, err := a.ListProducts(context.Background(), catalog.ProductQuery{
			Page:          page,
			PageSize:      2,
			Types:         []catalog.ProductType{catalog.ProductTypeSimple, catalog.ProductTypeVariable},
			OnlyPublished: true,
		})
		require.NoError(t, err)
		out := make([]int64, 0, len(products))
		for _, p := range products {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Equal(t, []int64{1, 2}, ids(1))
	assert.Equal(t, []int64{3, 10}, ids(2))
	assert.Equal(t, []int64{11}, ids(3))
	assert.Empty(t, ids(4))
}

func variableProductMux(termCalls *int32) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products/10", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id":   10,
			"type": "variable",
			"name": "Shirt",
			"attributes": []map[string]any{
				{"id": 1, "name": "Color", "slug": "pa_color", "variation": true, "options": []string{"Dark Red", "Blue"}},
				{"id": 0, "name": "Size", "variation": true, "options": []string{"Large XL"}},
				{"id": 0, "name": "Fabric", "variation": false, "options": []string{"Cotton"}},
			},
			"categories": []map[string]any{{"id": 4, "name": "Shirts"}},
			"variations": []int64{101},
		})
	})
	mux.HandleFunc("/wp-json/wc/v3/products/10/variations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{
			"id":             101,
			"sku":            "SH-RED",
			"regular_price":  "20.00",
			"price":          "17.50",
			"manage_stock":   "parent",
			"stock_quantity": 4,
			"image":          map[string]any{"src": "https://shop.test/red.jpg"},
			"attributes":     []map[string]any{{"id": 1, "name": "Color", "option": "Dark Red"}},
		}})
	})
	mux.HandleFunc("/wp-json/wc/v3/products/attributes/1/terms", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(termCalls, 1)
		writeJSON(w, []map[string]any{
			{"id": 5, "name": "Dark Red", "slug": "dark-red-2"},
			{"id": 6, "name": "Blue", "slug": "blue"},
		})
	})
	return mux
}

func TestAdapter_ListVariations(t *testing.T) {
	var termCalls int32
	a := newTestAdapter(t, variableProductMux(&termCalls))
	ctx := context.Background()

	variations, err := a.ListVariations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, variations, 1)

	v := variations[0]
	assert.Equal(t, int64(10), v.ParentID)
	assert.Equal(t, catalog.ProductTypeVariation, v.Type)
	assert.Equal(t, "Shirt", v.ParentName)
	assert.Equal(t, "Shirt", v.Title())
	assert.True(t, v.ManageStock)
	assert.Equal(t, 4, v.StockQuantity)
	assert.Equal(t, "17.5", v.Price.String())
	assert.Equal(t, "https://shop.test/red.jpg", v.ImageURL)
	assert.Equal(t, []int64{4}, v.CategoryIDs)
	assert.Equal(t, []catalog.VariationAttribute{
		{Key: "pa_color", Value: "dark-red-2"},
		{Key: "Size", Value: ""},
	}, v.VariationAttributes)

	parent, err := a.GetProduct(ctx, 10)
	require.NoError(t, err)
	color, ok := parent.Attribute("pa_color")
	require.True(t, ok)
	assert.True(t, color.Global)
	assert.Equal(t, []catalog.AttributeOption{
		{TermID: 5, Slug: "dark-red-2", Name: "Dark Red"},
		{TermID: 6, Slug: "blue", Name: "Blue"},
	}, color.Options)
	size, ok := parent.Attribute("Size")
	require.True(t, ok)
	assert.False(t, size.Global)
	assert.Equal(t, "large-xl", size.Options[0].Slug)
	assert.Equal(t, []string{"Dark Red", "Blue"}, parent.TaxonomyTerms("pa_color"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&termCalls))
}

func TestAdapter_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"woocommerce_rest_product_invalid_id","message":"Invalid ID."}`)
	})
	mux.HandleFunc("/wp-json/wc/v3/products/8", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/wp-json/wc/v3/products/categories/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/wp-json/wc/v3/products/categories/4", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 4, "parent": 2, "name": "Shirts"})
	})
	a := newTestAdapter(t, mux)
	ctx := context.Background()

	_, err := a.GetProduct(ctx, 7)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = a.GetProduct(ctx, 8)
	assert.ErrorIs(t, err, catalog.ErrStoreUnavailable)

	_, err = a.GetCategory(ctx, 3)
	assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)

	c, err := a.GetCategory(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, catalog.Category{ID: 4, ParentID: 2, Name: "Shirts"}, *c)
}

func TestAdapter_GetProduct_FieldsAndTranslations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id":               1,
			"type":             "simple",
			"name":             "Mug",
			"global_unique_id": "0123456789012",
			"stock_status":     "onbackorder",
			"backorders":       "notify",
			"tags":             []map[string]any{{"id": 1, "name": "Kitchen"}},
			"brands":           []map[string]any{{"id": 2, "name": "Acme"}},
			"meta_data": []map[string]any{
				{"id": 1, "key": "_ean", "value": "871234"},
				{"id": 2, "key": "sizes", "value": []any{"S", 2}},
				{"id": 3, "key": "nested", "value": map[string]any{"a": 1}},
			},
			"acf":          map[string]any{"material": "stoneware", "dishwasher": true},
			"translations": map[string]int64{"en": 1, "de": 2},
			"images":       []map[string]any{{"src": "a.jpg"}, {"src": "b.jpg"}},
		})
	})
	mux.HandleFunc("/wp-json/wc/v3/products/2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 2, "name": "Becher", "permalink": "https://shop.test/de/becher"})
	})
	a := newTestAdapter(t, mux)

	p, err := a.GetProduct(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, p.BackordersAllowed())
	assert.True(t, p.InStock())
	assert.Equal(t, "a.jpg", p.ImageURL)
	assert.Equal(t, []string{"b.jpg"}, p.GalleryURLs)
	assert.Equal(t, []string{"Kitchen"}, p.TaxonomyTerms(taxonomyTags))
	assert.Equal(t, []string{"Acme"}, p.TaxonomyTerms(taxonomyBrands))
	assert.Equal(t, []string{"0123456789012"}, p.PluginFields[pluginWooCommerce]["global_unique_id"])
	assert.Equal(t, []string{"871234"}, p.PluginFields[pluginMeta]["_ean"])
	assert.Equal(t, []catalog.MetaEntry{
		{Key: "_ean", Values: []string{"871234"}},
		{Key: "sizes", Values: []string{"S", "2"}},
		{Key: "nested"},
	}, p.Meta)
	assert.Equal(t, []catalog.CustomField{
		{Name: "dishwasher", Label: "dishwasher", Values: []string{"true"}},
		{Name: "material", Label: "material", Values: []string{"stoneware"}},
	}, p.CustomFields)

	require.Len(t, p.Translations, 1)
	de, ok := p.Translation("de")
	require.True(t, ok)
	assert.Equal(t, "Becher", de.Name)
	assert.Equal(t, []int64{2}, p.TranslationIDs())
}

func TestAdapter_GetProduct_VariationWithoutParent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products/101", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 101, "parent_id": 10, "type": "variation"})
	})
	mux.HandleFunc("/wp-json/wc/v3/products/10", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	a := newTestAdapter(t, mux)

	_, err := a.GetProduct(context.Background(), 101)
	assert.ErrorIs(t, err, catalog.ErrVariationWithoutParentFound)
}

func TestGetAll_Pages(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/products/attributes/2/terms", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		n := maxPageSize
		if page == 2 {
			n = 3
		}
		terms := make([]attributeTerm, n)
		for i := range terms {
			terms[i] = attributeTerm{ID: int64(page*1000 + i), Slug: fmt.Sprintf("t-%d-%d", page, i)}
		}
		writeJSON(w, terms)
	})
	a := newTestAdapter(t, mux)

	terms, err := a.attributeTerms(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, terms, maxPageSize+3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
