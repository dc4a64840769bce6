package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/marketsync/backend/internal/domain/catalog"
)

// FixedAttributePrefix prefixes the codes of attributes built from core product fields
const FixedAttributePrefix = "ecdefault_"

// BrandAttributeCode is the code of the brand attribute
const BrandAttributeCode = "brand"

// fixedAttributeKeys lists the core fields exported as attributes, in export order
var fixedAttributeKeys = []string{
	"width",
	"height",
	"length",
	"weight",
	"parent_title",
	"variation_title",
	"backorders",
}

// SanitizeCode turns a label into an attribute code: accents stripped,
// lower case, runs of other characters collapsed into a dash
func SanitizeCode(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	dash := false
	for _, r := range strings.ToLower(stripped) {
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

func valueCode(key, value string) string {
	return key + "-" + SanitizeCode(value)
}

// attributeBuilder renders the attribute list of one option
type attributeBuilder struct {
	languages         []string
	defaultLanguage   string
	includeTaxonomies bool
	brandSource       catalog.AttributeSource
}

// build merges every attribute source in order and drops duplicates
func (b *attributeBuilder) build(v Variant) []catalog.Attribute {
	root := v.Product
	if v.Parent != nil {
		root = v.Parent
	}

	var all []catalog.Attribute
	if b.includeTaxonomies {
		all = append(all, b.taxonomies(root)...)
	}
	all = append(all, b.productAttributes(v)...)
	all = append(all, b.fixedAttributes(v)...)
	all = append(all, b.brand(v)...)
	all = append(all, b.customFields(root)...)
	all = append(all, b.meta(v.Product)...)
	return DeduplicateAttributes(all)
}

// DeduplicateAttributes keeps the first attribute per code and the first
// value per value code
func DeduplicateAttributes(attrs []catalog.Attribute) []catalog.Attribute {
	seen := make(map[string]struct{}, len(attrs))
	out := make([]catalog.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if _, dup := seen[a.Code]; dup {
			continue
		}
		seen[a.Code] = struct{}{}

		seenValues := make(map[string]struct{}, len(a.Values))
		values := make([]catalog.AttributeValue, 0, len(a.Values))
		for _, v := range a.Values {
			if _, dup := seenValues[v.Code]; dup {
				continue
			}
			seenValues[v.Code] = struct{}{}
			values = append(values, v)
		}
		a.Values = values
		out = append(out, a)
	}
	return out
}

// sameForAll returns the value tagged with every export language
func (b *attributeBuilder) sameForAll(value string) []catalog.LocalizedText {
	if value == "" {
		return nil
	}
	texts := make([]catalog.LocalizedText, 0, len(b.languages))
	for _, lang := range b.languages {
		texts = append(texts, catalog.LocalizedText{Language: lang, Value: value})
	}
	return texts
}

// listAttribute builds an attribute whose values are the same in every language
func (b *attributeBuilder) listAttribute(code, label string, values []string) (catalog.Attribute, bool) {
	attr := catalog.Attribute{Code: code, Names: b.sameForAll(label)}
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		attr.Values = append(attr.Values, catalog.AttributeValue{
			Code:  valueCode(code, value),
			Names: b.sameForAll(value),
		})
	}
	return attr, len(attr.Values) > 0
}

func (b *attributeBuilder) taxonomies(root *catalog.Product) []catalog.Attribute {
	var out []catalog.Attribute
	for _, t := range root.Taxonomies {
		label := t.Label
		if label == "" {
			label = t.Taxonomy
		}
		if attr, ok := b.listAttribute(t.Taxonomy, label, t.Terms); ok {
			out = append(out, attr)
		}
	}
	return out
}

func (b *attributeBuilder) productAttributes(v Variant) []catalog.Attribute {
	var out []catalog.Attribute
	for _, pa := range v.Attributes {
		attr := catalog.Attribute{Code: pa.Key}
		for _, lang := range b.languages {
			if name := b.translated(pa.Labels, lang, pa.Name); name != "" {
				attr.Names = append(attr.Names, catalog.LocalizedText{Language: lang, Value: name})
			}
		}
		for _, o := range pa.Options {
			value := catalog.AttributeValue{Code: valueCode(pa.Key, o.Slug)}
			for _, lang := range b.languages {
				if name := b.translated(o.Names, lang, o.Name); name != "" {
					value.Names = append(value.Names, catalog.LocalizedText{Language: lang, Value: name})
				}
			}
			if len(value.Names) == 0 {
				continue
			}
			attr.Values = append(attr.Values, value)
		}
		if len(attr.Values) == 0 {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// translated looks up a language, then the default language, then the fallback
func (b *attributeBuilder) translated(names map[string]string, lang, fallback string) string {
	if n := names[lang]; n != "" {
		return n
	}
	if n := names[b.defaultLanguage]; n != "" {
		return n
	}
	return fallback
}

func (b *attributeBuilder) fixedAttributes(v Variant) []catalog.Attribute {
	var out []catalog.Attribute
	for _, key := range fixedAttributeKeys {
		var names []catalog.LocalizedText
		code := ""
		for _, lang := range b.languages {
			value := b.fixedValue(v, key, lang)
			if value == "" {
				continue
			}
			if code == "" {
				code = SanitizeCode(value)
			}
			names = append(names, catalog.LocalizedText{Language: lang, Value: value})
		}
		if code == "" {
			continue
		}
		out = append(out, catalog.Attribute{
			Code:   FixedAttributePrefix + key,
			Names:  b.sameForAll(key + " (Fixed Attribute)"),
			Values: []catalog.AttributeValue{{Code: code, Names: names}},
		})
	}
	return out
}

func (b *attributeBuilder) fixedValue(v Variant, key, lang string) string {
	p := v.Product
	switch key {
	case "width":
		return p.Width
	case "height":
		return p.Height
	case "length":
		return p.Length
	case "weight":
		return p.Weight
	case "parent_title":
		if v.Parent != nil {
			return localizedName(v.Parent, lang, b.defaultLanguage)
		}
		return localizedName(p, lang, b.defaultLanguage)
	case "variation_title":
		return localizedName(p, lang, b.defaultLanguage)
	case "backorders":
		return string(p.Backorders)
	}
	return ""
}

func (b *attributeBuilder) brand(v Variant) []catalog.Attribute {
	if !b.brandSource.IsSet() {
		return nil
	}
	var values []string
	if b.brandSource.Kind == catalog.AttributeSourcePlugin {
		values = pluginValues(v.Product, b.brandSource)
		if len(values) == 0 && v.Parent != nil {
			values = pluginValues(v.Parent, b.brandSource)
		}
	} else if value := b.brandSource.Resolve(v.Product, v.Parent); value != "" {
		values = []string{value}
	}
	if attr, ok := b.listAttribute(BrandAttributeCode, "Brand", values); ok {
		return []catalog.Attribute{attr}
	}
	return nil
}

func pluginValues(p *catalog.Product, src catalog.AttributeSource) []string {
	if p.PluginFields == nil {
		return nil
	}
	return p.PluginFields[src.Provider][src.Key]
}

func (b *attributeBuilder) customFields(root *catalog.Product) []catalog.Attribute {
	var out []catalog.Attribute
	for _, f := range root.CustomFields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		if attr, ok := b.listAttribute(f.Name, label, f.Values); ok {
			out = append(out, attr)
		}
	}
	return out
}

func (b *attributeBuilder) meta(p *catalog.Product) []catalog.Attribute {
	var out []catalog.Attribute
	for _, m := range p.Meta {
		if m.Key == "" || strings.HasPrefix(m.Key, "_") {
			continue
		}
		if attr, ok := b.listAttribute(m.Key, m.Key, m.Values); ok {
			out = append(out, attr)
		}
	}
	return out
}
