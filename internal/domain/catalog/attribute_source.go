package catalog

import (
	"fmt"
	"strings"
)

// AttributeSourceKind tags where a configured product value comes from
type AttributeSourceKind string

const (
	AttributeSourceNone      AttributeSourceKind = ""
	AttributeSourceTaxonomy  AttributeSourceKind = "taxonomy"
	AttributeSourceCoreField AttributeSourceKind = "core"
	AttributeSourcePlugin    AttributeSourceKind = "plugin"
	AttributeSourceAttribute AttributeSourceKind = "attribute"
)

// AttributeSource selects a product value such as the EAN or the brand.
// It is resolved once from configuration; products are never sniffed by key prefix.
type AttributeSource struct {
	Kind AttributeSourceKind
	// Key is the taxonomy, core field, plugin field or attribute key
	Key string
	// Provider identifies the plugin for AttributeSourcePlugin
	Provider string
}

// coreFields are the product fields addressable as core sources
var coreFields = map[string]func(p *Product) string{
	"sku":               func(p *Product) string { return p.SKU },
	"name":              func(p *Product) string { return p.Name },
	"title":             func(p *Product) string { return p.Title() },
	"description":       func(p *Product) string { return p.Description },
	"short_description": func(p *Product) string { return p.ShortDescription },
	"weight":            func(p *Product) string { return p.Weight },
	"length":            func(p *Product) string { return p.Length },
	"width":             func(p *Product) string { return p.Width },
	"height":            func(p *Product) string { return p.Height },
	"regular_price":     func(p *Product) string { return p.RegularPrice.String() },
	"price":             func(p *Product) string { return p.Price.String() },
	"backorders":        func(p *Product) string { return string(p.Backorders) },
	"stock_status":      func(p *Product) string { return string(p.StockStatus) },
}

// ParseAttributeSource parses the stored form: "", "taxonomy:<name>",
// "core:<field>", "plugin:<provider>:<key>" or "attribute:<key>"
func ParseAttributeSource(s string) (AttributeSource, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AttributeSource{}, nil
	}
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return AttributeSource{}, fmt.Errorf("%w: %q", ErrInvalidAttributeSource, s)
	}
	switch AttributeSourceKind(kind) {
	case AttributeSourceTaxonomy, AttributeSourceAttribute:
		return AttributeSource{Kind: AttributeSourceKind(kind), Key: rest}, nil
	case AttributeSourceCoreField:
		if _, known := coreFields[rest]; !known {
			return AttributeSource{}, fmt.Errorf("%w: unknown core field %q", ErrInvalidAttributeSource, rest)
		}
		return AttributeSource{Kind: AttributeSourceCoreField, Key: rest}, nil
	case AttributeSourcePlugin:
		provider, key, ok := strings.Cut(rest, ":")
		if !ok || provider == "" || key == "" {
			return AttributeSource{}, fmt.Errorf("%w: plugin source needs provider and key", ErrInvalidAttributeSource)
		}
		return AttributeSource{Kind: AttributeSourcePlugin, Provider: provider, Key: key}, nil
	}
	return AttributeSource{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAttributeSource, kind)
}

// MustParseAttributeSource is ParseAttributeSource for literals known to be valid
func MustParseAttributeSource(s string) AttributeSource {
	src, err := ParseAttributeSource(s)
	if err != nil {
		panic(err)
	}
	return src
}

// String returns the stored form
func (s AttributeSource) String() string {
	switch s.Kind {
	case AttributeSourceNone:
		return ""
	case AttributeSourcePlugin:
		return string(s.Kind) + ":" + s.Provider + ":" + s.Key
	default:
		return string(s.Kind) + ":" + s.Key
	}
}

// IsSet reports whether a source is configured
func (s AttributeSource) IsSet() bool {
	return s.Kind != AttributeSourceNone
}

// Resolve returns the configured value for the product. Taxonomies hang off
// the root product, so parent is consulted for variations.
func (s AttributeSource) Resolve(p *Product, parent *Product) string {
	switch s.Kind {
	case AttributeSourceTaxonomy:
		owner := p
		if parent != nil && p.IsVariation() {
			owner = parent
		}
		if terms := owner.TaxonomyTerms(s.Key); len(terms) > 0 {
			return terms[0]
		}
	case AttributeSourceCoreField:
		if get, ok := coreFields[s.Key]; ok {
			return get(p)
		}
	case AttributeSourcePlugin:
		if values := pluginValues(p, s.Provider, s.Key); len(values) > 0 {
			return values[0]
		}
		if parent != nil {
			if values := pluginValues(parent, s.Provider, s.Key); len(values) > 0 {
				return values[0]
			}
		}
	case AttributeSourceAttribute:
		return attributeValue(p, parent, s.Key)
	}
	return ""
}

func pluginValues(p *Product, provider, key string) []string {
	if p == nil || p.PluginFields == nil {
		return nil
	}
	return p.PluginFields[provider][key]
}

// attributeValue mirrors the storefront's comma separated attribute rendering
func attributeValue(p *Product, parent *Product, key string) string {
	if v, ok := p.VariationValue(key); ok && v != "" {
		if parent != nil {
			if attr, ok := parent.Attribute(key); ok {
				for _, o := range attr.Options {
					if o.Slug == v {
						return o.Name
					}
				}
			}
		}
		return v
	}
	attr, ok := p.Attribute(key)
	if !ok && parent != nil {
		attr, ok = parent.Attribute(key)
	}
	if !ok {
		return ""
	}
	names := make([]string, 0, len(attr.Options))
	for _, o := range attr.Options {
		names = append(names, o.Name)
	}
	return strings.Join(names, ", ")
}
