package catalog

import (
	"github.com/marketsync/backend/internal/domain/catalog"
)

// Variant is one sellable option of a root product
type Variant struct {
	// Product is the simple product or the variation the option is built from
	Product *catalog.Product
	// Parent is the variable product, nil for simple products
	Parent *catalog.Product
	// Attributes are rendered on the option. Generated variations carry only
	// their selected value per attribute.
	Attributes []catalog.ProductAttribute
	// Selection identifies the option
	Selection catalog.AttributeSnapshot
}

// RootID returns the id of the product the option is exported under
func (v Variant) RootID() int64 {
	if v.Parent != nil {
		return v.Parent.ID
	}
	return v.Product.RootID()
}

// SimpleVariant returns the single option of a simple product
func SimpleVariant(p *catalog.Product) Variant {
	selection := make(catalog.AttributeSnapshot, len(p.Attributes))
	for _, a := range p.Attributes {
		for _, o := range a.Options {
			selection[a.Key] = append(selection[a.Key], o.Slug)
		}
	}
	return Variant{
		Product:    p,
		Attributes: p.Attributes,
		Selection:  selection,
	}
}

type variantAxis struct {
	attr   catalog.ProductAttribute
	values []string
}

// GenerateVariants expands the variations of a variable product into options.
// A variation leaving an attribute on "any" yields one option per value of the
// parent's domain for that attribute. Options of fully fixed variations are
// moved to the front so they win later identifier and EAN collisions.
func GenerateVariants(parent *catalog.Product, variations []catalog.Product) []Variant {
	var out []Variant
	for i := range variations {
		variation := &variations[i]

		var axes []variantAxis
		fixed := true
		for _, attr := range parent.Attributes {
			if !attr.Variation {
				continue
			}
			value, ok := variation.VariationValue(attr.Key)
			if !ok {
				continue
			}
			if value == "" {
				fixed = false
				axes = append(axes, variantAxis{attr: attr, values: optionSlugs(attr)})
				continue
			}
			axes = append(axes, variantAxis{attr: attr, values: []string{value}})
		}
		for _, va := range variation.VariationAttributes {
			if va.Value == "" {
				fixed = false
			}
		}

		for _, combination := range combinations(axes) {
			v := Variant{
				Product:    variation,
				Parent:     parent,
				Attributes: make([]catalog.ProductAttribute, 0, len(axes)),
				Selection:  make(catalog.AttributeSnapshot, len(axes)),
			}
			for j, axis := range axes {
				slug := combination[j]
				selected := axis.attr
				selected.Options = []catalog.AttributeOption{optionBySlug(axis.attr, slug)}
				v.Attributes = append(v.Attributes, selected)
				v.Selection[axis.attr.Key] = []string{slug}
			}
			if fixed {
				out = append([]Variant{v}, out...)
			} else {
				out = append(out, v)
			}
		}
	}
	return out
}

// combinations returns the Cartesian product of the axis values in axis order
func combinations(axes []variantAxis) [][]string {
	result := [][]string{{}}
	for _, axis := range axes {
		next := make([][]string, 0, len(result)*len(axis.values))
		for _, prefix := range result {
			for _, value := range axis.values {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, value))
			}
		}
		result = next
	}
	return result
}

func optionSlugs(attr catalog.ProductAttribute) []string {
	slugs := make([]string, 0, len(attr.Options))
	for _, o := range attr.Options {
		slugs = append(slugs, o.Slug)
	}
	return slugs
}

func optionBySlug(attr catalog.ProductAttribute, slug string) catalog.AttributeOption {
	for _, o := range attr.Options {
		if o.Slug == slug {
			return o
		}
	}
	return catalog.AttributeOption{Slug: slug, Name: slug}
}
