package catalog

import "encoding/xml"

// ContentType names an export document kind; it is also the artifact directory
type ContentType string

const (
	ContentTypeCatalog     ContentType = "catalog_export"
	ContentTypeOfferUpdate ContentType = "offer_update"
)

// DocumentRoot is the root element of every export document
const DocumentRoot = "products"

// LocalizedText is a language tagged CDATA value
type LocalizedText struct {
	Language string `xml:"language,attr"`
	Value    string `xml:",cdata"`
}

// Image is a product image in display order, starting at 1
type Image struct {
	URL   string `xml:"url"`
	Order int    `xml:"order"`
}

// AttributeValue is one value of an exported attribute
type AttributeValue struct {
	Code  string          `xml:"code"`
	Names []LocalizedText `xml:"names>name"`
}

// Attribute is an exported option attribute
type Attribute struct {
	Code   string           `xml:"code"`
	Names  []LocalizedText  `xml:"names>name"`
	Values []AttributeValue `xml:"values>value"`
}

// Optional lists are pointers so that absent lists emit no wrapper element.

// TitleList wraps localized titles
type TitleList struct {
	Items []LocalizedText `xml:"title"`
}

// DescriptionList wraps localized descriptions
type DescriptionList struct {
	Items []LocalizedText `xml:"description"`
}

// URLList wraps localized product urls
type URLList struct {
	Items []LocalizedText `xml:"url"`
}

// ImageList wraps product images
type ImageList struct {
	Items []Image `xml:"image"`
}

// AttributeList wraps option attributes
type AttributeList struct {
	Items []Attribute `xml:"attribute"`
}

// CategoryList wraps categories of one tree level
type CategoryList struct {
	Items []*CategoryNode `xml:"category"`
}

// OptionRecord is one exported option. Catalog documents fill every field,
// offer documents only identifier, stock, cost, deliveryTime and prices.
type OptionRecord struct {
	Identifier    int64            `xml:"identifier"`
	SKU           string           `xml:"sku,omitempty"`
	Stock         int              `xml:"stock"`
	EAN           string           `xml:"ean,omitempty"`
	Titles        *TitleList       `xml:"titles,omitempty"`
	Descriptions  *DescriptionList `xml:"descriptions,omitempty"`
	URLs          *URLList         `xml:"urls,omitempty"`
	Cost          string           `xml:"cost,omitempty"`
	DeliveryTime  string           `xml:"deliveryTime,omitempty"`
	Images        *ImageList       `xml:"images,omitempty"`
	Price         string           `xml:"price"`
	PriceOriginal string           `xml:"priceOriginal,omitempty"`
	Attributes    *AttributeList   `xml:"attributes,omitempty"`
}

// ProductRecord groups the exported options of one root product
type ProductRecord struct {
	XMLName    xml.Name       `xml:"product"`
	Identifier int64          `xml:"identifier"`
	Brand      string         `xml:"brand,omitempty"`
	Options    []OptionRecord `xml:"options>option"`
	Categories *CategoryList  `xml:"categories,omitempty"`
}

// ---------------------------------------------------------------------------
// Category tree
// ---------------------------------------------------------------------------

// CategoryNode is one category in an exported tree
type CategoryNode struct {
	ID       int64           `xml:"id"`
	Titles   []LocalizedText `xml:"titles>title"`
	Children *CategoryList   `xml:"children,omitempty"`
}

// ChildNodes returns the direct children of the node
func (n *CategoryNode) ChildNodes() []*CategoryNode {
	if n.Children == nil {
		return nil
	}
	return n.Children.Items
}

// MergeCategoryPaths merges root-to-leaf paths into one tree. Nodes sharing
// an id at the same level collapse; the first occurrence keeps its titles and
// children lists are merged. Order follows first appearance.
func MergeCategoryPaths(paths [][]CategoryNode) []*CategoryNode {
	var roots []*CategoryNode
	for _, path := range paths {
		level := &roots
		for i, c := range path {
			node := findNode(*level, c.ID)
			if node == nil {
				node = &CategoryNode{ID: c.ID, Titles: c.Titles}
				*level = append(*level, node)
			}
			if i == len(path)-1 {
				break
			}
			if node.Children == nil {
				node.Children = &CategoryList{}
			}
			level = &node.Children.Items
		}
	}
	return roots
}

func findNode(nodes []*CategoryNode, id int64) *CategoryNode {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
