package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
)

const codePlaceholder = "[code]"

// CarrierShipmentMetaKeys are the order meta keys carrier plugins store
// their shipments under
var CarrierShipmentMetaKeys = []string{
	"_myparcel_shipments",
	"_myparcelbe_shipments",
	"_postnl_shipments",
}

// IsCarrierShipmentMetaKey reports whether a meta key holds carrier shipments
func IsCarrierShipmentMetaKey(key string) bool {
	for _, k := range CarrierShipmentMetaKeys {
		if k == key {
			return true
		}
	}
	return false
}

// NormalizeStatus adds the storefront "wc-" prefix when missing
func NormalizeStatus(status string) string {
	if strings.HasPrefix(status, "wc-") {
		return status
	}
	return "wc-" + status
}

// TrackingExtractor finds tracking codes in order notes. Each pattern is a
// literal text where every [code] placeholder matches any text; the last
// placeholder's match is the code.
type TrackingExtractor struct {
	patterns []*regexp.Regexp
}

// NewTrackingExtractor compiles the patterns
func NewTrackingExtractor(patterns []string) (*TrackingExtractor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimRight(p, "\r")
		if strings.TrimSpace(p) == "" {
			continue
		}
		// a pattern without a placeholder matches literally and yields the matched text
		expr := strings.ReplaceAll(regexp.QuoteMeta(p), regexp.QuoteMeta(codePlaceholder), "(.*)")
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("order: compile tracking pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &TrackingExtractor{patterns: compiled}, nil
}

// Extract searches notes newest first; within a note the patterns are tried
// in order and the first match wins.
func (x *TrackingExtractor) Extract(notes []OrderNote) (string, bool) {
	sorted := make([]OrderNote, len(notes))
	copy(sorted, notes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	for _, n := range sorted {
		content := html.UnescapeString(n.Content)
		for _, re := range x.patterns {
			m := re.FindStringSubmatch(content)
			if m == nil {
				continue
			}
			return strings.TrimSpace(m[len(m)-1]), true
		}
	}
	return "", false
}

// CarrierTrackingCode returns the track & trace code of the first shipment
// stored by a carrier plugin. The meta value is a JSON object keyed by
// shipment id, or a JSON array of shipments.
func CarrierTrackingCode(metaValue string) (string, bool) {
	first, ok := firstJSONElement([]byte(metaValue))
	if !ok {
		return "", false
	}
	var shipment struct {
		TrackTrace any `json:"track_trace"`
	}
	if err := json.Unmarshal(first, &shipment); err != nil {
		return "", false
	}
	switch v := shipment.TrackTrace.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		return fmt.Sprintf("%.0f", v), true
	}
	return "", false
}

// firstJSONElement returns the first value of a JSON object or array in document order
func firstJSONElement(data []byte) (json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, false
	}
	if !dec.More() {
		return nil, false
	}
	if delim == '{' {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
	} else if delim != '[' {
		return nil, false
	}
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return nil, false
	}
	return first, true
}
