package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// AttributeSnapshot is the attribute selection identifying one option:
// attribute key -> selected value slugs
type AttributeSnapshot map[string][]string

// ProductOption maps one sellable variant to the identifier the marketplace
// knows it by. The OptionID never changes for a given Hash.
type ProductOption struct {
	OptionID      int64
	ProductID     int64
	VariationID   *int64
	ProductName   string
	AttributeData string
	Hash          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Normalized returns a copy with sorted multi-valued lists and empty values dropped
func (s AttributeSnapshot) Normalized() AttributeSnapshot {
	out := make(AttributeSnapshot, len(s))
	for k, values := range s {
		kept := make([]string, 0, len(values))
		for _, v := range values {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			continue
		}
		sort.Strings(kept)
		out[k] = kept
	}
	return out
}

// MarshalJSON encodes single values as strings and multi values as sorted
// lists. Keys are emitted in sorted order by encoding/json.
func (s AttributeSnapshot) MarshalJSON() ([]byte, error) {
	n := s.Normalized()
	if len(n) == 0 {
		return []byte("[]"), nil
	}
	flat := make(map[string]any, len(n))
	for k, v := range n {
		if len(v) == 1 {
			flat[k] = v[0]
		} else {
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}

// IdentityHash derives the stable option hash from the attribute snapshot and
// the root product id: md5 over the JSON pair [snapshot, productID].
func IdentityHash(snapshot AttributeSnapshot, productID int64) string {
	data, err := json.Marshal(snapshot)
	if err != nil {
		data = []byte("[]")
	}
	payload := make([]byte, 0, len(data)+24)
	payload = append(payload, '[')
	payload = append(payload, data...)
	payload = append(payload, ',')
	payload = strconv.AppendInt(payload, productID, 10)
	payload = append(payload, ']')

	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// SnapshotData returns the JSON stored alongside an option, empty for no attributes
func SnapshotData(snapshot AttributeSnapshot) string {
	if len(snapshot.Normalized()) == 0 {
		return ""
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeSnapshot parses stored attribute data back into a snapshot
func DecodeSnapshot(data string) (AttributeSnapshot, error) {
	if data == "" || data == "[]" {
		return AttributeSnapshot{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	out := make(AttributeSnapshot, len(raw))
	for k, v := range raw {
		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			out[k] = []string{single}
			continue
		}
		var multi []string
		if err := json.Unmarshal(v, &multi); err != nil {
			return nil, err
		}
		out[k] = multi
	}
	return out, nil
}

// OptionRepository persists the option identity mapping
type OptionRepository interface {
	FindByHash(ctx context.Context, hash string) (*ProductOption, error)
	FindByID(ctx context.Context, optionID int64) (*ProductOption, error)
	FindByProduct(ctx context.Context, productID int64) ([]ProductOption, error)
	// InsertIgnore inserts the option unless the hash exists; returns true when inserted
	InsertIgnore(ctx context.Context, option *ProductOption) (bool, error)
	UpdateMetadata(ctx context.Context, hash string, variationID *int64, name string) error
	// DeleteWhereHashNotIn removes every option whose hash is not listed
	DeleteWhereHashNotIn(ctx context.Context, hashes []string) (int64, error)
	Count(ctx context.Context) (int64, error)
}
