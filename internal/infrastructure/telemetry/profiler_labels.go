package telemetry

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation  = "operation"
	ProfilingLabelConnection = "connection_id"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelController = "controller"
	ProfilingLabelRegion     = "region"
)

// Profiled regions inside a catalog export. Scheduled jobs are labelled
// with their job type as the operation.
const (
	RegionCatalogBuild    = "catalog_build"
	RegionOptionReconcile = "option_reconcile"
)

const (
	maxProfilingLabelLength  = 128
	profilingLabelKeyAllowed = "abcdefghijklmnopqrstuvwxyz0123456789_"
)

// highCardinalityLabels never become profiling labels; each value would
// create its own profile series.
var highCardinalityLabels = map[string]bool{
	"order_id":            true,
	"remote_order_number": true,
	"product_id":          true,
	"request_id":          true,
	"trace_id":            true,
	"span_id":             true,
}

// WithProfilingLabels runs fn with the labels attached to every profile
// sample it produces. Empty and high-cardinality labels are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// SyncOperationLabels labels one sync operation for a connection. Connection
// counts are small, so the id is safe as a label.
func SyncOperationLabels(operation string, connectionID int64) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if connectionID > 0 {
		labels[ProfilingLabelConnection] = strconv.FormatInt(connectionID, 10)
	}
	return labels
}

// RegionLabels labels a code region inside an already labelled operation
func RegionLabels(region string) map[string]string {
	return map[string]string{ProfilingLabelRegion: region}
}

// sanitizeLabels returns key/value pairs sorted by sanitized key
func sanitizeLabels(labels map[string]string) []string {
	clean := make(map[string]string, len(labels))
	for k, v := range labels {
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > maxProfilingLabelLength {
			v = v[:maxProfilingLabelLength]
		}
		clean[key] = v
	}

	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, clean[k])
	}
	return pairs
}

// sanitizeLabelKey lower-cases the key and keeps only snake_case characters
func sanitizeLabelKey(key string) string {
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(key))
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(profilingLabelKeyAllowed, r) {
			return r
		}
		return -1
	}, key)
}
