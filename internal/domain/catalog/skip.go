package catalog

// SkipReason explains why an option or product was left out of an export
type SkipReason string

const (
	SkipNone                SkipReason = ""
	SkipMissingSKU          SkipReason = "missing_sku"
	SkipIdentifierFailed    SkipReason = "identifier_failed"
	SkipDuplicateIdentifier SkipReason = "duplicate_identifier"
	SkipInvalidEAN          SkipReason = "invalid_ean"
	SkipDuplicateEAN        SkipReason = "duplicate_ean"
	SkipNoOptions           SkipReason = "no_options"
	SkipNoOptionRows        SkipReason = "no_option_rows"
	SkipStoreError          SkipReason = "store_error"
)

// String returns the string representation
func (r SkipReason) String() string {
	return string(r)
}

// Message returns the log message for a skip
func (r SkipReason) Message() string {
	switch r {
	case SkipMissingSKU:
		return "Skipping product because it has no identifier."
	case SkipIdentifierFailed:
		return "Skipping product because its option identifier could not be resolved."
	case SkipDuplicateIdentifier:
		return "Skipping product because of duplicate identifier."
	case SkipInvalidEAN:
		return "Skipping product because of an invalid EAN."
	case SkipDuplicateEAN:
		return "Skipping product because of duplicate EAN."
	case SkipNoOptions:
		return "Skipping product because it is empty."
	case SkipNoOptionRows:
		return "Skipping product because it was never exported in a catalog."
	case SkipStoreError:
		return "Error when adding product."
	}
	return ""
}
