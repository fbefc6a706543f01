package constants

// ReceiptStatus is the parse status written to the receipt record API.
type ReceiptStatus string

// Stable values (the record API stores these exact strings).
const (
	StatusParsed            ReceiptStatus = "Parsed"            // heuristics accepted as-is
	StatusParsedNeedsReview ReceiptStatus = "ParsedNeedsReview" // weak heuristics; flagged for review
	StatusFailedParse       ReceiptStatus = "FailedParse"       // terminal failure (set by the poison path)
)

// ParseEngine identifies which extraction path produced the persisted result.
type ParseEngine string

const (
	EngineHeuristics         ParseEngine = "Heuristics"
	EngineExternalNormalizer ParseEngine = "ExternalNormalizer"
)
