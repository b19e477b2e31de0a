// Package mode names the search engine state.
package mode

// Mode is which path serves searches.
type Mode string

const (
	// Primary serves searches from the vector index.
	Primary Mode = "primary"
	// Degraded serves searches from the keyword fallback.
	Degraded Mode = "degraded"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == Primary || m == Degraded
}

// Path labels which backend answered a single search.
type Path string

const (
	// PathIndex is a vector KNN query.
	PathIndex Path = "index"
	// PathReadOnly is a keyword query against a read-only index.
	PathReadOnly Path = "readonly"
	// PathFallback is the in-memory keyword fallback.
	PathFallback Path = "fallback"
)
