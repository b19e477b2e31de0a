// Package result holds search hits returned by the index and the fallback.
package result

import "github.com/kailas-cloud/animedex/internal/domain/title"

// Result is a single search hit. Similarity is higher-is-better; index hits are
// bounded to [0,1], keyword fallback hits are a heuristic that may exceed 1.
type Result struct {
	TitleID    int64
	Metadata   title.Metadata
	Document   string
	Similarity float64
}

// Ranked is a Result with the blended ordering score attached. Never persisted.
type Ranked struct {
	Result
	CombinedScore float64
}

// IDs returns the title ids of results in order.
func IDs(rs []Result) []int64 {
	out := make([]int64, len(rs))
	for i := range rs {
		out[i] = rs[i].TitleID
	}
	return out
}
