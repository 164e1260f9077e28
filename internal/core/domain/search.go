package domain

// DefaultSearchLimit is used when a search omits its limit.
const DefaultSearchLimit = 20

// SearchFilter restricts a search by payload fields.
type SearchFilter struct {
	// DocumentIDs keeps only points of these documents when non-empty.
	DocumentIDs []string

	// ChunkIndex keeps only points with this chunk index when set.
	ChunkIndex *int
}

// IsEmpty reports whether the filter restricts nothing.
func (f *SearchFilter) IsEmpty() bool {
	return f == nil || (len(f.DocumentIDs) == 0 && f.ChunkIndex == nil)
}

// Matches reports whether payload passes the filter.
func (f *SearchFilter) Matches(p PointPayload) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if id == p.DocumentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ChunkIndex != nil && *f.ChunkIndex != p.ChunkIndex {
		return false
	}
	return true
}

// SearchRequest is a similarity query against one collection.
type SearchRequest struct {
	// Vector is the query embedding.
	Vector []float32

	// Limit is the maximum number of results (DefaultSearchLimit when <= 0).
	Limit int

	// Filter restricts results by payload fields.
	Filter *SearchFilter
}

// EffectiveLimit returns Limit or the default cap.
func (r SearchRequest) EffectiveLimit() int {
	if r.Limit <= 0 {
		return DefaultSearchLimit
	}
	return r.Limit
}

// SearchResult is one similarity hit.
type SearchResult struct {
	PointID      string
	Content      string
	Score        float64
	DocumentID   string
	CollectionID string
	ChunkIndex   int
	TitleChain   []string
}
