// Package eval replays a labeled question set against a running query
// service and scores retrieval quality with Recall@k.
package eval

// RecallAtK computes |retrieved[:k] ∩ relevant| / |relevant|.
//
// Returns 0 when relevant is empty or k is not positive. Duplicates are
// ignored: both sides are treated as sets.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0.0
	}
	if k > len(retrieved) {
		k = len(retrieved)
	}

	topK := make(map[string]bool, k)
	for _, id := range retrieved[:k] {
		topK[id] = true
	}

	relevantSet := make(map[string]bool, len(relevant))
	hits := 0
	for _, id := range relevant {
		if relevantSet[id] {
			continue
		}
		relevantSet[id] = true
		if topK[id] {
			hits++
		}
	}

	return float64(hits) / float64(len(relevantSet))
}
