// Package chunker partitions an ordered list of texts into contiguous
// batches of bounded size so each batch can be sent to a translator in a
// single request. Order is preserved: concatenating the batches yields the
// input again.
package chunker

const (
	// DefaultBatchSize is used when Split is called with a size ≤ 0.
	DefaultBatchSize = 10
)

// Split cuts items into consecutive slices of at most size elements.
// The last batch may be shorter. The returned slices share the backing
// array of items. An empty input returns no batches.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, count(len(items), size))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

func count(n, size int) int {
	return (n + size - 1) / size
}
