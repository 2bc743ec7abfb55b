package engine

import "fmt"

// Bounds returns the half-open row range [lo, hi) of partition id when n rows
// are split into total contiguous partitions. The first n%total partitions
// hold one extra row.
func Bounds(n, id, total int) (lo, hi int, err error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("total partitions must be > 0 (got %d)", total)
	}
	if id < 0 || id >= total {
		return 0, 0, fmt.Errorf("partition id %d outside [0,%d)", id, total)
	}
	size, extra := n/total, n%total
	lo = id*size + min(id, extra)
	hi = lo + size
	if id < extra {
		hi++
	}
	return lo, hi, nil
}

// Split cuts items into total order-preserving partitions.
func Split[T any](items []T, total int) ([][]T, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total partitions must be > 0 (got %d)", total)
	}
	parts := make([][]T, 0, total)
	for id := 0; id < total; id++ {
		lo, hi, err := Bounds(len(items), id, total)
		if err != nil {
			return nil, err
		}
		parts = append(parts, items[lo:hi])
	}
	return parts, nil
}
