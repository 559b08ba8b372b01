package grouping

import (
	"context"
	"fmt"
	"sort"

	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
)

// UniqueValues scans field once and returns its distinct values in sorted order.
// With filterFalsy set, null, empty text and zero are dropped.
func UniqueValues(ctx context.Context, ds storage.Dataset, field string, filterFalsy bool) ([]value.Value, error) {
	seen := make(map[string]struct{})
	var unique []value.Value

	err := ds.ScanField(ctx, field, func(v value.Value) error {
		if filterFalsy && v.Falsy() {
			return nil
		}
		key := v.Key()
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		unique = append(unique, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan unique values of %q: %w", field, err)
	}

	sort.Slice(unique, func(i, j int) bool {
		return value.Compare(unique[i], unique[j]) < 0
	})
	return unique, nil
}

// UniqueValueLists returns the distinct values of every field, in field
// order, together with the per-field counts.
func UniqueValueLists(ctx context.Context, ds storage.Dataset, fields []string, filterFalsy bool) ([][]value.Value, []int, error) {
	lists := make([][]value.Value, 0, len(fields))
	counts := make([]int, 0, len(fields))
	for _, field := range fields {
		unique, err := UniqueValues(ctx, ds, field, filterFalsy)
		if err != nil {
			return nil, nil, err
		}
		lists = append(lists, unique)
		counts = append(counts, len(unique))
	}
	return lists, counts, nil
}
