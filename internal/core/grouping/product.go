package grouping

import (
	"math"

	"github.com/aevon-lab/classgroup/internal/core/value"
)

// Product lazily enumerates the Cartesian product of value sets in nested-loop
// order: the last set varies fastest.
type Product struct {
	sets  [][]value.Value
	idx   []int
	count int64
	done  bool
}

// NewProduct creates an enumerator over sets. The sets are not copied and must
// not be modified during enumeration.
func NewProduct(sets [][]value.Value) *Product {
	p := &Product{
		sets:  sets,
		idx:   make([]int, len(sets)),
		count: CombinationCount(setSizes(sets)),
	}
	p.done = p.count == 0
	return p
}

// Count returns the total number of tuples, saturating at math.MaxInt64.
func (p *Product) Count() int64 {
	return p.count
}

// Next returns the next tuple, or false once the product is exhausted.
// Every call returns a new slice.
func (p *Product) Next() ([]value.Value, bool) {
	if p.done {
		return nil, false
	}

	tuple := make([]value.Value, len(p.sets))
	for i, set := range p.sets {
		tuple[i] = set[p.idx[i]]
	}

	// advance the odometer
	i := len(p.idx) - 1
	for ; i >= 0; i-- {
		p.idx[i]++
		if p.idx[i] < len(p.sets[i]) {
			break
		}
		p.idx[i] = 0
	}
	if i < 0 {
		p.done = true
	}

	return tuple, true
}

// CombinationCount multiplies the per-field distinct counts without
// materialising anything. The result saturates instead of overflowing.
func CombinationCount(counts []int) int64 {
	total := int64(1)
	for _, c := range counts {
		if c <= 0 {
			return 0
		}
		if total > math.MaxInt64/int64(c) {
			total = math.MaxInt64
			continue
		}
		total *= int64(c)
	}
	return total
}

func setSizes(sets [][]value.Value) []int {
	sizes := make([]int, len(sets))
	for i, s := range sets {
		sizes[i] = len(s)
	}
	return sizes
}
