// Package selection picks the top slice of a scored item set: a minimum
// score threshold followed by either plain top-K or diversity-constrained
// top-K, where no single source type may crowd out the rest.
package selection

import "sort"

// Scored is implemented by anything the selector can rank.
type Scored interface {
	PriorityScore() float64
	Source() string
}

// Options control one selection pass.
type Options struct {
	// MaxItems caps the selected set. Zero or negative selects nothing.
	MaxItems int
	// MaxPerSource caps how many slots one source type may occupy.
	// Ignored unless Diverse is set; zero or negative means no cap.
	MaxPerSource int
	// MinScore drops items scoring strictly below it before selection.
	MinScore float64
	// Diverse enables the per-source cap walk.
	Diverse bool
}

// Result is the outcome of one selection pass. Skip counts are diagnostics:
// dropped items are counted, never silently lost.
type Result[T Scored] struct {
	Items          []T
	BelowThreshold int
	DiversitySkips int
}

// Pick sorts descending by score and admits up to MaxItems. The sort is
// stable, so equal scores keep their input (creation-time) order and
// repeated passes over unchanged data are deterministic. In diverse mode an
// over-represented source's item is skipped, never reordered: every
// admitted item outranks every item skipped for diversity from its own
// source type.
func Pick[T Scored](items []T, opts Options) Result[T] {
	eligible := make([]T, 0, len(items))
	var below int
	for _, it := range items {
		if it.PriorityScore() < opts.MinScore {
			below++
			continue
		}
		eligible = append(eligible, it)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].PriorityScore() > eligible[j].PriorityScore()
	})

	res := Result[T]{BelowThreshold: below}
	if opts.MaxItems <= 0 {
		return res
	}

	if !opts.Diverse || opts.MaxPerSource <= 0 {
		n := min(opts.MaxItems, len(eligible))
		res.Items = eligible[:n:n]
		return res
	}

	perSource := make(map[string]int)
	res.Items = make([]T, 0, min(opts.MaxItems, len(eligible)))
	for _, it := range eligible {
		if len(res.Items) == opts.MaxItems {
			break
		}
		src := it.Source()
		if perSource[src] >= opts.MaxPerSource {
			res.DiversitySkips++
			continue
		}
		perSource[src]++
		res.Items = append(res.Items, it)
	}
	return res
}
