package dataset

import (
	"math/rand/v2"
	"sort"
)

// Sample draws up to perLabel items per author uniformly at random without
// replacement. Every author group is shuffled by a generator seeded with the
// same seed, so the result depends only on the group content and the seed.
// Authors with fewer items contribute all of them. The output is grouped by
// author in sorted author order. A non-positive perLabel disables sampling.
func Sample(items []Item, perLabel int, seed int64) []Item {
	groups := make(map[string][]Item)
	var authors []string
	for _, it := range items {
		if _, ok := groups[it.Author]; !ok {
			authors = append(authors, it.Author)
		}
		groups[it.Author] = append(groups[it.Author], it)
	}
	sort.Strings(authors)

	out := make([]Item, 0, len(items))
	for _, author := range authors {
		group := groups[author]
		if perLabel <= 0 {
			out = append(out, group...)
			continue
		}

		n := min(perLabel, len(group))
		rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
		idx := make([]int, len(group))
		for i := range idx {
			idx[i] = i
		}
		// Partial Fisher-Yates: the first n positions end up as a uniform sample.
		for i := 0; i < n; i++ {
			j := i + rng.IntN(len(idx)-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		for _, i := range idx[:n] {
			out = append(out, group[i])
		}
	}
	return out
}
