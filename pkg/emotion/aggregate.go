package emotion

import (
	"math"
	"sort"
)

// Ranked is one entry of an aggregated emotion summary.
type Ranked struct {
	Emotion    Label
	Percentage int
}

// Aggregate reduces a window of observed labels into a ranked summary.
// Percentages are count/total*100 rounded to the nearest integer, sorted by
// count descending. Equal counts keep first-seen order: the observed behavior
// this reimplements never specified a tie-break, so insertion order is the
// documented choice. An empty window yields an empty (nil) result.
func Aggregate(labels []Label) []Ranked {
	if len(labels) == 0 {
		return nil
	}

	counts := make(map[Label]int, len(labels))
	order := make([]Label, 0, len(labels))
	for _, l := range labels {
		if _, seen := counts[l]; !seen {
			order = append(order, l)
		}
		counts[l]++
	}

	ranked := make([]Ranked, len(order))
	total := float64(len(labels))
	for i, l := range order {
		ranked[i] = Ranked{
			Emotion:    l,
			Percentage: int(math.Round(float64(counts[l]) / total * 100)),
		}
	}

	// Stable sort preserves insertion order among equal counts.
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i].Emotion] > counts[ranked[j].Emotion]
	})

	return ranked
}

// Dominant returns the most frequently observed label in the window.
// The second return is false when the window is empty.
func Dominant(labels []Label) (Label, bool) {
	ranked := Aggregate(labels)
	if len(ranked) == 0 {
		return "", false
	}
	return ranked[0].Emotion, true
}
