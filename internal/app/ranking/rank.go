// Package ranking orders waitlist entries by priority score and caches the
// resulting lists.
package ranking

import (
	"fmt"
	"sort"

	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/app/scoring"
)

// Order returns the rankable entries sorted by score descending, ties broken
// by join index ascending so earlier joiners keep their edge. Terminal
// entries are dropped. The input slice is not modified.
func Order(entries []waitlist.Entry) ([]waitlist.Entry, error) {
	ranked := make([]waitlist.Entry, 0, len(entries))
	scores := make(map[string]int64, len(entries))
	for _, e := range entries {
		if !e.Rankable() {
			continue
		}
		d, err := scoring.Parse(e.PriorityScore)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		// Shift to an integer at scoring scale so comparisons stay exact.
		scores[e.ID] = d.Shift(scoring.Scale).IntPart()
		ranked = append(ranked, e)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		return ranked[i].JoinIndex < ranked[j].JoinIndex
	})
	return ranked, nil
}
