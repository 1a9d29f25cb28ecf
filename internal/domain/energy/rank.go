package energy

import (
	"sort"

	"github.com/okian/stemai/internal/domain/model"
)

// Share is one stem's slice of the distribution.
type Share struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// Ranked orders the distribution by descending percent, then label.
func Ranked(dist model.DistributionMap) []Share {
	out := make([]Share, 0, len(dist))
	for label, pct := range dist {
		out = append(out, Share{Label: label, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].Label < out[j].Label
	})
	return out
}
