package stemclient

import (
	"fmt"
	"io"
	"strings"

	"github.com/okian/stemai/internal/domain/energy"
)

// DefaultBarWidth is the width of a 100% bar in characters.
const DefaultBarWidth = 40

// RenderBars writes shares as a horizontal text bar chart, one line per
// stem in the given order.
func RenderBars(w io.Writer, shares []energy.Share, width int) error {
	if width <= 0 {
		width = DefaultBarWidth
	}
	labelW := 0
	for _, s := range shares {
		labelW = max(labelW, len(s.Label))
	}
	for _, s := range shares {
		n := int(s.Percent/100*float64(width) + 0.5)
		n = min(max(n, 0), width)
		bar := strings.Repeat("█", n) + strings.Repeat("·", width-n)
		if _, err := fmt.Fprintf(w, "%-*s %s %5.1f%%\n", labelW, s.Label, bar, s.Percent); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	_, err := fmt.Fprintf(w, "%*s %s\n", labelW, "", "Percentage of Total Energy (%)")
	if err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
