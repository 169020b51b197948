package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Summary renders a per-state count table followed by the run duration.
func Summary(w io.Writer, counts map[string]int, elapsed time.Duration) error {
	labels := make([]string, 0, len(counts))
	total := 0
	for label, n := range counts {
		labels = append(labels, label)
		total += n
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	table := tablewriter.NewWriter(w)
	table.Header("State", "Count", "Share")
	for _, label := range labels {
		_ = table.Append(label, strconv.Itoa(counts[label]), share(counts[label], total))
	}
	_ = table.Append("total", strconv.Itoa(total), share(total, total))

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	rate := 0.0
	if elapsed > 0 {
		rate = float64(total) / elapsed.Seconds()
	}
	_, err := fmt.Fprintf(w, "%d results in %s (%.0f/s)\n", total, elapsed.Round(time.Millisecond), rate)
	return err
}

func share(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
