package regalloc

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// WriteReport prints one row per allocated function
func WriteReport(w io.Writer, results []*Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Function", "Registers", "Spills", "Frame", "Saved"})
	table.SetAutoFormatHeaders(false)

	spills := 0
	for _, r := range results {
		saved := make([]string, len(r.Function.Saved))
		for i, reg := range r.Function.Saved {
			saved[i] = string(reg)
		}
		table.Append([]string{
			r.Function.Name,
			fmt.Sprint(r.Registers),
			fmt.Sprint(r.Spills),
			fmt.Sprint(r.FrameBytes),
			strings.Join(saved, " "),
		})
		spills += r.Spills
	}
	table.SetFooter([]string{fmt.Sprintf("%d functions", len(results)), "", fmt.Sprint(spills), "", ""})
	table.Render()
}
