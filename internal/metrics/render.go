package metrics

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderCounters formats the counters as a two-column table.
func RenderCounters(m Metrics) string {
	rows := [][]string{
		{"processed", strconv.Itoa(m.Processed)},
		{"accepted", strconv.Itoa(m.Accepted)},
		{"queued", strconv.Itoa(m.Queued)},
		{"skipped", strconv.Itoa(m.Skipped)},
		{"errors", strconv.Itoa(m.Errors)},
		{"skip rate", fmt.Sprintf("%.1f%%", m.SkipRate()*100)},
	}
	return renderTable([]string{"Counter", "Value"}, rows, []text.Align{text.AlignLeft, text.AlignRight})
}

// RenderReasons formats the skip reasons, most frequent first.
func RenderReasons(m Metrics) string {
	reasons := make([]string, 0, len(m.ByReason))
	for r := range m.ByReason {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if m.ByReason[reasons[i]] != m.ByReason[reasons[j]] {
			return m.ByReason[reasons[i]] > m.ByReason[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	rows := make([][]string, 0, len(reasons))
	for _, r := range reasons {
		rows = append(rows, []string{r, strconv.Itoa(m.ByReason[r])})
	}
	return renderTable([]string{"Skip reason", "Count"}, rows, []text.Align{text.AlignLeft, text.AlignRight})
}

// RenderAlerts formats fired alerts.
func RenderAlerts(alerts []Alert) string {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.Type,
			fmt.Sprintf("%.3f", a.SkipRate),
			fmt.Sprintf("%.3f", a.Threshold),
		})
	}
	return renderTable([]string{"Alert", "Skip rate", "Threshold"}, rows,
		[]text.Align{text.AlignLeft, text.AlignRight, text.AlignRight})
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
