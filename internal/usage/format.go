package usage

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func money(f float64) string { return fmt.Sprintf("$%.6f", f) }

func pct(f float64) string { return fmt.Sprintf("%.2f%%", f) }

func itoa(i int64) string { return strconv.FormatInt(i, 10) }

func grid(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func totalsRow(key string, t Totals) []string {
	return []string{key, itoa(t.Requests), itoa(t.InputTokens), itoa(t.OutputTokens), itoa(t.TotalTokens), money(t.Cost)}
}

var totalsHeaders = []string{"Requests", "Input Tokens", "Output Tokens", "Total Tokens", "Cost"}

// Format renders a summary as a set of titled tables. Empty sections are
// left out.
func Format(s Summary) string {
	var sb strings.Builder
	section := func(title, table string) {
		sb.WriteString(title + "\n")
		sb.WriteString(strings.Repeat("-", 40) + "\n") //nolint:mnd
		sb.WriteString(table + "\n\n")
	}

	rule := strings.Repeat("=", 60) //nolint:mnd
	sb.WriteString(rule + "\nOVERALL USAGE SUMMARY (COSTS)\n" + rule + "\n")
	sb.WriteString(grid([]string{"Period", "Value"}, [][]string{
		{"Today (LLM Cost)", money(s.UsageToday)},
		{"This Month (LLM Cost)", money(s.UsageThisMonth)},
	}) + "\n\n")

	if len(s.MonthlyLLM) > 0 {
		var rows [][]string
		for _, month := range byTokens(s.MonthlyLLM) {
			rows = append(rows, totalsRow(month, s.MonthlyLLM[month]))
		}
		section("MONTHLY LLM USAGE SUMMARY", grid(append([]string{"Month"}, totalsHeaders...), rows))
	}

	if len(s.MonthlyToolCalls) > 0 {
		var rows [][]string
		for _, month := range sortedKeys(s.MonthlyToolCalls) {
			rows = append(rows, []string{month, itoa(s.MonthlyToolCalls[month])})
		}
		section("MONTHLY TOOL USAGE SUMMARY", grid([]string{"Month", "Total Tool Calls"}, rows))
	}

	if len(s.DailyUsage) > 0 {
		daily := slices.Clone(s.DailyUsage)
		slices.SortStableFunc(daily, func(a, b DailyTotals) int {
			switch {
			case a.TotalTokens > b.TotalTokens:
				return -1
			case a.TotalTokens < b.TotalTokens:
				return 1
			}
			return 0
		})
		var rows [][]string
		for _, d := range daily {
			rows = append(rows, append([]string{d.Day, d.Model, d.Service, d.Schema}, totalsRow("", d.Totals)[1:]...))
		}
		section("DAILY LLM USAGE BREAKDOWN", grid(
			append([]string{"Date", "LLM Model", "Service", "Schema"}, totalsHeaders...),
			rows,
		))
	}

	if len(s.DailyToolUsage) > 0 {
		var rows [][]string
		for _, d := range s.DailyToolUsage {
			rows = append(rows, []string{d.Day, d.ToolName, itoa(d.Calls)})
		}
		section("DAILY TOOL USAGE BREAKDOWN", grid([]string{"Date", "Tool Name", "Calls"}, rows))
	}

	fillSection := func(title, header string, stats map[string]FillStats) {
		if len(stats) == 0 {
			return
		}
		var rows [][]string
		for _, name := range sortedKeys(stats) {
			st := stats[name]
			rows = append(rows, []string{name, pct(st.Average), itoa(st.Count)})
		}
		section(title, grid([]string{header, "Avg Fill %", "Samples"}, rows))
	}
	fillSection("FILL PERCENTAGE BY SCHEMA", "Schema", s.FillBySchema)
	fillSection("FILL PERCENTAGE BY LLM MODEL", "LLM Model", s.FillByModel)

	if len(s.ByModel) > 0 {
		var rows [][]string
		for _, model := range byTokens(s.ByModel) {
			fill := "N/A"
			if st, ok := s.FillByModel[model]; ok {
				fill = pct(st.Average)
			}
			rows = append(rows, append(totalsRow(model, s.ByModel[model]), fill))
		}
		headers := append(append([]string{"LLM Model"}, totalsHeaders...), "Avg Fill %")
		section("LLM USAGE BY LLM MODEL (ALL TIME)", grid(headers, rows))
	}

	if len(s.BySchema) > 0 {
		var rows [][]string
		for _, name := range sortedKeys(s.BySchema) {
			rows = append(rows, totalsRow(name, s.BySchema[name]))
		}
		section("LLM USAGE BY SCHEMA (ALL TIME)", grid(append([]string{"Schema"}, totalsHeaders...), rows))
	}

	if len(s.ByService) > 0 {
		var rows [][]string
		for _, name := range sortedKeys(s.ByService) {
			rows = append(rows, totalsRow(name, s.ByService[name]))
		}
		section("LLM USAGE BY SERVICE (ALL TIME)", grid(append([]string{"Service"}, totalsHeaders...), rows))
	}

	if len(s.ByTool) > 0 {
		var rows [][]string
		for _, name := range sortedKeys(s.ByTool) {
			rows = append(rows, []string{name, itoa(s.ByTool[name])})
		}
		section("TOOL USAGE BY NAME (ALL TIME)", grid([]string{"Tool Name", "Total Calls"}, rows))
	}

	fmt.Fprintf(&sb, "Total LLM requests: %d\nTotal tool calls: %d\n", s.TotalLLMRequests, s.TotalToolCalls)
	return sb.String()
}
