package main

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/usage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newUsageCmd() *cobra.Command {
	var (
		save   bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage, costs and request limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			report := usage.Format(a.ledger.Summarize())
			if limits := formatLimits(limitRows(a.store.Config(), a.ledger.Data(), time.Now())); limits != "" {
				report += "\nRequest limits\n" + limits + "\n"
			}

			if save {
				if err := cache.WriteFile(output, []byte(report)); err != nil {
					return cliError{err, "Could not save the usage report."}
				}
				fmt.Fprintln(os.Stderr, "Usage report saved to "+stderrStyles().InlineCode.Render(output))
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also write the report to a file.")
	cmd.Flags().StringVarP(&output, "output", "o", "usage_report.txt", "File the report is saved to.")
	return cmd
}

// limitRow is the usage of one configured limit.
type limitRow struct {
	Period string
	Scope  string
	Key    string
	Limit  int
	Used   int64
}

// limitRows pairs every configured limit with the requests made in its
// period. Limits are reported, not enforced.
func limitRows(cfg config.Config, data usage.Data, now time.Time) []limitRow {
	day, month := now.Format(time.DateOnly), now.Format("2006-01")
	var rows []limitRow
	add := func(period string, limits config.Limits, inPeriod func(usage.Item) bool) {
		count := func(scope, key string, match func(usage.Item) bool, limit int) {
			var used int64
			for _, it := range data.DailyUsage {
				if inPeriod(it) && match(it) {
					used += it.Requests
				}
			}
			rows = append(rows, limitRow{period, scope, key, limit, used})
		}
		for _, key := range sortedLimitKeys(limits.PerModel) {
			count("model", key, func(it usage.Item) bool { return it.Model == key }, limits.PerModel[key])
		}
		for _, key := range sortedLimitKeys(limits.PerService) {
			count("service", key, func(it usage.Item) bool { return it.Service == key }, limits.PerService[key])
		}
	}
	add("daily", cfg.DailyLimits, func(it usage.Item) bool { return it.Day == day })
	add("monthly", cfg.MonthlyLimits, func(it usage.Item) bool { return it.Month == month })
	return rows
}

func sortedLimitKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(strings.ToLower(a), strings.ToLower(b)) })
	return keys
}

func formatLimits(rows []limitRow) string {
	if len(rows) == 0 {
		return ""
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Period", "Scope", "Name", "Used", "Limit")
	for _, r := range rows {
		t.Row(r.Period, r.Scope, r.Key, strconv.FormatInt(r.Used, 10), strconv.Itoa(r.Limit))
	}
	return t.Render()
}
