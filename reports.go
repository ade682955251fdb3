package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aihelper/aihelper/internal/reports"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const shortIDLen = 8

func newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Browse the reports of past requests",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List archived reports, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			rows, err := a.reports.List(cmd.Context())
			if err != nil {
				return explain(err)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No reports found.")
				return nil
			}
			printReports(cmd.OutOrStdout(), rows, isOutputTTY())
			return nil
		},
	}

	var conversation bool
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one report as JSON, or the conversation it came from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			row, err := a.reports.Find(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			if conversation {
				return printConversation(cmd.OutOrStdout(), row, isOutputTTY())
			}
			return printIndentedTo(cmd.OutOrStdout(), row.Report())
		},
	}
	show.Flags().BoolVar(&conversation, "conversation", false, "Show the conversation as markdown.")

	var yes bool
	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete one report",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			row, err := a.reports.Find(ctx, args[0])
			if err != nil {
				return explain(err)
			}
			if !yes && isInputTTY() && isOutputTTY() {
				ok, err := confirmDelete(row)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			if err := a.reports.Delete(ctx, row.RunID); err != nil {
				return explain(err)
			}
			if !settings.Quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), "Report "+stderrStyles().RunID.Render(shortID(row.RunID))+" deleted.")
			}
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation.")

	cmd.AddCommand(list, show, del)
	return cmd
}

func confirmDelete(row *reports.Row) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Delete report %s from %s?", shortID(row.RunID), row.ModelName)).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

func printReports(w io.Writer, rows []reports.Row, tty bool) {
	styles := stdoutStyles()
	for _, r := range rows {
		if !tty {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.6f\n", shortID(r.RunID), r.RunDate.Format("2006-01-02 15:04:05"), r.ModelName, r.Cost)
			continue
		}
		var sb strings.Builder
		sb.WriteString(styles.RunID.Render(shortID(r.RunID)))
		sb.WriteString(" ")
		sb.WriteString(r.ModelName)
		if r.Schema != "" {
			sb.WriteString(" " + styles.Comment.Render(r.Schema))
		}
		if r.FallbackUsed {
			sb.WriteString(" " + styles.Flag.Render("fallback"))
		}
		sb.WriteString(" " + styles.Timeago.Render(timeago.Of(r.RunDate)))
		fmt.Fprintln(w, sb.String())
	}
}

func printConversation(w io.Writer, row *reports.Row, tty bool) error {
	if row.Conversation == "" {
		return cliError{
			err:    fmt.Errorf("report %s has no conversation", shortID(row.RunID)),
			reason: "The report was archived without its conversation.",
		}
	}
	if !tty {
		_, err := io.WriteString(w, row.Conversation)
		return err //nolint:wrapcheck
	}
	r, err := glamour.NewTermRenderer(glamour.WithEnvironmentConfig(), glamour.WithWordWrap(0))
	if err != nil {
		return cliError{err, "Could not create the markdown renderer."}
	}
	rendered, err := r.Render(row.Conversation)
	if err != nil {
		return cliError{err, "Could not render the conversation."}
	}
	_, err = io.WriteString(w, rendered)
	return err //nolint:wrapcheck
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
