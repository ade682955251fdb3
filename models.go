package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aihelper/aihelper/internal/catalog"
	"github.com/aihelper/aihelper/internal/config"
	"github.com/spf13/cobra"
)

type modelFlags interface {
	Mode() config.Mode
	IsExcluded(key string) bool
	IsFileCapable(key string) bool
}

func newModelsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the catalog models",
		Long: `List the catalog models with their price tier.

In strict mode models flagged as not working are hidden unless --all is
given. Models that can read attached files are marked with "file".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			entries := a.catalog.Entries(cmd.Context())
			if len(entries) == 0 {
				return newUserErrorf("The model catalog is empty. Check %s.", a.settings.CatalogURL)
			}
			listModels(cmd.OutOrStdout(), entries, a.store, all)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include models flagged as not working.")
	return cmd
}

func listModels(w io.Writer, entries []catalog.Entry, flags modelFlags, all bool) {
	styles := stdoutStyles()
	hide := !all && flags.Mode() != config.ModeLoose
	for _, e := range entries {
		excluded := flags.IsExcluded(e.ID)
		if excluded && hide {
			continue
		}
		tier := e.Tier()
		line := styles.Tiers[tier].Render(fmt.Sprintf("%-9s", tier)) + " " + e.ID

		var marks []string
		if flags.IsFileCapable(e.ID) {
			marks = append(marks, "file")
		}
		if e.SupportsTools() {
			marks = append(marks, "tools")
		}
		if excluded {
			marks = append(marks, styles.Failure.Render("excluded"))
		}
		if len(marks) > 0 {
			line += " " + styles.Comment.Render("("+strings.Join(marks, ", ")+")")
		}
		fmt.Fprintln(w, line)
	}
}
