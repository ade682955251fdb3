package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: help["settings"],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := settings.SettingsPath
			if reset {
				backup, err := resetSettings(path)
				if err != nil {
					return err
				}
				if !settings.Quiet {
					fmt.Fprintln(cmd.ErrOrStderr(), "Settings restored to defaults!")
					fmt.Fprintf(cmd.ErrOrStderr(),
						"\n  %s %s\n\n",
						stderrStyles().Comment.Render("Your old settings have been saved to:"),
						stderrStyles().Link.Render(backup),
					)
				}
				return nil
			}

			c, err := editor.Cmd(appName, path)
			if err != nil {
				return cliError{err, "Could not edit your settings file."}
			}
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			if err := c.Run(); err != nil {
				return cliError{err, fmt.Sprintf("Missing %s.", stderrStyles().InlineCode.Render("$EDITOR"))}
			}
			if !settings.Quiet {
				fmt.Fprintln(cmd.ErrOrStderr(), "Wrote settings file to:", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, help["reset-settings"])
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change the fallback, limits and model flags config",
		Long: `Read and change the JSON config holding the default model, the fallback
chain, request limits, model aliases and flagged models.

Keys: defaults, daily_limits, monthly_limits, model_mappings,
excluded_models, file_capable_models, mode.`,
	}

	withStore := func(run func(cmd *cobra.Command, store *config.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := config.Load(settings.ConfigPath, newLogger(settings.LogLevel))
			if err != nil {
				return explain(err)
			}
			return run(cmd, store, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), settings.ConfigPath)
		},
	}, &cobra.Command{
		Use:   "get [key]",
		Short: "Print the value under key, or the whole config",
		Args:  cobra.MaximumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *config.Store, args []string) error {
			if len(args) == 0 {
				return printIndentedTo(cmd.OutOrStdout(), store.Config())
			}
			v, err := store.Get(args[0])
			if err != nil {
				return explain(err)
			}
			return printIndentedTo(cmd.OutOrStdout(), v)
		}),
	}, &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Replace the value under key",
		Example: `  aihelper config set mode '"loose"'
  aihelper config set defaults '{"model":"openai/gpt-4.1","fallback_chain":[{"model":"gpt-4o-mini","provider":"openai"}]}'`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: withStore(func(_ *cobra.Command, store *config.Store, args []string) error {
			var v any
			if err := json.Unmarshal([]byte(args[1]), &v); err != nil {
				return cliError{err, "The value must be valid JSON."}
			}
			return explain(store.Set(args[0], v))
		}),
	}, &cobra.Command{
		Use:     "append <key> <value>",
		Short:   "Append a value to a list key",
		Example: `  aihelper config append excluded_models openai/o4-mini-high`,
		Args:    cobra.ExactArgs(2), //nolint:mnd
		RunE: withStore(func(_ *cobra.Command, store *config.Store, args []string) error {
			return explain(store.AppendList(args[0], args[1]))
		}),
	})
	return cmd
}
