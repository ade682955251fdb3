package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/charmbracelet/huh"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version   = ""
	CommitSHA = ""
)

func buildVersion() {
	if len(CommitSHA) >= 7 { //nolint:mnd
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
			Version = info.Main.Version
		} else {
			Version = "unknown (built from source)"
		}
	}
	rootCmd.Version = Version
}

var (
	settings Settings

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "LLM requests with fallbacks, cost tracking and structured output.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", makeGradientText(stdoutStyles().AppName, appName), Version)
		},
	}

	manCmd = &cobra.Command{
		Use:                   "man",
		Short:                 "Generates manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manPage, err := mcobra.NewManPage(1, rootCmd)
			if err != nil {
				//nolint:wrapcheck
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), manPage.Build(roff.NewDocument()))
			//nolint:wrapcheck
			return err
		},
	}
)

func initCommands() {
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})
	rootCmd.AddCommand(
		newAskCmd(),
		newSmokeCmd(),
		newFlagCmd(),
		newPricesCmd(),
		newUsageCmd(),
		newModelsCmd(),
		newReportsCmd(),
		newMCPCmd(),
		newSettingsCmd(),
		newConfigCmd(),
		versionCmd,
		manCmd,
	)
}

func main() {
	buildVersion()

	// flags take their defaults from the settings
	if !isCompletionCmd(os.Args) && !isManCmd(os.Args) {
		s, err := ensureSettings()
		if err != nil {
			handleError(err)
			os.Exit(1)
		}
		settings = s
	}
	initCommands()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		handleError(err)
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}

// openApp builds the app from the loaded settings.
func openApp() (*app, error) {
	return newApp(settings, newLogger(settings.LogLevel))
}

func handleError(err error) {
	format := "\n%s\n\n"

	var args []any
	var ferr flagParseError
	if errors.As(err, &ferr) {
		format += "%s\n\n"
		args = []any{
			fmt.Sprintf(
				"Check out %s %s",
				stderrStyles().InlineCode.Render(appName+" -h"),
				stderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				stderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
	} else {
		var cerr cliError
		errors.As(explain(err), &cerr)
		args = []any{
			stderrStyles().ErrPadding.Render(stderrStyles().ErrorHeader.String(), cerr.reason),
		}
		// Skip the error details if the user simply canceled out of huh.
		if !errors.Is(cerr.err, huh.ErrUserAborted) {
			format += "%s\n\n"
			args = append(args, stderrStyles().ErrPadding.Render(stderrStyles().ErrorDetails.Render(err.Error())))
		}
	}

	fmt.Fprintf(os.Stderr, format, args...)
}

func isCompletionCmd(args []string) bool {
	if len(args) <= 1 {
		return false
	}
	if args[1] == "__complete" {
		return true
	}
	if args[1] != "completion" {
		return false
	}
	if len(args) == 3 { //nolint:mnd
		_, ok := map[string]any{
			"bash":       nil,
			"fish":       nil,
			"zsh":        nil,
			"powershell": nil,
			"-h":         nil,
			"--help":     nil,
			"help":       nil,
		}[args[2]]
		return ok
	}
	if len(args) == 4 { //nolint:mnd
		_, ok := map[string]any{
			"-h":     nil,
			"--help": nil,
		}[args[3]]
		return ok
	}
	return false
}

func isManCmd(args []string) bool {
	if len(args) == 2 { //nolint:mnd
		return args[1] == "man"
	}
	if len(args) == 3 && args[1] == "man" { //nolint:mnd
		_, ok := map[string]any{
			"-h":     nil,
			"--help": nil,
		}[args[2]]
		return ok
	}
	return false
}
