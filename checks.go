package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const (
	toolErrorsLog     = "tool_call_errors.txt"
	fileCapabilityLog = "file_capability_results.txt"
)

type listAppender interface {
	AppendList(key, value string) error
}

type (
	weatherAsk func(ctx context.Context, model string) (Weather, *fallback.Report, error)
	fileAsk    func(ctx context.Context, model string) (FileAnalysis, *fallback.Report, error)
)

// modelCheck runs one request against each model of a list and flags them in the
// config.
type modelCheck struct {
	store   listAppender
	logPath string
	out     io.Writer
	logger  *log.Logger
}

func (c modelCheck) logLine(format string, args ...any) {
	if err := appendLine(c.logPath, fmt.Sprintf(format, args...)); err != nil {
		c.logger.Warn("could not write check log", "path", c.logPath, "err", err)
	}
}

func (c modelCheck) print(model string, v ...any) {
	if err := printIndentedTo(c.out, v...); err != nil {
		c.logger.Warn("could not print check result", "model", model, "err", err)
	}
}

func (c modelCheck) flag(key, model string) {
	if err := c.store.AppendList(key, model); err != nil {
		c.logger.Error("could not flag model", "key", key, "model", model, "err", err)
	}
}

// nonWorking asks every model from start on with the weather request and
// flags the ones that fail it as excluded. Models already excluded are
// skipped.
func (c modelCheck) nonWorking(ctx context.Context, models []string, start string, excluded func(string) bool, ask weatherAsk) error {
	started := start == ""
	for _, model := range models {
		if model == start {
			started = true
		}
		if !started || excluded(model) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result, report, err := ask(ctx, model)
		if err != nil {
			fmt.Fprintf(c.out, "Error with model %s: %v\n", model, err)
			c.flag(config.KeyExcludedModels, model)
			c.logLine("Model: %s Error: %v\n", model, err)
			continue
		}
		c.print(model, result, report)

		if !mentionsSofia(result) {
			fmt.Fprintf(c.out, "Model %s did not return expected location in haiku or report\n", model)
			c.flag(config.KeyExcludedModels, model)
			c.logLine("Incomplete response from %s\n", model)
		}
	}
	return nil
}

func mentionsSofia(w Weather) bool {
	return w.Haiku != nil && w.Report != nil &&
		strings.Contains(*w.Haiku, "Sofia") &&
		strings.Contains(*w.Report, "Sofia")
}

// fileCapable asks every model with the file analysis request and flags
// the ones that find the key and value planted in the file.
func (c modelCheck) fileCapable(ctx context.Context, models []string, ask fileAsk) error {
	for _, model := range models {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Testing model: %s\n", model)

		result, report, err := ask(ctx, model)
		if err != nil {
			fmt.Fprintf(c.out, "Error with model %s: %v\n", model, err)
			c.logLine("Model: %s Error: %v\n", model, err)
			continue
		}
		c.print(model, result, report)

		key, value := deref(result.Key), deref(result.Value)
		if key == "dog" && value == "Roger" {
			fmt.Fprintf(c.out, "Model %s extracted key='dog' and value='Roger'\n", model)
			c.flag(config.KeyFileCapableModels, model)
			c.logLine("SUCCESS: Model %s extracted key='%s' value='%s'\n", model, key, value)
			continue
		}
		fmt.Fprintf(c.out, "Model %s did not extract correct key/value: key='%s' value='%s'\n", model, key, value)
		c.logLine("FAILED: Model %s extracted key='%s' value='%s'\n", model, key, value)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := io.WriteString(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return f.Close()
}

// checker returns an executor that tries exactly the requested model, with
// no configured fallbacks or exclusions.
func (a *app) checker() *fallback.Executor {
	return fallback.New(
		a.factory,
		fallback.WithPricer(a.catalog),
		fallback.WithLedger(a.ledger),
		fallback.WithArchive(a.reports),
		fallback.WithLogger(a.logger.WithPrefix("check")),
	)
}

func (a *app) modelCheck(logName string, out io.Writer) modelCheck {
	return modelCheck{
		store:   a.store,
		logPath: filepath.Join(a.settings.LogsPath, logName),
		out:     out,
		logger:  a.logger,
	}
}

func newFlagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Check catalog models and flag them in the config",
	}

	var from string
	nonWorking := &cobra.Command{
		Use:   "non-working",
		Short: "Exclude models that fail the weather tool request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			e := a.checker()
			ask := func(ctx context.Context, model string) (Weather, *fallback.Report, error) {
				return weatherRequest(ctx, e, a, model, string(provider.OpenRouter))
			}
			return a.modelCheck(toolErrorsLog, cmd.OutOrStdout()).
				nonWorking(ctx, a.catalog.GetModels(ctx), from, a.store.IsExcluded, ask)
		},
	}
	nonWorking.Flags().StringVar(&from, "from", "", "Start checking at this model.")

	var file string
	fileCapable := &cobra.Command{
		Use:   "file-capable",
		Short: "Mark models that can read an attached file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			e := a.checker()
			ask := func(ctx context.Context, model string) (FileAnalysis, *fallback.Report, error) {
				return fileRequest(ctx, e, model, string(provider.OpenRouter), file)
			}
			return a.modelCheck(fileCapabilityLog, cmd.OutOrStdout()).
				fileCapable(ctx, a.catalog.GetModels(ctx), ask)
		},
	}
	fileCapable.Flags().StringVarP(&file, "file", "f", "", "File planting the key \"dog\" with the value \"Roger\".")
	_ = fileCapable.MarkFlagRequired("file")

	cmd.AddCommand(nonWorking, fileCapable)
	return cmd
}
