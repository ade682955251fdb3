package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/spf13/cobra"
)

const helloText = `I confirm that the NDA has been signed on both sides. My sincere apologies for the delay in following up - over the past few weeks, series of regional public holidays and an unusually high workload disrupted our regular scheduling.
Attached to this email, you'll find a short but I believe comprehensive CV of the developer we would propose for the project. He could bring solid expertise in Odoo development, and has extensive experience in odoo migrations.
Please feel free to reach out if you have any questions.`

const (
	helloPrompt       = "Please analyse the sentiment of this text\n Here is the text to analyse:" + helloText
	weatherPrompt     = "Please return the current weather and time in a form of a haiku. Location is Sofia, Bulgaria. Sofia needs to be used in the haiku."
	filePrompt        = "Please analyze this file and extract its text content and provide a summary of its main content and purpose."
	inspirationPrompt = "Generate a concise and powerful inspirational quote about the virtue of perseverance."
)

type smokeOptions struct {
	model    string
	provider string
	file     string
	quiet    bool
}

func newSmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a sample request end to end",
	}

	hello := smokeOptions{model: "mistralai/ministral-3b", provider: string(provider.OpenRouter)}
	quote := smokeOptions{model: "openai/gpt-4o", provider: string(provider.OpenAI)}
	tools := smokeOptions{model: "openai/gpt-4.1", provider: string(provider.OpenAI)}
	file := smokeOptions{model: "openai/gpt-4o", provider: string(provider.OpenAI)}

	fileCmd := smokeCmd("file", "File analysis of an attached document", &file, func(ctx context.Context, a *app, o smokeOptions) (any, *fallback.Report, error) {
		return fileRequest(ctx, a.executor, o.model, o.provider, o.file)
	})
	fileCmd.Flags().StringVarP(&file.file, "file", "f", "", help["file"])
	_ = fileCmd.MarkFlagRequired("file")

	cmd.AddCommand(
		smokeCmd("hello", "Sentiment analysis, no tools", &hello, func(ctx context.Context, a *app, o smokeOptions) (any, *fallback.Report, error) {
			return fallback.Execute[HelloWorld](ctx, a.executor, fallback.Request{
				Prompt:   helloPrompt,
				Model:    o.model,
				Provider: o.provider,
			})
		}),
		smokeCmd("tools", "Weather haiku using the weather and date tools", &tools, func(ctx context.Context, a *app, o smokeOptions) (any, *fallback.Report, error) {
			return weatherRequest(ctx, a.executor, a, o.model, o.provider)
		}),
		fileCmd,
		smokeCmd("inspiration", "An inspirational quote", &quote, func(ctx context.Context, a *app, o smokeOptions) (any, *fallback.Report, error) {
			return fallback.Execute[Inspiration](ctx, a.executor, fallback.Request{
				Prompt:   inspirationPrompt,
				Model:    o.model,
				Provider: o.provider,
			})
		}),
	)
	return cmd
}

func smokeCmd(
	name, short string,
	opts *smokeOptions,
	run func(context.Context, *app, smokeOptions) (any, *fallback.Report, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			var (
				result any
				report *fallback.Report
			)
			if err := withSpinner(cmd.Context(), opts.quiet, "Running "+name+"...", func(ctx context.Context) error {
				var err error
				result, report, err = run(ctx, a, *opts)
				return err
			}); err != nil {
				return explain(err)
			}
			return printIndented(result, report)
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", opts.model, help["model"])
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", opts.provider, help["provider"])
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", settings.Quiet, help["quiet"])
	return cmd
}

// weatherRequest asks for a haiku about the weather in Sofia using the
// local tools.
func weatherRequest(ctx context.Context, e *fallback.Executor, a *app, model, providerName string) (Weather, *fallback.Report, error) {
	return fallback.Execute[Weather](ctx, e, fallback.Request{
		Prompt:     weatherPrompt,
		Model:      model,
		Provider:   providerName,
		Tools:      a.tools.Local(),
		ToolCaller: a.tools.Caller(ctx),
	})
}

// fileRequest asks for an analysis of the file at path.
func fileRequest(ctx context.Context, e *fallback.Executor, model, providerName, path string) (FileAnalysis, *fallback.Report, error) {
	att, err := readAttachment(path)
	if err != nil {
		return FileAnalysis{}, nil, cliError{err, "Could not read the file."}
	}
	return fallback.Execute[FileAnalysis](ctx, e, fallback.Request{
		Prompt:     filePrompt,
		Model:      model,
		Provider:   providerName,
		Attachment: att,
	})
}

func printIndented(values ...any) error {
	return printIndentedTo(os.Stdout, values...)
}

func printIndentedTo(w io.Writer, values ...any) error {
	for _, v := range values {
		bts, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if _, err := fmt.Fprintln(w, string(bts)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}
