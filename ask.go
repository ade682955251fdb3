package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

type askOptions struct {
	model     string
	provider  string
	schema    string
	file      string
	system    string
	fallback  string
	chain     []string
	tools     bool
	quiet     bool
	raw       bool
	copy      bool
	report    bool
	timeout   time.Duration
	maxTokens int64
	temp      float64
}

func newAskCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a model, falling back to other models on failure",
		Example: `  aihelper ask "what is the capital of Bulgaria?"
  git diff | aihelper ask "write a commit message"
  aihelper ask --schema weather --tools "weather haiku for Sofia"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.model, "model", "m", settings.Model, help["model"])
	flags.StringVarP(&opts.provider, "provider", "p", settings.Provider, help["provider"])
	flags.VarP(newSchemaFlag(schemaText, &opts.schema), "schema", "s", help["schema"])
	flags.StringVarP(&opts.file, "file", "f", "", help["file"])
	flags.StringVar(&opts.system, "system", "", help["system"])
	flags.StringVar(&opts.fallback, "fallback", "", help["fallback"])
	flags.StringSliceVar(&opts.chain, "fallback-chain", nil, help["fallback-chain"])
	flags.BoolVarP(&opts.tools, "tools", "t", false, help["tools"])
	flags.BoolVarP(&opts.quiet, "quiet", "q", settings.Quiet, help["quiet"])
	flags.BoolVarP(&opts.raw, "raw", "r", settings.Raw, help["raw"])
	flags.BoolVarP(&opts.copy, "copy", "c", false, help["copy"])
	flags.BoolVar(&opts.report, "report", false, help["report"])
	flags.Var(newDurationFlag(settings.Timeout, &opts.timeout), "timeout", help["timeout"])
	flags.Int64Var(&opts.maxTokens, "max-tokens", settings.MaxTokens, help["max-tokens"])
	flags.Float64Var(&opts.temp, "temp", settings.Temperature, help["temp"])
	return cmd
}

func runAsk(cmd *cobra.Command, args []string, opts askOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	stdin, err := readStdin()
	if err != nil {
		return err
	}
	prefix, err := loadMsg(ctx, http.DefaultClient, strings.Join(args, " "))
	if err != nil {
		return cliError{err, "Could not load the prompt."}
	}
	prompt := buildPrompt(prefix, stdin)
	if prompt == "" && opts.file == "" {
		return cliError{newUserErrorf("no prompt given"), "Nothing to ask."}
	}

	req, err := a.askRequest(ctx, opts, prompt)
	if err != nil {
		return err
	}

	var (
		out    string
		report *fallback.Report
	)
	if err := withSpinner(ctx, opts.quiet, "Generating...", func(ctx context.Context) error {
		var err error
		out, report, err = askSchema(ctx, a.executor, opts.schema, req)
		return err
	}); err != nil {
		return explain(err)
	}

	if opts.report && report != nil {
		bts, err := json.MarshalIndent(report, "", "  ")
		if err == nil {
			fmt.Fprintln(os.Stderr, string(bts))
		}
	}
	if opts.copy {
		if err := clipboard.WriteAll(out); err != nil {
			a.logger.Warn("could not copy to clipboard", "err", err)
		}
	}
	return printAnswer(out, opts.schema, opts.raw)
}

func (a *app) askRequest(ctx context.Context, opts askOptions, prompt string) (fallback.Request, error) {
	model, providerName := a.resolveModel(opts.model, opts.provider)
	req := fallback.Request{
		Prompt:   prompt,
		System:   opts.system,
		Model:    model,
		Provider: providerName,
		Overrides: fallback.Overrides{
			Model: opts.fallback,
		},
	}
	for _, s := range opts.chain {
		ref, err := provider.ParseModelString(s)
		if err != nil {
			return req, cliError{err, "Invalid fallback chain."}
		}
		req.Chain = append(req.Chain, ref)
	}
	if opts.file != "" {
		att, err := readAttachment(opts.file)
		if err != nil {
			return req, cliError{err, "Could not read the file."}
		}
		req.Attachment = att
	}
	if opts.tools {
		tctx, cancel := context.WithTimeout(ctx, a.settings.MCPTimeout)
		defer cancel()
		tools, err := a.tools.Tools(tctx)
		if err != nil {
			return req, cliError{err, "Could not list tools."}
		}
		req.Tools = tools
		req.ToolCaller = a.tools.Caller(ctx)
	}
	if opts.maxTokens > 0 {
		req.MaxTokens = &opts.maxTokens
	}
	if opts.temp > 0 {
		req.Temperature = &opts.temp
	}
	return req, nil
}

// askSchema runs req decoding the answer into the named schema. The
// answer is returned as indented JSON, or as is for plain text.
func askSchema(ctx context.Context, e *fallback.Executor, name string, req fallback.Request) (string, *fallback.Report, error) {
	switch name {
	case schemaHello:
		return askJSON[HelloWorld](ctx, e, req)
	case schemaWeather:
		return askJSON[Weather](ctx, e, req)
	case schemaFile:
		return askJSON[FileAnalysis](ctx, e, req)
	case schemaInspiration:
		return askJSON[Inspiration](ctx, e, req)
	default:
		return e.ExecuteText(ctx, req)
	}
}

func askJSON[T any](ctx context.Context, e *fallback.Executor, req fallback.Request) (string, *fallback.Report, error) {
	v, report, err := fallback.Execute[T](ctx, e, req)
	if err != nil {
		return "", report, err //nolint:wrapcheck
	}
	bts, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", report, fmt.Errorf("encode answer: %w", err)
	}
	return string(bts), report, nil
}

func printAnswer(out, schemaName string, raw bool) error {
	if raw || !isOutputTTY() {
		fmt.Println(out)
		return nil
	}
	md := out
	if schemaName != schemaText {
		md = "```json\n" + out + "\n```"
	}
	r, err := glamour.NewTermRenderer(glamour.WithEnvironmentConfig(), glamour.WithWordWrap(0))
	if err != nil {
		return cliError{err, "Could not create the markdown renderer."}
	}
	rendered, err := r.Render(md)
	if err != nil {
		return cliError{err, "Could not render the answer."}
	}
	fmt.Print(rendered)
	return nil
}
