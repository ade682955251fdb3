// Package fallback runs structured output requests across an ordered chain
// of models until one of them succeeds.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/schema"
	"github.com/aihelper/aihelper/internal/usage"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// Clients resolves the client serving a provider.
type Clients interface {
	Client(provider.Kind) (llm.Client, error)
}

// ConfigSource provides the configured fallbacks and exclusions.
type ConfigSource interface {
	Config() config.Config
	IsExcluded(key string) bool
}

// Pricer prices token usage on a model.
type Pricer interface {
	Cost(ctx context.Context, id string, usage proto.Usage) float64
}

// Recorder records successful requests.
type Recorder interface {
	Record(usage.Entry) error
}

// Archive stores reports.
type Archive interface {
	Save(ctx context.Context, r Report) error
}

// Report describes a successful request.
type Report struct {
	ModelName       string        `json:"model_name"`
	Provider        provider.Kind `json:"provider"`
	Schema          string        `json:"schema,omitempty"`
	RunDate         time.Time     `json:"run_date"`
	RunID           string        `json:"run_id"`
	Usage           proto.Usage   `json:"usage"`
	Cost            float64       `json:"cost"`
	FillPercentage  int           `json:"fill_percentage"`
	FallbackUsed    bool          `json:"fallback_used"`
	AttemptedModels []string      `json:"attempted_models"`
	Tools           []string      `json:"tools,omitempty"`
	// Conversation is the markdown transcript of the successful attempt.
	Conversation string `json:"conversation,omitempty"`
}

// Request is a prompt to run.
type Request struct {
	Prompt     string
	System     string
	Attachment *proto.Attachment
	// Model must carry a provider prefix, e.g. "openai/gpt-4o".
	Model    string
	Provider string
	Overrides
	Tools       []mcp.Tool
	ToolCaller  func(name string, data []byte) (string, error)
	Temperature *float64
	MaxTokens   *int64
}

// Executor runs requests.
type Executor struct {
	clients Clients
	config  ConfigSource
	pricer  Pricer
	ledger  Recorder
	archive Archive
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures an [Executor].
type Option func(*Executor)

// WithConfig sets where the configured fallbacks come from.
func WithConfig(c ConfigSource) Option { return func(e *Executor) { e.config = c } }

// WithPricer sets how costs are computed.
func WithPricer(p Pricer) Option { return func(e *Executor) { e.pricer = p } }

// WithLedger sets the usage ledger.
func WithLedger(r Recorder) Option { return func(e *Executor) { e.ledger = r } }

// WithArchive sets the report archive.
func WithArchive(a Archive) Option { return func(e *Executor) { e.archive = a } }

// WithClock sets the clock.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an executor using clients.
func New(clients Clients, opts ...Option) *Executor {
	e := &Executor{
		clients: clients,
		logger:  log.New(io.Discard),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Chain returns the candidates req would try, in order.
func (e *Executor) Chain(req Request) ([]provider.ModelRef, error) {
	primary, err := provider.NewRef(req.Provider, req.Model)
	if err != nil {
		return nil, &CallerError{Err: err}
	}
	var cfg config.Config
	if e.config != nil {
		cfg = e.config.Config()
	}
	chain, err := BuildChain(primary, req.Overrides, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Mode != config.ModeLoose && e.config != nil {
		chain = dropExcluded(chain, e.config.IsExcluded)
	}
	return chain, nil
}

// Execute runs req, decoding the answer into T.
func Execute[T any](ctx context.Context, e *Executor, req Request) (T, *Report, error) {
	d := schema.For[T]()
	var out T
	report, err := e.run(ctx, req, &d, func(content string) (int, error) {
		v, fill, err := schema.Decode[T](content)
		if err != nil {
			return 0, err
		}
		out = v
		return fill, nil
	})
	return out, report, err
}

// Result is the outcome of an asynchronous execution.
type Result[T any] struct {
	Value  T
	Report *Report
	Err    error
}

// ExecuteAsync runs req in the background. The channel receives exactly
// one result. Cancelling ctx aborts the chain at the current attempt.
func ExecuteAsync[T any](ctx context.Context, e *Executor, req Request) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, report, err := Execute[T](ctx, e, req)
		ch <- Result[T]{Value: v, Report: report, Err: err}
	}()
	return ch
}

// ExecuteText runs req and returns the raw answer.
func (e *Executor) ExecuteText(ctx context.Context, req Request) (string, *Report, error) {
	var out string
	report, err := e.run(ctx, req, nil, func(content string) (int, error) {
		if content == "" {
			return 0, llm.ErrNoContent
		}
		out = content
		return 0, nil
	})
	return out, report, err
}

func (e *Executor) run(
	ctx context.Context,
	req Request,
	d *schema.Descriptor,
	decode func(content string) (int, error),
) (*Report, error) {
	chain, err := e.Chain(req)
	if err != nil {
		return nil, err
	}

	system := req.System
	var outputSchema []byte
	schemaName := ""
	if d != nil {
		schemaName = d.Name
		outputSchema = d.JSONSchema
		if system != "" {
			system += "\n\n"
		}
		system += d.Instructions()
	}
	var messages []proto.Message
	if system != "" {
		messages = append(messages, proto.Message{Role: proto.RoleSystem, Content: system})
	}
	messages = append(messages, proto.Message{
		Role:       proto.RoleUser,
		Content:    req.Prompt,
		Attachment: req.Attachment,
	})

	var (
		attempted []string
		failures  []*AttemptFailure
		last      error
	)
	for _, ref := range chain {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aborted before %s: %w", ref, err)
		}

		attempted = append(attempted, ref.Identity())
		start := e.now()
		resp, fill, err := e.attempt(ctx, ref, proto.Request{
			Messages:     messages,
			Model:        ref.Model,
			Tools:        req.Tools,
			ToolCaller:   req.ToolCaller,
			Temperature:  req.Temperature,
			MaxTokens:    req.MaxTokens,
			OutputSchema: outputSchema,
		}, decode)
		elapsed := e.now().Sub(start)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, fmt.Errorf("aborted during %s: %w", ref, err)
			}
			failure := &AttemptFailure{Model: ref.Identity(), Elapsed: elapsed, Err: err}
			e.logger.Warn("model attempt failed", "model", failure.Model, "elapsed", elapsed, "err", err)
			failures = append(failures, failure)
			last = err
			continue
		}

		report := Report{
			ModelName:       ref.Identity(),
			Provider:        ref.Provider,
			Schema:          schemaName,
			RunDate:         start,
			RunID:           e.newID(),
			Usage:           resp.Usage,
			FillPercentage:  fill,
			FallbackUsed:    len(attempted) > 1,
			AttemptedModels: attempted,
			Tools:           resp.ToolNames(),
			Conversation:    resp.Transcript(messages).String(),
		}
		if e.pricer != nil {
			report.Cost = e.pricer.Cost(ctx, ref.CatalogKey(), resp.Usage)
		}
		e.logger.Info(
			"model answered",
			"model", report.ModelName,
			"attempts", len(attempted),
			"cost", report.Cost,
			"fill", report.FillPercentage,
		)
		e.persist(ctx, report, d != nil)
		return &report, nil
	}

	return nil, &ChainExhaustedError{
		Attempted: attempted,
		Failures:  failures,
		Last:      last,
	}
}

func (e *Executor) attempt(
	ctx context.Context,
	ref provider.ModelRef,
	req proto.Request,
	decode func(string) (int, error),
) (*proto.Response, int, error) {
	client, err := e.clients.Client(ref.Provider)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck
	}
	resp, err := client.Request(ctx, req)
	if err != nil {
		return nil, 0, err //nolint:wrapcheck
	}
	fill, err := decode(resp.Content)
	if err != nil {
		return nil, 0, err
	}
	return resp, fill, nil
}

func (e *Executor) persist(ctx context.Context, report Report, structured bool) {
	if e.ledger != nil {
		fill := report.FillPercentage
		if !structured {
			fill = -1
		}
		if err := e.ledger.Record(usage.Entry{
			Model:          report.ModelName,
			Service:        string(report.Provider),
			Schema:         report.Schema,
			Usage:          report.Usage,
			Cost:           report.Cost,
			FillPercentage: fill,
			Tools:          report.Tools,
		}); err != nil {
			e.logger.Warn("could not record usage", "err", err)
		}
	}
	if e.archive != nil {
		if err := e.archive.Save(ctx, report); err != nil {
			e.logger.Warn("could not archive report", "run_id", report.RunID, "err", err)
		}
	}
}
