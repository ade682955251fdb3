package fallback

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/schema"
	"github.com/aihelper/aihelper/internal/usage"
	"github.com/stretchr/testify/require"
)

type sentiment struct {
	Sentiment int  `json:"message_sentiment"`
	Expects   bool `json:"expects_response"`
}

type haiku struct {
	Haiku  *string `json:"haiku,omitempty"`
	Report *string `json:"report,omitempty"`
}

// fakeClient answers per model name.
type fakeClient struct {
	kind    provider.Kind
	clients *fakeClients
}

func (c fakeClient) Request(ctx context.Context, req proto.Request) (*proto.Response, error) {
	return c.clients.answer(ctx, c.kind, req)
}

type answer struct {
	content string
	err     error
	usage   proto.Usage
	tools   []string
}

type fakeClients struct {
	mu       sync.Mutex
	answers  map[string]answer
	calls    []string
	requests []proto.Request
	missing  map[provider.Kind]bool
	onCall   func(identity string)
}

func newFakes(answers map[string]answer) *fakeClients {
	return &fakeClients{answers: answers, missing: map[provider.Kind]bool{}}
}

func (f *fakeClients) Client(kind provider.Kind) (llm.Client, error) {
	if f.missing[kind] {
		return nil, provider.ErrMissingAPIKey
	}
	return fakeClient{kind: kind, clients: f}, nil
}

func (f *fakeClients) answer(ctx context.Context, kind provider.Kind, req proto.Request) (*proto.Response, error) {
	id := provider.ModelRef{Provider: kind, Model: req.Model}.Identity()
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.requests = append(f.requests, req)
	a, ok := f.answers[id]
	onCall := f.onCall
	f.mu.Unlock()
	if onCall != nil {
		onCall(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("404 model not found")
	}
	if a.err != nil {
		return nil, a.err
	}
	resp := &proto.Response{Content: a.content, Usage: a.usage}
	for _, name := range a.tools {
		resp.ToolCalls = append(resp.ToolCalls, proto.ToolCallStatus{Name: name})
	}
	return resp, nil
}

type staticConfig struct {
	cfg config.Config
}

func (s staticConfig) Config() config.Config { return s.cfg }

func (s staticConfig) IsExcluded(key string) bool {
	for _, m := range s.cfg.ExcludedModels {
		if m == key {
			return true
		}
	}
	return false
}

type flatPricer float64

func (p flatPricer) Cost(_ context.Context, id string, u proto.Usage) float64 {
	if id == "unknown/model" {
		return 0
	}
	return float64(p) * float64(u.InputTokens+u.OutputTokens)
}

type memArchive struct{ reports []Report }

func (a *memArchive) Save(_ context.Context, r Report) error {
	a.reports = append(a.reports, r)
	return nil
}

const okJSON = `{"message_sentiment": 7, "expects_response": true}`

func TestFallbackToOverrideModel(t *testing.T) {
	fakes := newFakes(map[string]answer{
		"openai/gpt-4o": {err: errors.New("401 unauthorized")},
		"anthropic/claude-3-haiku": {
			content: okJSON,
			usage:   proto.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, Requests: 1},
		},
	})
	ledger, err := usage.Open(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)
	archive := &memArchive{}
	e := New(fakes, WithPricer(flatPricer(0.001)), WithLedger(ledger), WithArchive(archive))

	v, report, err := Execute[sentiment](context.Background(), e, Request{
		Prompt:    "analyse this",
		Model:     "openai/gpt-4o",
		Provider:  "openai",
		Overrides: Overrides{Model: "anthropic/claude-3-haiku"},
	})
	require.NoError(t, err)
	require.Equal(t, sentiment{Sentiment: 7, Expects: true}, v)
	require.Equal(t, []string{"openai/gpt-4o", "anthropic/claude-3-haiku"}, report.AttemptedModels)
	require.True(t, report.FallbackUsed)
	require.Equal(t, "anthropic/claude-3-haiku", report.ModelName)
	require.Equal(t, 100, report.FillPercentage)
	require.InDelta(t, 0.015, report.Cost, 1e-12)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, "sentiment", report.Schema)

	data := ledger.Data()
	require.Len(t, data.DailyUsage, 1)
	require.Equal(t, "anthropic/claude-3-haiku", data.DailyUsage[0].Model)
	require.Equal(t, "anthropic", data.DailyUsage[0].Service)
	require.Equal(t, "sentiment", data.DailyUsage[0].Schema)
	require.EqualValues(t, 1, data.FillByModel["anthropic/claude-3-haiku"].Count)

	require.Len(t, archive.reports, 1)
	require.Equal(t, report.RunID, archive.reports[0].RunID)
}

func TestMalformedModelIsCallerError(t *testing.T) {
	fakes := newFakes(nil)
	ledgerPath := filepath.Join(t.TempDir(), "usage.json")
	ledger, err := usage.Open(ledgerPath)
	require.NoError(t, err)
	e := New(fakes, WithLedger(ledger))

	_, _, err = Execute[sentiment](context.Background(), e, Request{
		Prompt:   "hi",
		Model:    "gpt-4o",
		Provider: "openai",
	})
	var callerErr *CallerError
	require.ErrorAs(t, err, &callerErr)
	require.ErrorIs(t, err, provider.ErrMissingSeparator)
	require.Empty(t, fakes.calls)
	require.Empty(t, ledger.Data().DailyUsage)

	_, _, err = Execute[sentiment](context.Background(), e, Request{
		Prompt:   "hi",
		Model:    "acme/model",
		Provider: "acme",
	})
	require.ErrorAs(t, err, &callerErr)
	require.ErrorIs(t, err, provider.ErrUnknownProvider)

	_, _, err = Execute[sentiment](context.Background(), e, Request{
		Prompt:    "hi",
		Model:     "openai/gpt-4o",
		Provider:  "openai",
		Overrides: Overrides{Model: "gpt-3.5-turbo"},
	})
	require.ErrorAs(t, err, &callerErr)
	require.Empty(t, fakes.calls)

	_, _, err = Execute[sentiment](context.Background(), e, Request{
		Prompt:   "hi",
		Model:    "openai/",
		Provider: "openai",
	})
	require.ErrorAs(t, err, &callerErr)
	require.ErrorIs(t, err, provider.ErrEmptyModel)

	_, _, err = Execute[sentiment](context.Background(), e, Request{
		Prompt:    "hi",
		Model:     "openai/gpt-4o",
		Provider:  "openai",
		Overrides: Overrides{Chain: []provider.ModelRef{{Model: "", Provider: "anthropic"}}},
	})
	require.ErrorAs(t, err, &callerErr)
	require.ErrorIs(t, err, provider.ErrEmptyModel)
	require.Empty(t, fakes.calls)
	require.Empty(t, ledger.Data().DailyUsage)
}

func TestExhaustion(t *testing.T) {
	fakes := newFakes(map[string]answer{
		"google/gemini-pro":    {err: errors.New("timeout")},
		"openai/gpt-4o-mini":   {content: `{"message_sentiment": 1}`},
		"openai/gpt-3.5-turbo": {content: "not json at all"},
	})
	fakes.missing[provider.Anthropic] = true
	cfg := config.Default()
	cfg.Defaults.FallbackModel = "openai/gpt-3.5-turbo"
	cfg.Defaults.FallbackChain = []provider.ModelRef{
		{Model: "gpt-4o-mini", Provider: provider.OpenAI},
		{Model: "claude-3-haiku", Provider: provider.Anthropic},
	}
	e := New(fakes, WithConfig(staticConfig{cfg}))

	_, report, err := Execute[sentiment](context.Background(), e, Request{
		Prompt:   "hi",
		Model:    "google/gemini-pro",
		Provider: "google",
	})
	require.Nil(t, report)
	var exhausted *ChainExhaustedError
	require.ErrorAs(t, err, &exhausted)
	want := []string{
		"google/gemini-pro",
		"openai/gpt-3.5-turbo",
		"openai/gpt-4o-mini",
		"anthropic/claude-3-haiku",
	}
	require.Equal(t, want, exhausted.Attempted)
	require.Len(t, exhausted.Failures, 4)
	require.ErrorIs(t, err, provider.ErrMissingAPIKey)
	require.ErrorIs(t, exhausted.Failures[1].Err, schema.ErrNoJSON)
	require.ErrorIs(t, exhausted.Failures[2].Err, schema.ErrMissingField)
	require.Equal(t, want[:3], fakes.calls)
	require.Contains(t, err.Error(), "google/gemini-pro, openai/gpt-3.5-turbo, openai/gpt-4o-mini, and anthropic/claude-3-haiku")
}

func TestShortCircuit(t *testing.T) {
	fakes := newFakes(map[string]answer{
		"openai/gpt-4o": {content: "```json\n" + okJSON + "\n```"},
	})
	cfg := config.Default()
	cfg.Defaults.FallbackChain = []provider.ModelRef{{Model: "claude-3-haiku", Provider: provider.Anthropic}}
	e := New(fakes, WithConfig(staticConfig{cfg}))

	_, report, err := Execute[sentiment](context.Background(), e, Request{
		Prompt:   "hi",
		Model:    "openai/gpt-4o",
		Provider: "openai",
	})
	require.NoError(t, err)
	require.False(t, report.FallbackUsed)
	require.Equal(t, []string{"openai/gpt-4o"}, report.AttemptedModels)
	require.Equal(t, []string{"openai/gpt-4o"}, fakes.calls)
}

func TestRequestShape(t *testing.T) {
	fakes := newFakes(map[string]answer{
		"open_router/mistralai/ministral-3b": {
			content: `{"haiku": "Sofia sleeps"}`,
			tools:   []string{"get_weather", "get_human_date"},
		},
	})
	ledger, err := usage.Open(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)
	e := New(fakes, WithLedger(ledger))

	v, report, err := Execute[haiku](context.Background(), e, Request{
		Prompt:     "weather please",
		System:     "be nice",
		Attachment: &proto.Attachment{Name: "a.png", MIMEType: "image/png", Data: []byte("x")},
		Model:      "mistralai/ministral-3b",
		Provider:   "open_router",
	})
	require.NoError(t, err)
	require.Equal(t, "Sofia sleeps", *v.Haiku)
	require.Equal(t, 50, report.FillPercentage)
	require.Equal(t, []string{"get_weather", "get_human_date"}, report.Tools)

	req := fakes.requests[0]
	require.Equal(t, "mistralai/ministral-3b", req.Model)
	require.NotEmpty(t, req.OutputSchema)
	require.Len(t, req.Messages, 2)
	require.Equal(t, proto.RoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "be nice")
	require.Contains(t, req.Messages[0].Content, "JSON schema")
	require.Equal(t, "weather please", req.Messages[1].Content)
	require.NotNil(t, req.Messages[1].Attachment)

	require.Equal(t, map[string]int64{"get_weather": 1, "get_human_date": 1}, ledger.Summarize().ByTool)
}

func TestExecuteText(t *testing.T) {
	fakes := newFakes(map[string]answer{
		"openai/gpt-4o":      {content: ""},
		"anthropic/claude-3": {content: "hello there"},
	})
	ledger, err := usage.Open(filepath.Join(t.TempDir(), "usage.json"))
	require.NoError(t, err)
	e := New(fakes, WithLedger(ledger))

	out, report, err := e.ExecuteText(context.Background(), Request{
		Prompt:    "hi",
		Model:     "openai/gpt-4o",
		Provider:  "openai",
		Overrides: Overrides{Chain: []provider.ModelRef{{Model: "claude-3", Provider: "anthropic"}}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", out)
	require.True(t, report.FallbackUsed)
	require.Empty(t, report.Schema)
	require.Len(t, fakes.requests[0].Messages, 1)
	require.Empty(t, fakes.requests[0].OutputSchema)
	require.Equal(t, "**User**: hi\n\n**Assistant**: hello there\n\n", report.Conversation)

	data := ledger.Data()
	require.Equal(t, usage.NoSchema, data.DailyUsage[0].Schema)
	require.Empty(t, data.FillByModel)
}

func TestStrictMode(t *testing.T) {
	cfg := config.Default()
	cfg.ExcludedModels = []string{"mistralai/ministral-3b", "openai/gpt-4o"}
	cfg.Defaults.FallbackChain = []provider.ModelRef{
		{Model: "mistralai/ministral-3b", Provider: provider.OpenRouter},
		{Model: "claude-3-haiku", Provider: provider.Anthropic},
	}
	req := Request{Model: "openai/gpt-4o", Provider: "openai"}

	t.Run("strict drops excluded fallbacks but keeps the primary", func(t *testing.T) {
		chain, err := New(newFakes(nil), WithConfig(staticConfig{cfg})).Chain(req)
		require.NoError(t, err)
		require.Equal(t, []provider.ModelRef{
			{Model: "gpt-4o", Provider: provider.OpenAI},
			{Model: "claude-3-haiku", Provider: provider.Anthropic},
		}, chain)
	})

	t.Run("loose keeps them", func(t *testing.T) {
		loose := cfg
		loose.Mode = config.ModeLoose
		chain, err := New(newFakes(nil), WithConfig(staticConfig{loose})).Chain(req)
		require.NoError(t, err)
		require.Len(t, chain, 3)
	})
}

func TestCancellation(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		fakes := newFakes(map[string]answer{"openai/gpt-4o": {content: okJSON}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := Execute[sentiment](ctx, New(fakes), Request{Model: "openai/gpt-4o", Provider: "openai"})
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, fakes.calls)
	})

	t.Run("cancelled mid chain stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		fakes := newFakes(map[string]answer{"anthropic/claude-3-haiku": {content: okJSON}})
		fakes.onCall = func(string) { cancel() }
		res := <-ExecuteAsync[sentiment](ctx, New(fakes), Request{
			Model:     "openai/gpt-4o",
			Provider:  "openai",
			Overrides: Overrides{Model: "anthropic/claude-3-haiku"},
		})
		require.ErrorIs(t, res.Err, context.Canceled)
		var exhausted *ChainExhaustedError
		require.False(t, errors.As(res.Err, &exhausted))
		require.Equal(t, []string{"openai/gpt-4o"}, fakes.calls)
	})
}

func TestExecuteAsync(t *testing.T) {
	fakes := newFakes(map[string]answer{"openai/gpt-4o": {content: okJSON}})
	e := New(fakes, WithClock(func() time.Time { return time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC) }))
	res := <-ExecuteAsync[sentiment](context.Background(), e, Request{Model: "openai/gpt-4o", Provider: "openai"})
	require.NoError(t, res.Err)
	require.Equal(t, 7, res.Value.Sentiment)
	require.Equal(t, 2025, res.Report.RunDate.Year())
}
