package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

type fakeAppender map[string][]string

func (f fakeAppender) AppendList(key, value string) error {
	f[key] = append(f[key], value)
	return nil
}

func ptr(s string) *string { return &s }

func testCheck(t *testing.T, logName string) (modelCheck, fakeAppender, *bytes.Buffer) {
	t.Helper()
	store := fakeAppender{}
	var out bytes.Buffer
	return modelCheck{
		store:   store,
		logPath: filepath.Join(t.TempDir(), "logs", logName),
		out:     &out,
		logger:  log.New(io.Discard),
	}, store, &out
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	bts, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(bts)
}

func TestFlagNonWorking(t *testing.T) {
	answers := map[string]Weather{
		"good/model":        {Haiku: ptr("Sofia sleeps in frost"), Report: ptr("Sofia, Bulgaria: 3C, clear")},
		"no-sofia/model":    {Haiku: ptr("Cold wind in the hills"), Report: ptr("Sofia, Bulgaria: 3C, clear")},
		"no-report/model":   {Haiku: ptr("Sofia sleeps in frost")},
		"excluded/model":    {},
		"before-from/model": {},
	}
	ask := func(_ context.Context, model string) (Weather, *fallback.Report, error) {
		if model == "broken/model" {
			return Weather{}, nil, errors.New("tool calls unsupported")
		}
		w, ok := answers[model]
		require.True(t, ok, "unexpected request to %s", model)
		return w, &fallback.Report{ModelName: model}, nil
	}
	models := []string{"before-from/model", "good/model", "broken/model", "excluded/model", "no-sofia/model", "no-report/model"}
	excluded := func(m string) bool { return m == "excluded/model" }

	c, store, out := testCheck(t, toolErrorsLog)
	require.NoError(t, c.nonWorking(context.Background(), models, "good/model", excluded, ask))

	require.Equal(t, []string{"broken/model", "no-sofia/model", "no-report/model"}, store[config.KeyExcludedModels])
	require.Equal(t,
		"Model: broken/model Error: tool calls unsupported\n"+
			"Incomplete response from no-sofia/model\n"+
			"Incomplete response from no-report/model\n",
		readLog(t, c.logPath),
	)
	require.Contains(t, out.String(), `"model_name": "good/model"`)
}

func TestFlagNonWorkingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, store, _ := testCheck(t, toolErrorsLog)
	err := c.nonWorking(ctx, []string{"a/b"}, "", func(string) bool { return false }, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, store)
}

func TestFlagFileCapable(t *testing.T) {
	ask := func(_ context.Context, model string) (FileAnalysis, *fallback.Report, error) {
		switch model {
		case "reads/files":
			return FileAnalysis{Key: ptr("dog"), Value: ptr("Roger")}, &fallback.Report{ModelName: model}, nil
		case "wrong/value":
			return FileAnalysis{Key: ptr("dog"), Value: ptr("Rex")}, &fallback.Report{ModelName: model}, nil
		case "no/key":
			return FileAnalysis{}, &fallback.Report{ModelName: model}, nil
		}
		return FileAnalysis{}, nil, errors.New("attachments unsupported")
	}

	c, store, out := testCheck(t, fileCapabilityLog)
	require.NoError(t, c.fileCapable(context.Background(), []string{"reads/files", "wrong/value", "no/key", "text/only"}, ask))

	require.Equal(t, []string{"reads/files"}, store[config.KeyFileCapableModels])
	require.Empty(t, store[config.KeyExcludedModels])
	require.Equal(t,
		"SUCCESS: Model reads/files extracted key='dog' value='Roger'\n"+
			"FAILED: Model wrong/value extracted key='dog' value='Rex'\n"+
			"FAILED: Model no/key extracted key='' value=''\n"+
			"Model: text/only Error: attachments unsupported\n",
		readLog(t, c.logPath),
	)
	require.Contains(t, out.String(), "Testing model: text/only")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestCheckResultWriteFailure(t *testing.T) {
	weather := func(_ context.Context, model string) (Weather, *fallback.Report, error) {
		return Weather{Haiku: ptr("Sofia sleeps in frost"), Report: ptr("Sofia: 3C")}, &fallback.Report{ModelName: model}, nil
	}
	file := func(_ context.Context, model string) (FileAnalysis, *fallback.Report, error) {
		return FileAnalysis{Key: ptr("dog"), Value: ptr("Roger")}, &fallback.Report{ModelName: model}, nil
	}
	for name, run := range map[string]func(modelCheck) error{
		"non working": func(c modelCheck) error {
			return c.nonWorking(context.Background(), []string{"good/model"}, "", func(string) bool { return false }, weather)
		},
		"file capable": func(c modelCheck) error {
			return c.fileCapable(context.Background(), []string{"good/model"}, file)
		},
	} {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			c := modelCheck{
				store:   fakeAppender{},
				logPath: filepath.Join(t.TempDir(), "check.log"),
				out:     failingWriter{},
				logger:  log.New(&logs),
			}
			require.NoError(t, run(c))
			require.Contains(t, logs.String(), "could not print check result")
			require.Contains(t, logs.String(), "model=good/model")
			require.Contains(t, logs.String(), "broken pipe")
		})
	}
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.txt")
	require.NoError(t, appendLine(path, "one\n"))
	require.NoError(t, appendLine(path, "two\n"))
	require.Equal(t, "one\ntwo\n", readLog(t, path))
}
