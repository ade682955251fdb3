package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aihelper/aihelper/internal/provider"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "defaults": {
    "model": "google/gemini-pro",
    "fallback_model": "openai/gpt-3.5-turbo",
    "fallback_chain": [
      {"model": "gpt-4o-mini", "provider": "openai"},
      {"model": "claude-3-haiku", "provider": "anthropic"}
    ]
  },
  "daily_limits": {"per_model": {"openai/gpt-4o": 100}, "per_service": {}},
  "monthly_limits": {"per_model": {}, "per_service": {"cli": 1000}},
  "model_mappings": {"gpt4": "openai/gpt-4o"},
  "excluded_models": ["mistralai/ministral-3b"]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file writes defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		s, err := Load(path, nil)
		require.NoError(t, err)
		require.Equal(t, ModeStrict, s.Mode())
		require.FileExists(t, path)

		again, err := Load(path, nil)
		require.NoError(t, err)
		require.Equal(t, s.Config(), again.Config())
	})

	t.Run("sample", func(t *testing.T) {
		s, err := Load(writeSample(t), nil)
		require.NoError(t, err)
		cfg := s.Config()
		require.Equal(t, "google/gemini-pro", cfg.Defaults.Model)
		require.Equal(t, []provider.ModelRef{
			{Model: "gpt-4o-mini", Provider: provider.OpenAI},
			{Model: "claude-3-haiku", Provider: provider.Anthropic},
		}, cfg.Defaults.FallbackChain)
		require.Equal(t, ModeStrict, cfg.Mode)
		require.Equal(t, 100, cfg.DailyLimits.PerModel["openai/gpt-4o"])

		fb, err := cfg.FallbackModel()
		require.NoError(t, err)
		require.Equal(t, &provider.ModelRef{Model: "gpt-3.5-turbo", Provider: provider.OpenAI}, fb)
	})

	t.Run("invalid mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"mode":"yolo"}`), 0o600))
		_, err := Load(path, nil)
		require.Error(t, err)
	})

	t.Run("unknown provider in chain", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"defaults":{"model":"x/y","fallback_chain":[{"model":"m","provider":"acme"}]}}`), 0o600))
		_, err := Load(path, nil)
		require.ErrorIs(t, err, provider.ErrUnknownProvider)
	})

	t.Run("blank model in chain", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"defaults":{"model":"x/y","fallback_chain":[{"model":"  ","provider":"openai"}]}}`), 0o600))
		_, err := Load(path, nil)
		require.ErrorIs(t, err, provider.ErrEmptyModel)
	})

	t.Run("corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		_, err := Load(path, nil)
		require.Error(t, err)
	})
}

func TestAppendList(t *testing.T) {
	path := writeSample(t)
	s, err := Load(path, nil)
	require.NoError(t, err)

	t.Run("append persists", func(t *testing.T) {
		require.NoError(t, s.AppendList(KeyExcludedModels, "qwen/qwen3-8b"))
		require.NoError(t, s.AppendList(KeyFileCapableModels, "openai/gpt-4.1"))

		reloaded, err := Load(path, nil)
		require.NoError(t, err)
		require.True(t, reloaded.IsExcluded("qwen/qwen3-8b"))
		require.True(t, reloaded.IsExcluded("mistralai/ministral-3b"))
		require.True(t, reloaded.IsFileCapable("openai/gpt-4.1"))
		require.False(t, reloaded.IsFileCapable("qwen/qwen3-8b"))
	})

	t.Run("no duplicates", func(t *testing.T) {
		require.NoError(t, s.AppendList(KeyExcludedModels, "qwen/qwen3-8b"))
		require.Len(t, s.Config().ExcludedModels, 2)
	})

	t.Run("not a list", func(t *testing.T) {
		require.ErrorIs(t, s.AppendList(KeyMode, "loose"), ErrNotList)
		require.ErrorIs(t, s.AppendList(KeyDefaults, "x"), ErrNotList)
	})

	t.Run("unknown key", func(t *testing.T) {
		require.ErrorIs(t, s.AppendList("nope", "x"), ErrUnknownKey)
	})
}

func TestGetSet(t *testing.T) {
	path := writeSample(t)
	s, err := Load(path, nil)
	require.NoError(t, err)

	v, err := s.Get(KeyMode)
	require.NoError(t, err)
	require.Equal(t, "strict", v)

	v, err = s.Get(KeyExcludedModels)
	require.NoError(t, err)
	require.Equal(t, []any{"mistralai/ministral-3b"}, v)

	require.NoError(t, s.Set(KeyMode, ModeLoose))
	require.NoError(t, s.Set(KeyModelMappings, map[string]string{"sonnet": "anthropic/claude-sonnet-4"}))

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, ModeLoose, reloaded.Mode())
	require.Equal(t, map[string]string{"sonnet": "anthropic/claude-sonnet-4"}, reloaded.Config().ModelMappings)
	require.Equal(t, "google/gemini-pro", reloaded.Config().Defaults.Model)

	require.Error(t, s.Set(KeyMode, "yolo"))
	require.Equal(t, ModeLoose, s.Mode())

	_, err = s.Get("nope")
	require.ErrorIs(t, err, ErrUnknownKey)
	require.ErrorIs(t, s.Set("nope", 1), ErrUnknownKey)
}
