package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aihelper/aihelper/internal/provider"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadSettings(t *testing.T) {
	t.Run("writes the template", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "aihelper.yml")

		s, err := loadSettings(path)
		require.NoError(t, err)
		require.FileExists(t, path)
		require.Equal(t, path, s.SettingsPath)
		require.Equal(t, 2*time.Minute, s.Timeout)
		require.Equal(t, 15*time.Second, s.MCPTimeout)
		require.Equal(t, "info", s.LogLevel)
		require.Equal(t, "logs", s.LogsPath)
		require.Equal(t, filepath.Join(dir, "config.json"), s.ConfigPath)
		require.Equal(t, filepath.Join(dir, "model_mappings.json"), s.ModelMappingsPath)
		require.Empty(t, s.Model)
		require.Len(t, s.APIs, len(provider.Kinds))
		require.Equal(t, "OPENAI_API_KEY", s.APIs["openai"].APIKeyEnv)
	})

	t.Run("keeps an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aihelper.yml")
		require.NoError(t, os.WriteFile(path, []byte("default-model: openai/gpt-4o\ntimeout: 30s\n"), 0o600))

		s, err := loadSettings(path)
		require.NoError(t, err)
		require.Equal(t, "openai/gpt-4o", s.Model)
		require.Equal(t, 30*time.Second, s.Timeout)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aihelper.yml")
		require.NoError(t, os.WriteFile(path, []byte("default-model: openai/gpt-4o\n"), 0o600))
		t.Setenv("AIHELPER_MODEL", "anthropic/claude-3-5-haiku")
		t.Setenv("AIHELPER_QUIET", "true")

		s, err := loadSettings(path)
		require.NoError(t, err)
		require.Equal(t, "anthropic/claude-3-5-haiku", s.Model)
		require.True(t, s.Quiet)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aihelper.yml")
		require.NoError(t, os.WriteFile(path, []byte("timeout: [nope"), 0o600))

		_, err := loadSettings(path)
		var ce cliError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, "Could not parse settings file.", ce.Reason())
	})
}

func TestResetSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aihelper.yml")
	require.NoError(t, os.WriteFile(path, []byte("quiet: true\n"), 0o600))

	backup, err := resetSettings(path)
	require.NoError(t, err)
	require.Equal(t, path+".bak", backup)

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.Equal(t, "quiet: true\n", string(old))

	var s Settings
	bts, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(bts, &s))
	require.False(t, s.Quiet)
}

func TestEndpoints(t *testing.T) {
	for _, env := range []string{
		"OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY",
		"GOOGLE_API_KEY", "GEMINI_API_KEY", "COHERE_API_KEY", "CO_API_KEY",
		"MY_OPENAI_KEY",
	} {
		t.Setenv(env, "")
	}

	t.Run("key precedence", func(t *testing.T) {
		t.Setenv("MY_OPENAI_KEY", "from-custom-env")
		t.Setenv("OPENAI_API_KEY", "from-default-env")
		t.Setenv("ANTHROPIC_API_KEY", "from-default-env")
		t.Setenv("GEMINI_API_KEY", "from-second-env")

		s := Settings{APIs: map[string]APISettings{
			"openai":      {APIKeyEnv: "MY_OPENAI_KEY", BaseURL: "http://localhost:1234/v1"},
			"open_router": {APIKey: "inline", APIKeyEnv: "MY_OPENAI_KEY"},
		}}
		endpoints, err := s.Endpoints()
		require.NoError(t, err)
		require.Len(t, endpoints, len(provider.Kinds))
		require.Equal(t, "from-custom-env", endpoints[provider.OpenAI].APIKey)
		require.Equal(t, "http://localhost:1234/v1", endpoints[provider.OpenAI].BaseURL)
		require.Equal(t, "inline", endpoints[provider.OpenRouter].APIKey)
		require.Equal(t, "from-default-env", endpoints[provider.Anthropic].APIKey)
		require.Equal(t, "from-second-env", endpoints[provider.Google].APIKey)
		require.Empty(t, endpoints[provider.Cohere].APIKey)
		require.Empty(t, endpoints[provider.Ollama].APIKey)
	})

	t.Run("unknown provider", func(t *testing.T) {
		s := Settings{APIs: map[string]APISettings{"azure": {}}}
		_, err := s.Endpoints()
		require.ErrorIs(t, err, provider.ErrUnknownProvider)
	})
}
