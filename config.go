package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/tools"
	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const appName = "aihelper"

var help = map[string]string{
	"model":               "Default model, prefixed with its provider (openai/gpt-4.1).",
	"provider":            "Default provider (openai, open_router, anthropic, google, cohere, ollama).",
	"schema":              "Output schema (text, hello, weather, file, inspiration).",
	"file":                "File to attach to the prompt (image, PDF or text).",
	"fallback":            "Additional fallback model for this request (provider/model).",
	"fallback-chain":      "Additional fallback models for this request, tried in order.",
	"system":              "System prompt.",
	"tools":               "Let the model call the built-in and MCP tools.",
	"quiet":               "Quiet mode (hide the spinner while loading).",
	"raw":                 "Render output as raw text when connected to a TTY.",
	"copy":                "Copy the answer to the clipboard.",
	"report":              "Print the request report to stderr.",
	"timeout":             "Timeout for the whole request, fallbacks included.",
	"max-tokens":          "Maximum number of tokens in response.",
	"temp":                "Temperature (randomness) of results, from 0.0 to 2.0.",
	"http-proxy":          "HTTP proxy to use for API requests.",
	"log-level":           "Log level (debug, info, warn, error).",
	"config-path":         "JSON file holding fallbacks, limits, aliases and flagged models.",
	"usage-path":          "JSON file holding the usage ledger.",
	"catalog-url":         "URL of the model catalog.",
	"catalog-cache-path":  "Where the model catalog is cached for a day.",
	"model-mappings-path": "JSON file mapping model aliases to catalog ids.",
	"reports-path":        "SQLite database archiving request reports.",
	"cache-path":          "Directory for short lived tool caches.",
	"logs-path":           "Directory for model check logs.",
	"apis":                "API keys and endpoints per provider.",
	"mcp-servers":         "MCP servers whose tools models may call.",
	"mcp-disable":         "MCP servers to disable, \"*\" disables all of them.",
	"mcp-timeout":         "Timeout for MCP server calls.",
	"settings":            "Open settings in your $EDITOR.",
	"reset-settings":      "Backup your old settings file and reset everything to the defaults.",
}

// APISettings is how to reach one provider.
type APISettings struct {
	APIKey         string `yaml:"api-key"`
	APIKeyEnv      string `yaml:"api-key-env"`
	BaseURL        string `yaml:"base-url"`
	APIType        string `yaml:"api-type"`
	ThinkingBudget int    `yaml:"thinking-budget"`
}

// Settings is mapped to the YAML settings file.
type Settings struct {
	Model             string                  `yaml:"default-model" env:"MODEL"`
	Provider          string                  `yaml:"default-provider" env:"PROVIDER"`
	Quiet             bool                    `yaml:"quiet" env:"QUIET"`
	Raw               bool                    `yaml:"raw" env:"RAW"`
	MaxTokens         int64                   `yaml:"max-tokens" env:"MAX_TOKENS"`
	Temperature       float64                 `yaml:"temp" env:"TEMP"`
	Timeout           time.Duration           `yaml:"timeout" env:"TIMEOUT"`
	HTTPProxy         string                  `yaml:"http-proxy" env:"HTTP_PROXY"`
	LogLevel          string                  `yaml:"log-level" env:"LOG_LEVEL"`
	ConfigPath        string                  `yaml:"config-path" env:"CONFIG_PATH"`
	UsagePath         string                  `yaml:"usage-path" env:"USAGE_PATH"`
	CatalogURL        string                  `yaml:"catalog-url" env:"CATALOG_URL"`
	CatalogCachePath  string                  `yaml:"catalog-cache-path" env:"CATALOG_CACHE_PATH"`
	ModelMappingsPath string                  `yaml:"model-mappings-path" env:"MODEL_MAPPINGS_PATH"`
	ReportsPath       string                  `yaml:"reports-path" env:"REPORTS_PATH"`
	CachePath         string                  `yaml:"cache-path" env:"CACHE_PATH"`
	LogsPath          string                  `yaml:"logs-path" env:"LOGS_PATH"`
	APIs              map[string]APISettings  `yaml:"apis"`
	MCPServers        map[string]tools.Server `yaml:"mcp-servers"`
	MCPDisable        []string                `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout        time.Duration           `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`

	SettingsPath string `yaml:"-"`
}

// default env vars holding each provider's key, used when the settings
// name none.
var defaultKeyEnvs = map[provider.Kind][]string{
	provider.OpenAI:     {"OPENAI_API_KEY"},
	provider.OpenRouter: {"OPENROUTER_API_KEY"},
	provider.Anthropic:  {"ANTHROPIC_API_KEY"},
	provider.Google:     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	provider.Cohere:     {"COHERE_API_KEY", "CO_API_KEY"},
}

// Endpoints resolves the API settings into provider endpoints. Keys come
// from api-key, then the api-key-env variable, then the well known
// variable of the provider.
func (s Settings) Endpoints() (map[provider.Kind]provider.Endpoint, error) {
	endpoints := map[provider.Kind]provider.Endpoint{}
	for name, api := range s.APIs {
		kind, err := provider.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("apis: %w", err)
		}
		endpoints[kind] = provider.Endpoint{
			APIKey:         api.APIKey,
			BaseURL:        api.BaseURL,
			APIType:        api.APIType,
			ThinkingBudget: api.ThinkingBudget,
		}
		if api.APIKey == "" && api.APIKeyEnv != "" {
			ep := endpoints[kind]
			ep.APIKey = os.Getenv(api.APIKeyEnv)
			endpoints[kind] = ep
		}
	}
	for _, kind := range provider.Kinds {
		ep := endpoints[kind]
		for _, name := range defaultKeyEnvs[kind] {
			if ep.APIKey != "" {
				break
			}
			ep.APIKey = os.Getenv(name)
		}
		endpoints[kind] = ep
	}
	return endpoints, nil
}

func ensureSettings() (Settings, error) {
	sp, err := xdg.ConfigFile(filepath.Join(appName, appName+".yml"))
	if err != nil {
		return Settings{}, cliError{err, "Could not find settings path."}
	}
	return loadSettings(sp)
}

// loadSettings reads the settings at path, writing the defaults first when
// the file does not exist. A .env file in the working directory and the
// AIHELPER_ environment variables override the file.
func loadSettings(path string) (Settings, error) {
	var s Settings
	s.SettingsPath = path

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { //nolint:mnd
		return s, cliError{err, "Could not create settings directory."}
	}
	if err := writeSettingsFile(path); err != nil {
		return s, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return s, cliError{err, "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &s); err != nil {
		return s, cliError{err, "Could not parse settings file."}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return s, cliError{err, "Could not load .env file."}
	}
	if err := env.ParseWithOptions(&s, env.Options{Prefix: "AIHELPER_"}); err != nil {
		return s, cliError{err, "Could not parse environment into settings file."}
	}

	s.applyDefaults(filepath.Dir(path))
	return s, nil
}

func (s *Settings) applyDefaults(configDir string) {
	dataDir := filepath.Join(xdg.DataHome, appName)
	cacheDir := filepath.Join(xdg.CacheHome, appName)
	for _, d := range []struct {
		field *string
		value string
	}{
		{&s.LogLevel, "info"},
		{&s.ConfigPath, filepath.Join(configDir, "config.json")},
		{&s.ModelMappingsPath, filepath.Join(configDir, "model_mappings.json")},
		{&s.UsagePath, filepath.Join(dataDir, "usage.json")},
		{&s.ReportsPath, filepath.Join(dataDir, "reports.db")},
		{&s.CatalogCachePath, filepath.Join(cacheDir, "models_cache.json")},
		{&s.CachePath, cacheDir},
		{&s.LogsPath, "logs"},
	} {
		if *d.field == "" {
			*d.field = d.value
		}
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Minute //nolint:mnd
	}
	if s.MCPTimeout == 0 {
		s.MCPTimeout = 15 * time.Second //nolint:mnd
	}
}

func writeSettingsFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createSettingsFile(path)
	} else if err != nil {
		return cliError{err, "Could not stat path."}
	}
	return nil
}

func createSettingsFile(path string) error {
	tmpl := template.Must(template.New("settings").Parse(settingsTemplate))

	f, err := os.Create(path)
	if err != nil {
		return cliError{err, "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct {
		Help map[string]string
	}{
		Help: help,
	}
	if err := tmpl.Execute(f, m); err != nil {
		return cliError{err, "Could not render template."}
	}
	return nil
}

func resetSettings(path string) (string, error) {
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", cliError{err, "Could not backup settings file."}
	}
	if err := createSettingsFile(path); err != nil {
		return "", err
	}
	return backup, nil
}

func useLine() string {
	name := filepath.Base(os.Args[0])

	if stdoutRenderer().ColorProfile() == termenv.TrueColor {
		name = makeGradientText(stdoutStyles().AppName, name)
	}

	return fmt.Sprintf(
		"%s %s",
		name,
		stdoutStyles().CliArgs.Render("[COMMAND] [OPTIONS]"),
	)
}

func usageFunc(cmd *cobra.Command) error {
	fmt.Printf("LLM requests with fallbacks, cost tracking and structured output.\n\n")
	fmt.Printf(
		"Usage:\n  %s\n\n",
		useLine(),
	)
	if cmd.HasAvailableSubCommands() {
		fmt.Println("Commands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Printf(
				"  %-24s %s\n",
				stdoutStyles().Flag.Render(sub.Name()),
				stdoutStyles().FlagDesc.Render(sub.Short),
			)
		}
		fmt.Println()
	}
	fmt.Println("Options:")
	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Printf(
				"  %-44s %s\n",
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Printf(
				"  %s%s %-40s %s\n",
				stdoutStyles().Flag.Render("-"+f.Shorthand),
				stdoutStyles().FlagComma,
				stdoutStyles().Flag.Render("--"+f.Name),
				stdoutStyles().FlagDesc.Render(f.Usage),
			)
		}
	})
	desc, example := randomExample()
	fmt.Printf(
		"\nExample:\n  %s\n  %s\n",
		stdoutStyles().Comment.Render("# "+desc),
		cheapHighlighting(stdoutStyles(), example),
	)

	return nil
}

// cheapHighlighting colors quoted text and pipes in an example command.
func cheapHighlighting(s styles, code string) string {
	code = regexpQuote.ReplaceAllStringFunc(code, func(x string) string {
		return s.Quote.Render(x)
	})
	return strings.ReplaceAll(code, "|", s.Pipe.Render("|"))
}
