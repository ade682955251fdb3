package main

import (
	"errors"
	"os"
	"strings"

	"github.com/aihelper/aihelper/internal/catalog"
	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/reports"
	"github.com/aihelper/aihelper/internal/tools"
	"github.com/aihelper/aihelper/internal/usage"
	"github.com/charmbracelet/log"
)

// app holds everything a command needs, built from the settings.
type app struct {
	settings Settings
	logger   *log.Logger
	store    *config.Store
	catalog  *catalog.Catalog
	ledger   *usage.Ledger
	reports  *reports.DB
	factory  *provider.Factory
	tools    *tools.Registry
	executor *fallback.Executor
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          appName,
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("invalid log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func newApp(s Settings, logger *log.Logger) (*app, error) {
	a := &app{settings: s, logger: logger}

	store, err := config.Load(s.ConfigPath, logger)
	if err != nil {
		return nil, cliError{err, "Could not load the config."}
	}
	a.store = store

	httpClient, err := provider.NewHTTPClient(s.Timeout, s.HTTPProxy)
	if err != nil {
		return nil, cliError{err, "Invalid HTTP proxy."}
	}
	endpoints, err := s.Endpoints()
	if err != nil {
		return nil, cliError{err, "Invalid API settings."}
	}
	a.factory = provider.NewFactory(endpoints, httpClient)

	a.catalog = catalog.New(catalog.Options{
		URL:        s.CatalogURL,
		CachePath:  s.CatalogCachePath,
		AliasPath:  s.ModelMappingsPath,
		Aliases:    store.Config().ModelMappings,
		HTTPClient: httpClient,
		Logger:     logger.WithPrefix("catalog"),
	})

	ledger, err := usage.Open(s.UsagePath, usage.WithLogger(logger.WithPrefix("usage")))
	if err != nil {
		return nil, cliError{err, "Could not open the usage ledger."}
	}
	a.ledger = ledger

	db, err := reports.Open(s.ReportsPath)
	if err != nil {
		return nil, cliError{err, "Could not open the reports database."}
	}
	a.reports = db

	weather, err := tools.NewWeatherClient(s.CachePath, httpClient)
	if err != nil {
		_ = db.Close()
		return nil, cliError{err, "Could not create the tools cache."}
	}
	weather.Logger = logger.WithPrefix("weather")
	mcpTools, err := tools.NewMCP(s.MCPServers, s.MCPDisable, s.CachePath, logger.WithPrefix("mcp"))
	if err != nil {
		_ = db.Close()
		return nil, cliError{err, "Could not create the tools cache."}
	}
	a.tools = &tools.Registry{
		Weather: weather,
		MCP:     mcpTools,
		Logger:  logger.WithPrefix("tools"),
	}

	a.executor = fallback.New(
		a.factory,
		fallback.WithConfig(store),
		fallback.WithPricer(a.catalog),
		fallback.WithLedger(ledger),
		fallback.WithArchive(db),
		fallback.WithLogger(logger.WithPrefix("fallback")),
	)
	return a, nil
}

func (a *app) Close() error {
	if a.reports == nil {
		return nil
	}
	return a.reports.Close()
}

// resolveModel picks the model and provider of a request: the flags, then
// the settings, then the config defaults. Without an explicit provider the
// model prefix names it when it is a known provider, otherwise the model is
// an OpenRouter id.
func (a *app) resolveModel(model, providerName string) (string, string) {
	for _, m := range []string{model, a.settings.Model, a.store.Config().Defaults.Model} {
		if m != "" {
			model = m
			break
		}
	}
	if providerName != "" {
		return model, providerName
	}
	if prefix, _, ok := strings.Cut(model, "/"); ok {
		if kind, err := provider.ParseKind(prefix); err == nil {
			return model, string(kind)
		}
	}
	if a.settings.Provider != "" {
		return model, a.settings.Provider
	}
	return model, string(provider.OpenRouter)
}

func closeApp(a *app) {
	if err := a.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		a.logger.Warn("could not close", "err", err)
	}
}
