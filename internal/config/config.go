// Package config is the persisted JSON store holding default models, the
// system fallback chain, model exclusions and usage limits.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/charmbracelet/log"
)

// Keys of the config document.
const (
	KeyDefaults          = "defaults"
	KeyDailyLimits       = "daily_limits"
	KeyMonthlyLimits     = "monthly_limits"
	KeyModelMappings     = "model_mappings"
	KeyExcludedModels    = "excluded_models"
	KeyFileCapableModels = "file_capable_models"
	KeyMode              = "mode"
)

var (
	// ErrNotList is returned when appending to a key that does not hold a
	// list.
	ErrNotList = errors.New("not a list")
	// ErrUnknownKey is returned for keys the config does not have.
	ErrUnknownKey = errors.New("unknown config key")
)

// Mode controls how excluded models are treated.
type Mode string

// Modes.
const (
	// ModeStrict drops models that failed custom tool calling from fallback
	// chains and model listings.
	ModeStrict Mode = "strict"
	// ModeLoose keeps them.
	ModeLoose Mode = "loose"
)

// Defaults are the default model and the system fallbacks.
type Defaults struct {
	Model         string              `json:"model"`
	FallbackModel string              `json:"fallback_model,omitempty"`
	FallbackChain []provider.ModelRef `json:"fallback_chain"`
}

// Limits are request limits per model and per service.
type Limits struct {
	PerModel   map[string]int `json:"per_model"`
	PerService map[string]int `json:"per_service"`
}

// Config is the persisted document.
type Config struct {
	Defaults          Defaults          `json:"defaults"`
	DailyLimits       Limits            `json:"daily_limits"`
	MonthlyLimits     Limits            `json:"monthly_limits"`
	ModelMappings     map[string]string `json:"model_mappings"`
	ExcludedModels    []string          `json:"excluded_models"`
	FileCapableModels []string          `json:"file_capable_models"`
	Mode              Mode              `json:"mode"`
}

// Default returns the config written on first use.
func Default() Config {
	return Config{
		Defaults: Defaults{
			Model:         "openai/gpt-4.1",
			FallbackChain: []provider.ModelRef{},
		},
		DailyLimits:       Limits{PerModel: map[string]int{}, PerService: map[string]int{}},
		MonthlyLimits:     Limits{PerModel: map[string]int{}, PerService: map[string]int{}},
		ModelMappings:     map[string]string{},
		ExcludedModels:    []string{},
		FileCapableModels: []string{},
		Mode:              ModeStrict,
	}
}

// FallbackModel parses the system single fallback model, if any.
func (c Config) FallbackModel() (*provider.ModelRef, error) {
	if c.Defaults.FallbackModel == "" {
		return nil, nil
	}
	ref, err := provider.ParseModelString(c.Defaults.FallbackModel)
	if err != nil {
		return nil, fmt.Errorf("fallback_model: %w", err)
	}
	return &ref, nil
}

// Store loads and persists a [Config]. Every mutation rewrites the whole
// file. A single writer process is assumed.
type Store struct {
	path   string
	logger *log.Logger

	mu  sync.RWMutex
	cfg Config
}

// Load reads the config at path. A missing file is created with
// [Default].
func Load(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Store{path: path, logger: logger, cfg: Default()}
	err := cache.ReadJSON(path, &s.cfg)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("writing default config", "path", path)
		if err := s.Save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := s.cfg.normalize(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

func (c *Config) normalize() error {
	switch c.Mode {
	case "":
		c.Mode = ModeStrict
	case ModeStrict, ModeLoose:
	default:
		return fmt.Errorf("invalid mode %q: want %q or %q", c.Mode, ModeStrict, ModeLoose)
	}
	for i, ref := range c.Defaults.FallbackChain {
		kind, err := provider.ParseKind(string(ref.Provider))
		if err != nil {
			return fmt.Errorf("fallback_chain: %w", err)
		}
		if strings.TrimSpace(ref.Model) == "" {
			return fmt.Errorf("fallback_chain[%d]: %w", i, provider.ErrEmptyModel)
		}
		c.Defaults.FallbackChain[i].Provider = kind
	}
	if c.ModelMappings == nil {
		c.ModelMappings = map[string]string{}
	}
	return nil
}

// Path is where the config is persisted.
func (s *Store) Path() string { return s.path }

// Config returns a copy of the current config.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.ExcludedModels = slices.Clone(s.cfg.ExcludedModels)
	cfg.FileCapableModels = slices.Clone(s.cfg.FileCapableModels)
	cfg.Defaults.FallbackChain = slices.Clone(s.cfg.Defaults.FallbackChain)
	return cfg
}

// Mode is the configured mode.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Mode
}

// IsExcluded reports whether the model with the given catalog key failed
// tool calling.
func (s *Store) IsExcluded(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.cfg.ExcludedModels, key)
}

// IsFileCapable reports whether the model with the given catalog key
// passed the file analysis check.
func (s *Store) IsFileCapable(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.cfg.FileCapableModels, key)
}

// Get returns the value under key as its JSON form decoded into generic
// Go values.
func (s *Store) Get(key string) (any, error) {
	s.mu.RLock()
	doc, err := s.document()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set replaces the value under key and saves.
func (s *Store) Set(key string, value any) error {
	bts, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	s.mu.Lock()
	doc, err := s.document()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := doc[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	doc[key] = bts
	merged, err := json.Marshal(doc)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set %s: %w", key, err)
	}
	cfg := Default()
	if err := json.Unmarshal(merged, &cfg); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := cfg.normalize(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.cfg = cfg
	s.mu.Unlock()

	return s.Save()
}

// AppendList appends value to the list under key and saves. Values already
// present are not added twice.
func (s *Store) AppendList(key, value string) error {
	s.mu.Lock()
	var list *[]string
	switch key {
	case KeyExcludedModels:
		list = &s.cfg.ExcludedModels
	case KeyFileCapableModels:
		list = &s.cfg.FileCapableModels
	case KeyDefaults, KeyDailyLimits, KeyMonthlyLimits, KeyModelMappings, KeyMode:
		s.mu.Unlock()
		return fmt.Errorf("cannot append to %q: %w", key, ErrNotList)
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if slices.Contains(*list, value) {
		s.mu.Unlock()
		return nil
	}
	*list = append(*list, value)
	s.mu.Unlock()

	s.logger.Debug("config updated", "key", key, "value", value)
	return s.Save()
}

// Save writes the config to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := cache.WriteJSON(s.path, s.cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func (s *Store) document() (map[string]json.RawMessage, error) {
	bts, err := json.Marshal(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(bts, &doc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return doc, nil
}
