package provider

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aihelper/aihelper/internal/anthropic"
	"github.com/aihelper/aihelper/internal/cohere"
	"github.com/aihelper/aihelper/internal/google"
	"github.com/aihelper/aihelper/internal/llm"
	"github.com/aihelper/aihelper/internal/ollama"
	"github.com/aihelper/aihelper/internal/openai"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// ErrMissingAPIKey indicates the provider needs an API key and none is set.
var ErrMissingAPIKey = errors.New("missing api key")

// Endpoint is how to reach one provider.
type Endpoint struct {
	APIKey         string
	BaseURL        string
	APIType        string
	ThinkingBudget int
}

// Factory builds one [llm.Client] per provider kind and reuses it.
type Factory struct {
	Endpoints  map[Kind]Endpoint
	HTTPClient *http.Client

	mu      sync.Mutex
	clients map[Kind]llm.Client
}

// NewFactory returns a factory over the given endpoints.
func NewFactory(endpoints map[Kind]Endpoint, httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Factory{
		Endpoints:  endpoints,
		HTTPClient: httpClient,
		clients:    map[Kind]llm.Client{},
	}
}

// Client returns the client for kind, constructing it on first use.
func (f *Factory) Client(kind Kind) (llm.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[kind]; ok {
		return c, nil
	}
	c, err := f.newClient(kind)
	if err != nil {
		return nil, err
	}
	if f.clients == nil {
		f.clients = map[Kind]llm.Client{}
	}
	f.clients[kind] = c
	return c, nil
}

func (f *Factory) newClient(kind Kind) (llm.Client, error) {
	ep := f.Endpoints[kind]
	needsKey := func() error {
		if ep.APIKey == "" {
			return fmt.Errorf("%w for %s", ErrMissingAPIKey, kind)
		}
		return nil
	}

	switch kind {
	case OpenAI:
		if err := needsKey(); err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			AuthToken:  ep.APIKey,
			BaseURL:    ep.BaseURL,
			HTTPClient: f.HTTPClient,
			APIType:    ep.APIType,
		}), nil
	case OpenRouter:
		if err := needsKey(); err != nil {
			return nil, err
		}
		base := ep.BaseURL
		if base == "" {
			base = openai.OpenRouterURL
		}
		return openai.New(openai.Config{
			AuthToken:  ep.APIKey,
			BaseURL:    base,
			HTTPClient: f.HTTPClient,
		}), nil
	case Anthropic:
		if err := needsKey(); err != nil {
			return nil, err
		}
		return anthropic.New(anthropic.Config{
			AuthToken:  ep.APIKey,
			BaseURL:    ep.BaseURL,
			HTTPClient: f.HTTPClient,
		}), nil
	case Google:
		if err := needsKey(); err != nil {
			return nil, err
		}
		return google.New(google.Config{
			AuthToken:      ep.APIKey,
			BaseURL:        ep.BaseURL,
			HTTPClient:     f.HTTPClient,
			ThinkingBudget: ep.ThinkingBudget,
		}), nil
	case Cohere:
		if err := needsKey(); err != nil {
			return nil, err
		}
		return cohere.New(cohere.Config{
			AuthToken:  ep.APIKey,
			BaseURL:    ep.BaseURL,
			HTTPClient: f.HTTPClient,
		}), nil
	case Ollama:
		cfg := ollama.DefaultConfig()
		if ep.BaseURL != "" {
			cfg.BaseURL = ep.BaseURL
		}
		cfg.HTTPClient = f.HTTPClient
		c, err := ollama.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
}

// NewHTTPClient returns the HTTP client shared by all providers. A zero
// timeout leaves deadlines to the caller's context.
func NewHTTPClient(timeout time.Duration, proxy string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultDialTimeout,
		ExpectContinueTimeout: time.Second,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
