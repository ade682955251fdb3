// Package catalog keeps a disk cached view of the models the remote
// catalog offers, with their pricing and capabilities.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/aihelper/aihelper/internal/cache"
	"github.com/aihelper/aihelper/internal/proto"
	"github.com/charmbracelet/log"
)

// DefaultURL is the public model listing. It needs no authentication.
const DefaultURL = "https://openrouter.ai/api/v1/models"

// DefaultTTL is how long a cached listing stays valid.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned when a model is not in the catalog.
var ErrNotFound = errors.New("model not found in catalog")

// Pricing holds USD prices per token (or per unit), as decimal strings.
type Pricing struct {
	Prompt            string `json:"prompt,omitempty"`
	Completion        string `json:"completion,omitempty"`
	Request           string `json:"request,omitempty"`
	Image             string `json:"image,omitempty"`
	WebSearch         string `json:"web_search,omitempty"`
	InternalReasoning string `json:"internal_reasoning,omitempty"`
	InputCacheRead    string `json:"input_cache_read,omitempty"`
	InputCacheWrite   string `json:"input_cache_write,omitempty"`
}

// Entry is one model listed by the catalog.
type Entry struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name,omitempty"`
	ContextLength       int      `json:"context_length,omitempty"`
	Pricing             Pricing  `json:"pricing"`
	SupportedParameters []string `json:"supported_parameters,omitempty"`
}

// SupportsTools reports whether the model accepts tool definitions.
func (e Entry) SupportsTools() bool {
	return slices.Contains(e.SupportedParameters, "tools")
}

type cacheFile struct {
	Timestamp float64 `json:"timestamp"`
	Data      []Entry `json:"data"`
}

// Options configure a [Catalog].
type Options struct {
	// URL of the listing; defaults to [DefaultURL].
	URL string
	// CachePath is where the listing is cached.
	CachePath string
	// AliasPath is an optional JSON file mapping aliases to catalog ids.
	AliasPath string
	// Aliases are merged below the alias file.
	Aliases    map[string]string
	TTL        time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
}

// Catalog is the model catalog. The listing is loaded on first use.
type Catalog struct {
	opts Options

	mu      sync.Mutex
	loaded  bool
	entries []Entry
}

// New returns a catalog with opts, filling in defaults.
func New(opts Options) *Catalog {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second} //nolint:mnd
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Catalog{opts: opts}
}

// RefreshIfStale loads the cached listing, fetching a fresh one when the
// cache is absent or older than the TTL. Fetch failures leave the catalog
// empty.
func (c *Catalog) RefreshIfStale(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(ctx)
}

func (c *Catalog) refresh(ctx context.Context) {
	c.loaded = true
	logger := c.opts.Logger

	if c.opts.CachePath != "" {
		var cached cacheFile
		err := cache.ReadJSON(c.opts.CachePath, &cached)
		switch {
		case err == nil:
			age := c.opts.Now().Sub(time.Unix(0, int64(cached.Timestamp*float64(time.Second))))
			if age < c.opts.TTL {
				c.entries = cached.Data
				return
			}
			logger.Debug("catalog cache is stale", "age", age)
		case !errors.Is(err, os.ErrNotExist):
			logger.Warn("ignoring unreadable catalog cache", "path", c.opts.CachePath, "err", err)
		}
	}

	entries, err := c.fetch(ctx)
	if err != nil {
		logger.Warn("could not fetch model catalog", "url", c.opts.URL, "err", err)
		c.entries = nil
		return
	}
	c.entries = entries

	if c.opts.CachePath == "" {
		return
	}
	now := c.opts.Now()
	if err := cache.WriteJSON(c.opts.CachePath, cacheFile{
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
		Data:      entries,
	}); err != nil {
		logger.Warn("could not cache model catalog", "err", err)
	}
}

func (c *Catalog) fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch: unexpected status %s", resp.Status)
	}

	var body struct {
		Data []Entry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	entries := make([]Entry, 0, len(body.Data))
	for _, e := range body.Data {
		if e.SupportsTools() {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Entries returns every cached model that supports tools.
func (c *Catalog) Entries(ctx context.Context) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.refresh(ctx)
	}
	return slices.Clone(c.entries)
}

// GetModels returns the ids of every model.
func (c *Catalog) GetModels(ctx context.Context) []string {
	entries := c.Entries(ctx)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// Resolve maps an alias to its catalog id. Unknown names are returned
// as-is.
func (c *Catalog) Resolve(id string) string {
	if target, ok := c.aliases()[id]; ok {
		return target
	}
	return id
}

func (c *Catalog) aliases() map[string]string {
	aliases := map[string]string{}
	for k, v := range c.opts.Aliases {
		aliases[k] = v
	}
	if c.opts.AliasPath == "" {
		return aliases
	}
	var fromFile map[string]string
	if err := cache.ReadJSON(c.opts.AliasPath, &fromFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.opts.Logger.Warn("ignoring unreadable model mappings", "path", c.opts.AliasPath, "err", err)
		}
		return aliases
	}
	for k, v := range fromFile {
		aliases[k] = v
	}
	return aliases
}

// Lookup returns the entry for id, resolving aliases first.
func (c *Catalog) Lookup(ctx context.Context, id string) (Entry, error) {
	resolved := c.Resolve(id)
	for _, e := range c.Entries(ctx) {
		if e.ID == resolved {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Cost is the USD cost of usage on the model, rounded to 10 decimals.
// Models missing from the catalog cost nothing.
func (c *Catalog) Cost(ctx context.Context, id string, usage proto.Usage) float64 {
	e, err := c.Lookup(ctx, id)
	if err != nil {
		return 0
	}
	var total float64
	if p := parsePrice(e.Pricing.Prompt); p > 0 && usage.InputTokens > 0 {
		total += p * float64(usage.InputTokens)
	}
	if p := parsePrice(e.Pricing.Completion); p > 0 && usage.OutputTokens > 0 {
		total += p * float64(usage.OutputTokens)
	}
	return roundTo(total, 10) //nolint:mnd
}

// CheapestModel returns the id of the model with the lowest positive
// completion price.
func (c *Catalog) CheapestModel(ctx context.Context) (string, error) {
	var (
		best  string
		price = math.Inf(1)
	)
	for _, e := range c.Entries(ctx) {
		p := parsePrice(e.Pricing.Completion)
		if p > 0 && p < price {
			best, price = e.ID, p
		}
	}
	if best == "" {
		return "", ErrNotFound
	}
	return best, nil
}

func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func roundTo(f float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(f*p) / p
}
