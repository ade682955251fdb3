package fallback

import (
	"fmt"
	"strings"

	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/provider"
)

// Overrides are per call fallbacks, tried before the configured ones.
type Overrides struct {
	// Model is a single "provider/model" fallback.
	Model string
	Chain []provider.ModelRef
}

// BuildChain orders the candidates: the primary, the override model, the
// override chain, the configured fallback model and the configured chain.
// Every candidate is normalized and duplicates are dropped, keeping the
// first occurrence.
func BuildChain(primary provider.ModelRef, overrides Overrides, cfg config.Config) ([]provider.ModelRef, error) {
	chain := []provider.ModelRef{primary.Normalize()}

	if overrides.Model != "" {
		ref, err := provider.ParseModelString(overrides.Model)
		if err != nil {
			return nil, &CallerError{Err: err}
		}
		chain = append(chain, ref.Normalize())
	}
	for _, ref := range overrides.Chain {
		kind, err := provider.ParseKind(string(ref.Provider))
		if err != nil {
			return nil, &CallerError{Err: err}
		}
		if err := checkModel(ref); err != nil {
			return nil, &CallerError{Err: err}
		}
		ref.Provider = kind
		chain = append(chain, ref.Normalize())
	}

	fb, err := cfg.FallbackModel()
	if err != nil {
		return nil, &CallerError{Err: err}
	}
	if fb != nil {
		chain = append(chain, fb.Normalize())
	}
	for _, ref := range cfg.Defaults.FallbackChain {
		if err := checkModel(ref); err != nil {
			return nil, &CallerError{Err: err}
		}
		chain = append(chain, ref.Normalize())
	}

	return dedup(chain), nil
}

// checkModel rejects blank names, including a bare "provider/" prefix.
func checkModel(ref provider.ModelRef) error {
	name := ref.Model
	if !ref.Provider.PassThrough() {
		if _, rest, ok := strings.Cut(name, "/"); ok {
			name = rest
		}
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %q", provider.ErrEmptyModel, ref.Identity())
	}
	return nil
}

func dedup(chain []provider.ModelRef) []provider.ModelRef {
	seen := make(map[string]struct{}, len(chain))
	out := chain[:0:0]
	for _, ref := range chain {
		id := ref.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// dropExcluded removes excluded fallbacks. The primary always stays.
func dropExcluded(chain []provider.ModelRef, excluded func(string) bool) []provider.ModelRef {
	out := []provider.ModelRef{chain[0]}
	for _, ref := range chain[1:] {
		if excluded(ref.CatalogKey()) {
			continue
		}
		out = append(out, ref)
	}
	return out
}
