// Package provider identifies LLM vendors and the models they serve.
package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a supported LLM vendor.
type Kind string

// Supported kinds.
const (
	OpenAI     Kind = "openai"
	OpenRouter Kind = "open_router"
	Anthropic  Kind = "anthropic"
	Google     Kind = "google"
	Cohere     Kind = "cohere"
	Ollama     Kind = "ollama"
)

// Kinds lists every supported kind.
var Kinds = []Kind{OpenAI, OpenRouter, Anthropic, Google, Cohere, Ollama}

// ErrUnknownProvider indicates the provider name is not one of [Kinds].
var ErrUnknownProvider = errors.New("unknown provider")

// ErrMissingSeparator indicates a model identifier without a provider part.
var ErrMissingSeparator = errors.New("model identifier must contain a provider separator")

// ErrEmptyModel indicates a model identifier whose model part is blank.
var ErrEmptyModel = errors.New("model name is empty")

// ParseKind returns the kind for name.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return OpenAI, nil
	case "open_router", "openrouter":
		return OpenRouter, nil
	case "anthropic":
		return Anthropic, nil
	case "google", "gemini":
		return Google, nil
	case "cohere":
		return Cohere, nil
	case "ollama":
		return Ollama, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// PassThrough reports whether model names are sent to the vendor verbatim,
// including their embedded provider prefix.
func (k Kind) PassThrough() bool {
	return k == OpenRouter
}

// ModelRef identifies one model at one provider.
type ModelRef struct {
	Model    string `json:"model"`
	Provider Kind   `json:"provider"`
}

// Identity is the "provider/model" key used for deduplication and
// accounting.
func (r ModelRef) Identity() string {
	return string(r.Provider) + "/" + r.Model
}

// CatalogKey is the id under which the model is listed in the catalog.
// Catalog ids already carry the vendor prefix, so pass-through models are
// looked up as-is.
func (r ModelRef) CatalogKey() string {
	if r.Provider.PassThrough() {
		return r.Model
	}
	return r.Identity()
}

func (r ModelRef) String() string { return r.Identity() }

// Normalize strips the embedded provider prefix from the model name unless
// the provider passes names through.
func (r ModelRef) Normalize() ModelRef {
	if r.Provider.PassThrough() {
		return r
	}
	if _, name, ok := strings.Cut(r.Model, "/"); ok && name != "" {
		r.Model = name
	}
	return r
}

// NewRef builds a normalized reference from a provider name and a model
// identifier which must carry a provider prefix ("openai/gpt-4o").
func NewRef(providerName, model string) (ModelRef, error) {
	kind, err := ParseKind(providerName)
	if err != nil {
		return ModelRef{}, err
	}
	_, name, ok := strings.Cut(model, "/")
	if !ok {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrMissingSeparator, model)
	}
	if strings.TrimSpace(name) == "" {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrEmptyModel, model)
	}
	return ModelRef{Provider: kind, Model: model}.Normalize(), nil
}

// ParseModelString parses "provider/model" or "provider:model", splitting
// at whichever separator comes first.
func ParseModelString(s string) (ModelRef, error) {
	i := strings.IndexAny(s, "/:")
	if i <= 0 || i == len(s)-1 {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrMissingSeparator, s)
	}
	kind, err := ParseKind(s[:i])
	if err != nil {
		return ModelRef{}, err
	}
	model := strings.TrimSpace(s[i+1:])
	if model == "" {
		return ModelRef{}, fmt.Errorf("%w: %q", ErrEmptyModel, s)
	}
	return ModelRef{Provider: kind, Model: model}, nil
}
