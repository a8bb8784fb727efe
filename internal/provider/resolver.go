// Package provider resolves which upstream endpoint, key and model serve one
// request, and whether that model is a reasoning model.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/HendryAvila/stickyboard/internal/board"
)

// ErrConfigurationMissing means no usable (key, base, model) triple could be
// resolved. It is always returned before any network connection is opened.
var ErrConfigurationMissing = errors.New("model configuration missing")

// DefaultReasoningPrefixes is the built-in reasoning model allow-list.
var DefaultReasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5", "deepseek-reasoner", "deepseek-r1"}

// ConfigReader is the read surface over stored provider configurations.
type ConfigReader interface {
	ModelConfig(ctx context.Context, provider string) (*board.ModelConfig, error)
	ModelConfigs(ctx context.Context) ([]board.ModelConfig, error)
}

// Override carries the caller's optional explicit provider and model.
type Override struct {
	Provider string
	Model    string
}

// Resolution is everything the relay needs to reach the provider.
type Resolution struct {
	Provider  string
	APIBase   string
	APIKey    string
	Model     string
	Reasoning bool
}

// Settings are the tunables of a Resolver that may change at runtime.
type Settings struct {
	DefaultProvider   string
	ReasoningPrefixes []string
}

// Resolver picks credentials and model for a request.
type Resolver struct {
	configs  ConfigReader
	settings atomic.Pointer[Settings]
}

// NewResolver creates a Resolver.
func NewResolver(configs ConfigReader, s Settings) *Resolver {
	r := &Resolver{configs: configs}
	r.Update(s)
	return r
}

// Update swaps the resolver settings.
func (r *Resolver) Update(s Settings) {
	if len(s.ReasoningPrefixes) == 0 {
		s.ReasoningPrefixes = DefaultReasoningPrefixes
	}
	r.settings.Store(&s)
}

// Resolve selects the provider configuration for one request.
//
// An explicit provider is looked up by name. Without one, the configured
// default provider is used, and failing that the first stored provider.
// An explicit model wins; otherwise the provider's first model is used.
func (r *Resolver) Resolve(ctx context.Context, o Override) (*Resolution, error) {
	s := r.settings.Load()

	name := strings.TrimSpace(o.Provider)
	if name == "" {
		name = s.DefaultProvider
	}

	var cfg *board.ModelConfig
	if name != "" {
		c, err := r.configs.ModelConfig(ctx, name)
		if err != nil {
			if errors.Is(err, board.ErrNotFound) {
				return nil, fmt.Errorf("%w: no stored configuration for provider %q", ErrConfigurationMissing, name)
			}
			return nil, fmt.Errorf("provider: loading %q: %w", name, err)
		}
		cfg = c
	} else {
		all, err := r.configs.ModelConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("provider: listing configurations: %w", err)
		}
		if len(all) == 0 {
			return nil, fmt.Errorf("%w: no provider configured", ErrConfigurationMissing)
		}
		cfg = &all[0]
	}

	model := strings.TrimSpace(o.Model)
	if model == "" && len(cfg.Models) > 0 {
		model = cfg.Models[0]
	}

	switch {
	case cfg.APIKey == "":
		return nil, fmt.Errorf("%w: provider %q has no API key", ErrConfigurationMissing, cfg.Provider)
	case cfg.APIBase == "":
		return nil, fmt.Errorf("%w: provider %q has no API base", ErrConfigurationMissing, cfg.Provider)
	case model == "":
		return nil, fmt.Errorf("%w: provider %q has no model", ErrConfigurationMissing, cfg.Provider)
	}

	return &Resolution{
		Provider:  cfg.Provider,
		APIBase:   cfg.APIBase,
		APIKey:    cfg.APIKey,
		Model:     model,
		Reasoning: IsReasoningModel(model, s.ReasoningPrefixes),
	}, nil
}

// IsReasoningModel reports whether model matches one of the prefixes.
// Matching is case-insensitive and ignores a leading "vendor/" segment,
// so "openai/o3-mini" matches "o3".
func IsReasoningModel(model string, prefixes []string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(m, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
