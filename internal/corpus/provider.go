package corpus

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Provider owns the active corpus and supports atomic hot reload.
// Readers take a Snapshot and keep using it for the whole scoring
// operation; Reload swaps the pointer wholesale so a reader never
// observes a half-updated corpus.
type Provider struct {
	path    string
	current atomic.Pointer[Corpus]
	logger  *slog.Logger
}

// NewProvider loads the manifest at path and returns a ready provider.
// A load failure here is fatal to corpus initialisation: no provider is
// returned and nothing was activated.
func NewProvider(path string, logger *slog.Logger) (*Provider, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	p := &Provider{path: path, logger: logger}
	p.current.Store(c)
	logger.Info("corpus loaded",
		"path", path,
		"version", c.Version,
		"kpas", len(c.KPAs),
		"policies", len(c.Policies))
	return p, nil
}

// Snapshot returns the active corpus. The returned value is immutable
// and stays valid across concurrent Reload calls.
func (p *Provider) Snapshot() *Corpus {
	return p.current.Load()
}

// Reload re-reads the manifest and swaps in the new corpus atomically.
// On failure the previous corpus stays active untouched.
func (p *Provider) Reload() error {
	c, err := Load(p.path)
	if err != nil {
		return fmt.Errorf("corpus: reload: %w", err)
	}
	prev := p.current.Swap(c)
	p.logger.Info("corpus reloaded",
		"path", p.path,
		"previous_version", prev.Version,
		"version", c.Version)
	return nil
}
