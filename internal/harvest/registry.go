package harvest

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/david/rfp-harvester/internal/config"
)

// PluginFactory constructs a plugin from the application config.
type PluginFactory func(cfg *config.Config) (Plugin, error)

// factories is the static table of known plugins. Adding a source
// means adding a constructor here; there is no runtime discovery.
var factories = map[string]PluginFactory{
	"federal_opportunities": NewFederalPlugin,
	"govtech_scraper":       NewGovtechPlugin,
	"state_procurement":     NewStatePlugin,
}

// Registry holds the instantiated plugins named by the config's
// enabled list. Reload rebuilds the set under the lock so a scrape in
// flight keeps its own snapshot.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry instantiates every enabled plugin. Unknown names and
// constructor failures are logged and skipped so one bad entry does
// not take down the rest.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{plugins: make(map[string]Plugin)}
	r.load(cfg)
	return r
}

// NewStaticRegistry wraps an explicit plugin set, bypassing the
// factory table. Used by tests and one-off tooling.
func NewStaticRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		r.plugins[p.Name()] = p
	}
	return r
}

func (r *Registry) load(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]Plugin, len(cfg.Plugins.Enabled))
	for _, name := range cfg.Plugins.Enabled {
		factory, ok := factories[name]
		if !ok {
			log.Printf("[Registry] Unknown plugin %q, skipping", name)
			continue
		}
		p, err := factory(cfg)
		if err != nil {
			log.Printf("[Registry] Failed to initialize plugin %q: %v", name, err)
			continue
		}
		r.plugins[p.Name()] = p
		log.Printf("[Registry] Loaded plugin %s v%s", p.Name(), p.Version())
	}
}

// Reload rebuilds the plugin set from cfg.
func (r *Registry) Reload(cfg *config.Config) {
	r.load(cfg)
	log.Printf("[Registry] Reloaded, %d plugins active", len(r.List()))
}

// Get returns the named plugin.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin not found: %s", name)
	}
	return p, nil
}

// List returns the active plugins, sorted by name.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the names of the active plugins, sorted.
func (r *Registry) Names() []string {
	plugins := r.List()
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
	}
	return names
}
