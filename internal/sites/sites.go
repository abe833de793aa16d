// Package sites holds the registry of per-site adapters. Adapters are pure
// configuration: the engine consumes the declarative adapter.Site record
// and nothing else.
package sites

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/adapter"
)

var (
	mu       sync.RWMutex
	registry = map[string]adapter.Site{}
)

// Register adds a site adapter. Duplicate names panic at init time.
func Register(site adapter.Site) {
	name := strings.ToLower(strings.TrimSpace(site.Name))
	if name == "" {
		panic("sites: adapter with empty name")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("sites: duplicate adapter %q", name))
	}
	site.Name = name
	registry[name] = site
}

// Lookup returns the adapter registered under name.
func Lookup(name string) (adapter.Site, bool) {
	mu.RLock()
	defer mu.RUnlock()
	site, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return site, ok
}

// Names lists all registered adapters in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
