// Package providers defines the adapter contract for upstream discovery APIs
// and the registry the orchestrator resolves adapters from. Each adapter owns
// one platform and one search mode; it is the only code that knows that
// upstream's JSON shape.
package providers

import (
	"fmt"
	"sync"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Registry maps platform/mode pairs to provider adapters.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]interfaces.Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]interfaces.Provider),
	}
}

func registryKey(platform models.Platform, mode models.SearchMode) string {
	return fmt.Sprintf("%s/%s", platform, mode)
}

// Register adds a provider. Registering the same platform/mode twice is a
// programming error.
func (r *Registry) Register(p interfaces.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(p.Platform(), p.Mode())
	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("provider already registered for %s", key)
	}
	r.providers[key] = p
	return nil
}

// Resolve returns the adapter for a platform and mode.
func (r *Registry) Resolve(platform models.Platform, mode models.SearchMode) (interfaces.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[registryKey(platform, mode)]
	if !ok {
		return nil, NewTerminalError(fmt.Sprintf("no provider for %s/%s", platform, mode), nil)
	}
	return p, nil
}

// Platforms returns the distinct platforms with at least one adapter.
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[models.Platform]struct{})
	var platforms []models.Platform
	for _, p := range r.providers {
		if _, ok := seen[p.Platform()]; ok {
			continue
		}
		seen[p.Platform()] = struct{}{}
		platforms = append(platforms, p.Platform())
	}
	return platforms
}
