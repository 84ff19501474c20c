package networks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigweihq/waas-connector/pkg/constants"
)

// Registry manages the networks known to the wallet service, keyed by chain id
type Registry struct {
	networks map[uint64]Network
	mu       sync.RWMutex
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// NewRegistry creates a registry holding the given networks
func NewRegistry(networks ...Network) *Registry {
	r := &Registry{
		networks: make(map[uint64]Network, len(networks)),
	}
	for _, n := range networks {
		r.networks[n.ChainID] = n
	}
	return r
}

// Default returns the registry of all networks supported by the node gateway
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		all := make([]Network, 0, len(constants.NetworkToChainID))
		for name, chainID := range constants.NetworkToChainID {
			all = append(all, Network{
				ChainID: chainID,
				Name:    name,
				Title:   constants.NetworkTitle[name],
				Testnet: constants.TestnetNetworks[name],
			})
		}
		defaultRegistry = NewRegistry(all...)
	})
	return defaultRegistry
}

// Register adds a network (uses network.ChainID as key)
// If a network already exists for the chain id, it is replaced
func (r *Registry) Register(network Network) error {
	if network.ChainID == 0 {
		return fmt.Errorf("network %q has no chain id", network.Name)
	}
	if network.Name == "" {
		return fmt.Errorf("network %d has no name", network.ChainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.networks[network.ChainID] = network
	return nil
}

// Get retrieves a network by chain id
func (r *Registry) Get(chainID uint64) (Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	network, exists := r.networks[chainID]
	if !exists {
		return Network{}, fmt.Errorf("no network registered for chain id: %d", chainID)
	}

	return network, nil
}

// GetByName retrieves a network by its node gateway name
func (r *Registry) GetByName(name string) (Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, network := range r.networks {
		if network.Name == name {
			return network, nil
		}
	}

	return Network{}, fmt.Errorf("no network registered with name: %s", name)
}

// IsSupported checks if a chain id is registered
func (r *Registry) IsSupported(chainID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.networks[chainID]
	return exists
}

// Networks returns all registered networks ordered by chain id
func (r *Registry) Networks() []Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Network, 0, len(r.networks))
	for _, network := range r.networks {
		out = append(out, network)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Unregister removes a network (useful for testing)
func (r *Registry) Unregister(chainID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.networks, chainID)
}
