package connector

import (
	"context"
	"errors"

	"github.com/sigweihq/waas-connector/pkg/networks"
	"github.com/sigweihq/waas-connector/pkg/provider"
)

var ErrNoChains = errors.New("no chains configured")

// Chain is a chain known to the host framework
type Chain struct {
	ID   uint64
	Name string
}

// ChainsFromNetworks converts registry networks into host chains, keeping their order
func ChainsFromNetworks(list []networks.Network) []Chain {
	chains := make([]Chain, 0, len(list))
	for _, network := range list {
		chains = append(chains, Chain{ID: network.ChainID, Name: network.Title})
	}
	return chains
}

// ChangeEvent notifies the host that the active chain changed
type ChangeEvent struct {
	ChainID uint64
}

// Emitter delivers connector events to the host framework
type Emitter interface {
	Emit(event ChangeEvent)
}

// EmitterFunc adapts a function to an Emitter
type EmitterFunc func(event ChangeEvent)

func (f EmitterFunc) Emit(event ChangeEvent) {
	f(event)
}

type noopEmitter struct{}

func (noopEmitter) Emit(ChangeEvent) {}

// HostConfig is what the host framework passes when it instantiates a connector
type HostConfig struct {
	Chains  []Chain
	Emitter Emitter
}

// ConnectResult is returned by a successful Connect
type ConnectResult struct {
	Accounts []string
	ChainID  uint64
}

// AccountsChange is the host's view of an accounts change notification
type AccountsChange struct {
	Account string
}

// HostConnector is the capability set the host framework expects from a connector
type HostConnector interface {
	ID() string
	Name() string
	Type() string

	Setup(ctx context.Context) error
	Connect(ctx context.Context) (*ConnectResult, error)
	Disconnect(ctx context.Context) error
	GetAccounts(ctx context.Context) ([]string, error)
	IsAuthorized(ctx context.Context) (bool, error)
	SwitchChain(ctx context.Context, chainID uint64) (Chain, error)
	GetChainID(ctx context.Context) (uint64, error)
	GetProvider(ctx context.Context) (provider.EIP1193, error)

	OnAccountsChanged(accounts []string) AccountsChange
	OnChainChanged(chain any) error
	OnConnect(ctx context.Context)
	OnDisconnect(ctx context.Context) error
}
