package connector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sigweihq/waas-connector/pkg/config"
	"github.com/sigweihq/waas-connector/pkg/constants"
	"github.com/sigweihq/waas-connector/pkg/provider"
	"github.com/sigweihq/waas-connector/pkg/utils"
)

// CreateConnectorFn instantiates a connector for a host framework.
// Every connector it creates shares the same provider.
type CreateConnectorFn func(host HostConfig) *Connector

// Connector adapts the cross-app embedded wallet to a host framework
type Connector struct {
	provider *provider.Provider
	chains   []Chain
	emitter  Emitter
	logger   *slog.Logger
}

var _ HostConnector = (*Connector)(nil)

// CrossAppEmbeddedWallet builds the wallet provider for cfg and returns a factory
// for host connectors bound to it.
func CrossAppEmbeddedWallet(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...provider.Option) (CreateConnectorFn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts = append([]provider.Option{provider.WithLogger(logger)}, opts...)
	p, err := provider.New(ctx, cfg.ProjectAccessKey, cfg.WalletURL, cfg.ChainID, cfg.NodesURL(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet provider: %w", err)
	}

	return func(host HostConfig) *Connector {
		return newConnector(p, host, logger)
	}, nil
}

func newConnector(p *provider.Provider, host HostConfig, logger *slog.Logger) *Connector {
	emitter := host.Emitter
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Connector{
		provider: p,
		chains:   append([]Chain(nil), host.Chains...),
		emitter:  emitter,
		logger:   logger,
	}
}

// ID returns the connector id registered with the host
func (c *Connector) ID() string { return constants.ConnectorID }

// Name returns the display name of the connector
func (c *Connector) Name() string { return constants.ConnectorName }

// Type returns the connector type registered with the host
func (c *Connector) Type() string { return constants.ConnectorType }

// Setup has nothing to prepare
func (c *Connector) Setup(ctx context.Context) error {
	return nil
}

// Connect returns the session account, running the interactive wallet flow
// only when there is no session yet
func (c *Connector) Connect(ctx context.Context) (*ConnectResult, error) {
	t := c.provider.Transport()

	walletAddress := t.WalletAddress()
	if walletAddress == "" {
		res, err := t.Connect(ctx)
		if err != nil {
			c.logger.Error("wallet connect failed", "error", err)
			_ = c.Disconnect(ctx)
			return nil, err
		}
		walletAddress = res.WalletAddress
	}

	account, err := utils.ChecksumAddress(walletAddress)
	if err != nil {
		return nil, err
	}

	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info("wallet connected", "account", account, "chainID", chainID)
	return &ConnectResult{
		Accounts: []string{account},
		ChainID:  chainID,
	}, nil
}

// Disconnect ends the wallet session
func (c *Connector) Disconnect(ctx context.Context) error {
	c.provider.Transport().Disconnect(ctx)
	return nil
}

// GetAccounts returns the checksummed session account, or none without a session
func (c *Connector) GetAccounts(ctx context.Context) ([]string, error) {
	return c.provider.Accounts()
}

// IsAuthorized reports whether the wallet holds a session
func (c *Connector) IsAuthorized(ctx context.Context) (bool, error) {
	return c.provider.Transport().WalletAddress() != "", nil
}

// SwitchChain moves the provider to chainID and notifies the host.
// When the host does not know chainID its first chain is returned.
func (c *Connector) SwitchChain(ctx context.Context, chainID uint64) (Chain, error) {
	if len(c.chains) == 0 {
		return Chain{}, ErrNoChains
	}

	chain, ok := c.hostChain(chainID)
	if !ok {
		c.logger.Warn("chain not configured by host, falling back to first chain",
			"chainID", chainID, "fallbackChainID", chain.ID)
	}

	params := []any{map[string]any{"chainId": utils.ToQuantity(chainID)}}
	if _, err := c.provider.Request(ctx, constants.MethodSwitchEthereumChain, params); err != nil {
		return Chain{}, err
	}

	c.emitter.Emit(ChangeEvent{ChainID: chainID})
	return chain, nil
}

func (c *Connector) hostChain(chainID uint64) (Chain, bool) {
	for _, chain := range c.chains {
		if chain.ID == chainID {
			return chain, true
		}
	}
	return c.chains[0], false
}

// GetChainID returns the provider's current chain id
func (c *Connector) GetChainID(ctx context.Context) (uint64, error) {
	return c.provider.GetChainID(), nil
}

// GetProvider returns the request capability shared by every connector from the factory
func (c *Connector) GetProvider(ctx context.Context) (provider.EIP1193, error) {
	return c.provider, nil
}

// Provider returns the concrete wallet provider
func (c *Connector) Provider() *provider.Provider {
	return c.provider
}

// OnAccountsChanged reports the first account as the active one
func (c *Connector) OnAccountsChanged(accounts []string) AccountsChange {
	if len(accounts) == 0 {
		return AccountsChange{}
	}
	return AccountsChange{Account: accounts[0]}
}

// OnChainChanged forwards a wallet chain change to the host
func (c *Connector) OnChainChanged(chain any) error {
	chainID, err := utils.NormalizeChainID(chain)
	if err != nil {
		return err
	}
	c.emitter.Emit(ChangeEvent{ChainID: chainID})
	return nil
}

// OnConnect has nothing to do; Connect already reports the session
func (c *Connector) OnConnect(ctx context.Context) {}

// OnDisconnect ends the wallet session
func (c *Connector) OnDisconnect(ctx context.Context) error {
	return c.Disconnect(ctx)
}
