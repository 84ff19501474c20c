package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/sigweihq/waas-connector/pkg/constants"
	"github.com/sigweihq/waas-connector/pkg/metrics"
	"github.com/sigweihq/waas-connector/pkg/networks"
	"github.com/sigweihq/waas-connector/pkg/transport"
	"github.com/sigweihq/waas-connector/pkg/utils"
)

// EIP1193 is the chain-request capability: a single method-dispatching entry point
type EIP1193 interface {
	Request(ctx context.Context, method string, params []any) (any, error)
}

// RPCDialer creates a JSON-RPC client for a node endpoint
type RPCDialer func(ctx context.Context, endpoint string) (*rpc.Client, error)

// chainBinding pairs the current network with the client bound to its endpoint.
// It is replaced as a whole, so readers never see a network and a client that disagree.
type chainBinding struct {
	network  networks.Network
	endpoint string
	client   *rpc.Client
}

// Provider routes wallet requests to the wallet transport and everything else
// to the JSON-RPC endpoint of the current chain
type Provider struct {
	projectAccessKey string
	walletURL        string
	nodesURL         string

	transport  transport.Transport
	registry   *networks.Registry
	dial       RPCDialer
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger

	binding atomic.Pointer[chainBinding]
}

var _ EIP1193 = (*Provider)(nil)

// Option configures a Provider
type Option func(*Provider)

// WithLogger sets the provider logger (defaults to slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTransport replaces the websocket wallet transport
func WithTransport(t transport.Transport) Option {
	return func(p *Provider) {
		p.transport = t
	}
}

// WithRegistry sets the networks the provider can switch to (defaults to networks.Default())
func WithRegistry(registry *networks.Registry) Option {
	return func(p *Provider) {
		if registry != nil {
			p.registry = registry
		}
	}
}

// WithHTTPClient sets the HTTP client used for node requests
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithDialer replaces how JSON-RPC clients are created
func WithDialer(dial RPCDialer) Option {
	return func(p *Provider) {
		if dial != nil {
			p.dial = dial
		}
	}
}

// WithMetrics enables request counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// New creates a provider bound to initialChainID. Unless WithTransport is given,
// a websocket transport to walletURL is created; it does not dial until first use.
func New(ctx context.Context, projectAccessKey, walletURL string, initialChainID uint64, nodesURL string, opts ...Option) (*Provider, error) {
	p := &Provider{
		projectAccessKey: projectAccessKey,
		walletURL:        walletURL,
		nodesURL:         nodesURL,
		registry:         networks.Default(),
		logger:           slog.Default(),
		httpClient: &http.Client{
			Timeout: constants.HTTPClientTimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
				ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
				ExpectContinueTimeout: constants.ExpectContinueTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.dial == nil {
		p.dial = func(ctx context.Context, endpoint string) (*rpc.Client, error) {
			return rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(p.httpClient))
		}
	}

	if p.transport == nil {
		t, err := transport.NewWebSocketTransport(walletURL, transport.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet transport: %w", err)
		}
		p.transport = t
	}

	binding, err := p.bind(ctx, initialChainID)
	if err != nil {
		return nil, err
	}
	p.binding.Store(binding)

	return p, nil
}

// bind dials a client for chainID without touching the current binding
func (p *Provider) bind(ctx context.Context, chainID uint64) (*chainBinding, error) {
	network, err := p.registry.Get(chainID)
	if err != nil {
		return nil, &UnsupportedNetworkError{ChainID: chainID}
	}

	endpoint := networks.NodeURL(p.nodesURL, network, p.projectAccessKey)
	client, err := p.dial(ctx, endpoint)
	if err != nil {
		return nil, &RPCError{Network: network.Name, Err: err}
	}

	return &chainBinding{
		network:  network,
		endpoint: endpoint,
		client:   client,
	}, nil
}

// Request dispatches a provider request by method name.
// The result is nil whenever the error is not.
func (p *Provider) Request(ctx context.Context, method string, params []any) (result any, err error) {
	if p.metrics != nil {
		p.metrics.IncRequest(method, routeFor(method))
		defer func() {
			if err != nil {
				p.metrics.IncRequestError(method)
			}
		}()
	}

	switch method {
	case constants.MethodSwitchEthereumChain:
		if len(params) == 0 {
			return nil, ErrMissingParams
		}
		chainID, err := utils.NormalizeChainID(params[0])
		if err != nil {
			return nil, err
		}
		if err := p.SwitchChain(ctx, chainID); err != nil {
			return nil, err
		}
		return nil, nil

	case constants.MethodChainID:
		return utils.ToQuantity(p.GetChainID()), nil

	case constants.MethodAccounts:
		accounts, err := p.Accounts()
		if err != nil {
			return nil, err
		}
		return accounts, nil

	case constants.MethodSendTransaction:
		if len(params) == 0 {
			return nil, ErrMissingParams
		}
		txHash, err := p.sendTransaction(ctx, params)
		if err != nil {
			return nil, err
		}
		return txHash, nil

	case constants.MethodSign,
		constants.MethodSignTypedData,
		constants.MethodSignTypedDataV4,
		constants.MethodPersonalSign:
		if len(params) == 0 {
			return nil, ErrMissingParams
		}
		signature, err := p.sign(ctx, method, params)
		if err != nil {
			return nil, err
		}
		return signature, nil

	default:
		raw, err := p.forward(ctx, method, params)
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
}

func routeFor(method string) string {
	switch method {
	case constants.MethodSwitchEthereumChain, constants.MethodChainID, constants.MethodAccounts:
		return metrics.RouteLocal
	case constants.MethodSendTransaction,
		constants.MethodSign,
		constants.MethodSignTypedData,
		constants.MethodSignTypedDataV4,
		constants.MethodPersonalSign:
		return metrics.RouteWallet
	default:
		return metrics.RouteRPC
	}
}

// SwitchChain rebinds the provider to chainID. On error the current chain is kept.
func (p *Provider) SwitchChain(ctx context.Context, chainID uint64) error {
	binding, err := p.bind(ctx, chainID)
	if err != nil {
		p.logger.Warn("chain switch failed", "chainID", chainID, "error", err)
		return err
	}

	previous := p.binding.Swap(binding)
	if previous != nil && previous.client != binding.client {
		previous.client.Close()
	}

	if p.metrics != nil {
		p.metrics.IncChainSwitch(chainID)
	}
	p.logger.Info("switched chain", "chainID", chainID, "network", binding.network.Name)
	return nil
}

// Accounts returns the checksummed wallet address, or an empty list without a session
func (p *Provider) Accounts() ([]string, error) {
	address := p.transport.WalletAddress()
	if address == "" {
		return []string{}, nil
	}

	account, err := utils.ChecksumAddress(address)
	if err != nil {
		return nil, err
	}
	return []string{account}, nil
}

func (p *Provider) sendTransaction(ctx context.Context, params []any) (string, error) {
	response, err := p.transport.SendRequest(ctx, constants.MethodSendTransaction, params, p.GetChainID())
	if err != nil {
		return "", err
	}

	p.logger.Debug("wallet transaction response", "code", response.Code)

	switch response.Code {
	case transport.CodeTransactionFailed:
		var data transport.TransactionFailedData
		if err := response.DecodeData(&data); err != nil {
			return "", err
		}
		return "", &TransactionRejectedError{Reason: data.Error}

	case transport.CodeTransactionReceipt:
		var data transport.TransactionReceiptData
		if err := response.DecodeData(&data); err != nil {
			return "", err
		}
		return data.TxHash, nil

	default:
		return "", fmt.Errorf("%w: code %q for %s", ErrUnexpectedResponse, response.Code, constants.MethodSendTransaction)
	}
}

func (p *Provider) sign(ctx context.Context, method string, params []any) (string, error) {
	response, err := p.transport.SendRequest(ctx, method, params, p.GetChainID())
	if err != nil {
		return "", err
	}

	var data transport.SignatureData
	if err := response.DecodeData(&data); err != nil {
		return "", err
	}
	if data.Signature == "" {
		return "", fmt.Errorf("%w: no signature for %s", ErrUnexpectedResponse, method)
	}
	return data.Signature, nil
}

// forward sends the request verbatim to the current chain's node endpoint
func (p *Provider) forward(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	var raw json.RawMessage
	if err := p.binding.Load().client.CallContext(ctx, &raw, method, params...); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetTransaction looks up a transaction on the current chain.
// isPending is true when the transaction is not yet in a block.
func (p *Provider) GetTransaction(ctx context.Context, txHash string) (tx *ethtypes.Transaction, isPending bool, err error) {
	client := ethclient.NewClient(p.binding.Load().client)
	return client.TransactionByHash(ctx, common.HexToHash(txHash))
}

// DetectNetwork returns the current network. The chain is local state, so this never probes the node.
func (p *Provider) DetectNetwork(ctx context.Context) (networks.Network, error) {
	return p.binding.Load().network, nil
}

// GetChainID returns the current chain id
func (p *Provider) GetChainID() uint64 {
	return p.binding.Load().network.ChainID
}

// Network returns the current network
func (p *Provider) Network() networks.Network {
	return p.binding.Load().network
}

// Endpoint returns the node endpoint the provider is currently bound to
func (p *Provider) Endpoint() string {
	return p.binding.Load().endpoint
}

// Transport returns the wallet transport
func (p *Provider) Transport() transport.Transport {
	return p.transport
}

// Close releases the JSON-RPC client and the wallet transport connection
func (p *Provider) Close() error {
	if binding := p.binding.Load(); binding != nil {
		binding.client.Close()
	}
	if closer, ok := p.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
