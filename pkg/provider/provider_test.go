package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigweihq/waas-connector/pkg/metrics"
	"github.com/sigweihq/waas-connector/pkg/networks"
	"github.com/sigweihq/waas-connector/pkg/transport"
	"github.com/sigweihq/waas-connector/pkg/transport/transporttest"
)

const (
	testAccessKey      = "test-key"
	testWalletURL      = "https://wallet.example.com"
	testWalletAddress  = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	testChecksumWallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type nodeCall struct {
	Path   string
	Method string
	Params json.RawMessage
}

// fakeNode is a JSON-RPC node gateway answering from canned results
type fakeNode struct {
	server *httptest.Server

	mu      sync.Mutex
	calls   []nodeCall
	results map[string]json.RawMessage
	errors  map[string]*rpcErrorBody
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newFakeNode(t *testing.T) *fakeNode {
	n := &fakeNode{
		results: make(map[string]json.RawMessage),
		errors:  make(map[string]*rpcErrorBody),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls = append(n.calls, nodeCall{Path: r.URL.Path, Method: req.Method, Params: req.Params})
	result, hasResult := n.results[req.Method]
	rpcErr := n.errors[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case rpcErr != nil:
		resp["error"] = rpcErr
	case hasResult:
		resp["result"] = result
	default:
		resp["error"] = &rpcErrorBody{Code: -32601, Message: "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) setResult(method string, result string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results[method] = json.RawMessage(result)
}

func (n *fakeNode) setError(method string, code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors[method] = &rpcErrorBody{Code: code, Message: message}
}

func (n *fakeNode) recorded() []nodeCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]nodeCall(nil), n.calls...)
}

func newTestProvider(t *testing.T, chainID uint64, opts ...Option) (*Provider, *fakeNode, *transporttest.Fake) {
	t.Helper()

	node := newFakeNode(t)
	fake := transporttest.New(testWalletAddress)

	opts = append([]Option{WithTransport(fake)}, opts...)
	p, err := New(context.Background(), testAccessKey, testWalletURL, chainID, node.server.URL, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return p, node, fake
}

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		chainID       uint64
		expectedPath  string
		expectedError bool
	}{
		{name: "mainnet", chainID: 1, expectedPath: "/mainnet/test-key"},
		{name: "polygon", chainID: 137, expectedPath: "/polygon/test-key"},
		{name: "base sepolia", chainID: 84532, expectedPath: "/base-sepolia/test-key"},
		{name: "unsupported chain", chainID: 999999, expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := transporttest.New(testWalletAddress)
			p, err := New(context.Background(), testAccessKey, testWalletURL, tt.chainID, "https://nodes.example.com", WithTransport(fake))
			if tt.expectedError {
				require.Error(t, err)
				var unsupported *UnsupportedNetworkError
				assert.ErrorAs(t, err, &unsupported)
				return
			}
			require.NoError(t, err)
			defer p.Close()

			assert.Equal(t, tt.chainID, p.GetChainID())
			assert.Equal(t, "https://nodes.example.com"+tt.expectedPath, p.Endpoint())
			assert.Same(t, fake, p.Transport())
		})
	}
}

func TestNewDefaultTransport(t *testing.T) {
	p, err := New(context.Background(), testAccessKey, testWalletURL, 1, "https://nodes.example.com")
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.Transport().(*transport.WebSocketTransport)
	assert.True(t, ok)

	_, err = New(context.Background(), testAccessKey, "ftp://wallet.example.com", 1, "https://nodes.example.com")
	assert.Error(t, err)
}

func TestSwitchChainRebindsEndpoint(t *testing.T) {
	p, node, _ := newTestProvider(t, 1)
	node.setResult("eth_blockNumber", `"0x10"`)

	result, err := p.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]any{"chainId": "0x89"}})
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Equal(t, uint64(137), p.GetChainID())
	assert.Equal(t, "polygon", p.Network().Name)
	assert.True(t, strings.HasSuffix(p.Endpoint(), "/polygon/test-key"))

	_, err = p.Request(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)

	calls := node.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "/polygon/test-key", calls[0].Path)
}

func TestSwitchChainParamForms(t *testing.T) {
	tests := []struct {
		name     string
		param    any
		expected uint64
	}{
		{name: "hex string in object", param: map[string]any{"chainId": "0x2105"}, expected: 8453},
		{name: "decimal string in object", param: map[string]any{"chainId": "10"}, expected: 10},
		{name: "float from JSON", param: map[string]any{"chainId": float64(42161)}, expected: 42161},
		{name: "big int", param: big.NewInt(56), expected: 56},
		{name: "bare integer", param: 100, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestProvider(t, 1)

			_, err := p.Request(context.Background(), "wallet_switchEthereumChain", []any{tt.param})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.GetChainID())
		})
	}
}

func TestSwitchChainFailureKeepsState(t *testing.T) {
	p, _, _ := newTestProvider(t, 137)
	endpoint := p.Endpoint()

	_, err := p.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]any{"chainId": "0xdeadbeef"}})
	require.Error(t, err)
	var unsupported *UnsupportedNetworkError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, uint64(0xdeadbeef), unsupported.ChainID)

	_, err = p.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]any{"chainId": "not-a-chain"}})
	assert.Error(t, err)

	_, err = p.Request(context.Background(), "wallet_switchEthereumChain", nil)
	assert.ErrorIs(t, err, ErrMissingParams)

	assert.Equal(t, uint64(137), p.GetChainID())
	assert.Equal(t, endpoint, p.Endpoint())
}

func TestSwitchChainDialFailure(t *testing.T) {
	dialErr := errors.New("dial refused")
	calls := 0
	dialer := func(ctx context.Context, endpoint string) (*rpc.Client, error) {
		calls++
		if calls > 1 {
			return nil, dialErr
		}
		return rpc.DialOptions(ctx, endpoint)
	}

	p, _, _ := newTestProvider(t, 1, WithDialer(dialer))

	err := p.SwitchChain(context.Background(), 137)
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "polygon", rpcErr.Network)
	assert.ErrorIs(t, err, dialErr)
	assert.NotContains(t, err.Error(), testAccessKey)

	assert.Equal(t, uint64(1), p.GetChainID())
}

func TestLocalMethodsSkipNode(t *testing.T) {
	p, node, fake := newTestProvider(t, 137)

	chainID, err := p.Request(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	assert.Equal(t, "0x89", chainID)

	accounts, err := p.Request(context.Background(), "eth_accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, accounts)

	fake.SetAddress(testWalletAddress)
	accounts, err = p.Request(context.Background(), "eth_accounts", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{testChecksumWallet}, accounts)

	assert.Empty(t, node.recorded())
	assert.Empty(t, fake.Calls())
}

func TestAccountsInvalidAddress(t *testing.T) {
	p, _, fake := newTestProvider(t, 1)
	fake.SetAddress("not-an-address")

	_, err := p.Accounts()
	assert.Error(t, err)
}

func TestRequestErrorsReturnNilResult(t *testing.T) {
	p, node, fake := newTestProvider(t, 1)
	node.setError("eth_call", 3, "execution reverted")
	fake.Respond("eth_sendTransaction", transport.CodeTransactionFailed, transport.TransactionFailedData{Error: "out of gas"})
	fake.Respond("personal_sign", transport.CodeSignature, map[string]any{})

	tests := []struct {
		name   string
		setup  func()
		method string
		params []any
	}{
		{name: "accounts with malformed address", setup: func() { fake.SetAddress("not-an-address") }, method: "eth_accounts"},
		{name: "forwarded rpc error", method: "eth_call", params: []any{map[string]any{}, "latest"}},
		{name: "rejected transaction", method: "eth_sendTransaction", params: []any{map[string]any{}}},
		{name: "missing signature", method: "personal_sign", params: []any{"0x00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			result, err := p.Request(context.Background(), tt.method, tt.params)
			require.Error(t, err)
			assert.True(t, result == nil, "result should be an untyped nil, got %#v", result)
		})
	}
}

func TestSendTransaction(t *testing.T) {
	tx := map[string]any{
		"from":  testWalletAddress,
		"to":    "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"value": "0xde0b6b3a7640000",
	}

	tests := []struct {
		name          string
		code          string
		data          any
		expected      string
		expectedError string
	}{
		{
			name:     "receipt returns hash",
			code:     transport.CodeTransactionReceipt,
			data:     transport.TransactionReceiptData{TxHash: "0x5e1f"},
			expected: "0x5e1f",
		},
		{
			name:          "failure is rejected",
			code:          transport.CodeTransactionFailed,
			data:          transport.TransactionFailedData{Error: "insufficient funds"},
			expectedError: "Unable to send transaction: insufficient funds",
		},
		{
			name:          "unknown code",
			code:          "somethingElse",
			data:          map[string]any{},
			expectedError: ErrUnexpectedResponse.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, node, fake := newTestProvider(t, 137)
			fake.Respond("eth_sendTransaction", tt.code, tt.data)

			result, err := p.Request(context.Background(), "eth_sendTransaction", []any{tx})
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			calls := fake.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "eth_sendTransaction", calls[0].Method)
			assert.Equal(t, uint64(137), calls[0].ChainID)
			assert.Equal(t, []any{tx}, calls[0].Params)
			assert.Empty(t, node.recorded())
		})
	}
}

func TestSendTransactionRejectedError(t *testing.T) {
	p, _, fake := newTestProvider(t, 1)
	fake.Respond("eth_sendTransaction", transport.CodeTransactionFailed, transport.TransactionFailedData{Error: "user rejected"})

	_, err := p.Request(context.Background(), "eth_sendTransaction", []any{map[string]any{}})
	require.Error(t, err)

	var rejected *TransactionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "user rejected", rejected.Reason)

	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, TransactionRejectedCode, rpcErr.ErrorCode())
}

func TestWalletMethodsRequireParams(t *testing.T) {
	methods := []string{
		"eth_sendTransaction",
		"eth_sign",
		"eth_signTypedData",
		"eth_signTypedData_v4",
		"personal_sign",
	}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			p, node, fake := newTestProvider(t, 1)

			_, err := p.Request(context.Background(), method, nil)
			assert.ErrorIs(t, err, ErrMissingParams)

			_, err = p.Request(context.Background(), method, []any{})
			assert.ErrorIs(t, err, ErrMissingParams)

			assert.Empty(t, fake.Calls())
			assert.Empty(t, node.recorded())
		})
	}
}

func TestSigningMethods(t *testing.T) {
	methods := []string{
		"eth_sign",
		"eth_signTypedData",
		"eth_signTypedData_v4",
		"personal_sign",
	}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			p, _, fake := newTestProvider(t, 8453)
			fake.Respond(method, transport.CodeSignature, transport.SignatureData{Signature: "0xfeed"})

			params := []any{"0x68656c6c6f", testWalletAddress}
			result, err := p.Request(context.Background(), method, params)
			require.NoError(t, err)
			assert.Equal(t, "0xfeed", result)

			calls := fake.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, method, calls[0].Method)
			assert.Equal(t, uint64(8453), calls[0].ChainID)
			assert.Equal(t, params, calls[0].Params)
		})
	}
}

func TestSigningWithoutSignature(t *testing.T) {
	p, _, fake := newTestProvider(t, 1)
	fake.Respond("personal_sign", transport.CodeSignature, map[string]any{})

	_, err := p.Request(context.Background(), "personal_sign", []any{"0x00"})
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestWalletErrorPropagates(t *testing.T) {
	p, _, fake := newTestProvider(t, 1)
	walletErr := &transport.WalletError{Method: "personal_sign", Message: "user rejected"}
	fake.SendErr = walletErr

	_, err := p.Request(context.Background(), "personal_sign", []any{"0x00"})
	assert.ErrorIs(t, err, walletErr)
}

func TestForwardToNode(t *testing.T) {
	p, node, fake := newTestProvider(t, 137)
	node.setResult("eth_getBalance", `"0xde0b6b3a7640000"`)
	node.setResult("eth_blockNumber", `"0x1b4"`)

	result, err := p.Request(context.Background(), "eth_getBalance", []any{testChecksumWallet, "latest"})
	require.NoError(t, err)
	raw, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `"0xde0b6b3a7640000"`, string(raw))

	result, err = p.Request(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"0x1b4"`, string(result.(json.RawMessage)))

	calls := node.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "eth_getBalance", calls[0].Method)
	assert.Equal(t, "/polygon/test-key", calls[0].Path)
	assert.JSONEq(t, `["`+testChecksumWallet+`","latest"]`, string(calls[0].Params))
	assert.Equal(t, "eth_blockNumber", calls[1].Method)

	assert.Empty(t, fake.Calls())
}

func TestForwardErrorPropagates(t *testing.T) {
	p, node, _ := newTestProvider(t, 1)
	node.setError("eth_call", 3, "execution reverted")

	_, err := p.Request(context.Background(), "eth_call", []any{map[string]any{"to": testChecksumWallet}, "latest"})
	require.Error(t, err)

	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, 3, rpcErr.ErrorCode())
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestGetTransaction(t *testing.T) {
	p, node, _ := newTestProvider(t, 137)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	tx := ethtypes.MustSignNewTx(key, ethtypes.LatestSignerForChainID(big.NewInt(137)), &ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(137),
		Nonce:     7,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(50_000_000_000),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	})

	encoded, err := tx.MarshalJSON()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	fields["blockNumber"] = "0x10"
	fields["blockHash"] = common.HexToHash("0x01").Hex()
	fields["from"] = crypto.PubkeyToAddress(key.PublicKey).Hex()
	mined, err := json.Marshal(fields)
	require.NoError(t, err)

	node.setResult("eth_getTransactionByHash", string(mined))

	got, isPending, err := p.GetTransaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.False(t, isPending)
	assert.Equal(t, tx.Hash(), got.Hash())
	assert.Equal(t, uint64(7), got.Nonce())

	node.setResult("eth_getTransactionByHash", string(encoded))
	_, isPending, err = p.GetTransaction(context.Background(), tx.Hash().Hex())
	require.NoError(t, err)
	assert.True(t, isPending)

	node.setResult("eth_getTransactionByHash", `null`)
	_, _, err = p.GetTransaction(context.Background(), tx.Hash().Hex())
	assert.ErrorIs(t, err, ethereum.NotFound)

	for _, call := range node.recorded() {
		assert.Equal(t, "/polygon/test-key", call.Path)
	}
}

func TestDetectNetwork(t *testing.T) {
	p, node, _ := newTestProvider(t, 10)

	network, err := p.DetectNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), network.ChainID)
	assert.Equal(t, "optimism", network.Name)

	require.NoError(t, p.SwitchChain(context.Background(), 11155111))
	network, err = p.DetectNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sepolia", network.Name)
	assert.True(t, network.Testnet)

	assert.Empty(t, node.recorded())
}

func TestCustomRegistry(t *testing.T) {
	registry := networks.NewRegistry(networks.Network{ChainID: 31337, Name: "hardhat", Title: "Hardhat", Testnet: true})

	p, _, _ := newTestProvider(t, 31337, WithRegistry(registry))
	assert.True(t, strings.HasSuffix(p.Endpoint(), "/hardhat/test-key"))

	err := p.SwitchChain(context.Background(), 1)
	var unsupported *UnsupportedNetworkError
	assert.ErrorAs(t, err, &unsupported)
}

func TestConcurrentSwitchesStayConsistent(t *testing.T) {
	p, _, _ := newTestProvider(t, 1)
	targets := []uint64{1, 137, 8453, 10, 42161}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(chainID uint64) {
			defer wg.Done()
			assert.NoError(t, p.SwitchChain(context.Background(), chainID))
		}(targets[i%len(targets)])
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			binding := p.binding.Load()
			assert.Equal(t, networks.NodeURL(p.nodesURL, binding.network, testAccessKey), binding.endpoint)
		}()
	}
	wg.Wait()

	binding := p.binding.Load()
	assert.Equal(t, networks.NodeURL(p.nodesURL, binding.network, testAccessKey), binding.endpoint)
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.New()
	p, node, fake := newTestProvider(t, 1, WithMetrics(m))
	node.setResult("eth_blockNumber", `"0x1"`)
	fake.Respond("personal_sign", transport.CodeSignature, transport.SignatureData{Signature: "0x01"})

	_, err := p.Request(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	_, err = p.Request(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	_, err = p.Request(context.Background(), "personal_sign", []any{"0x00"})
	require.NoError(t, err)
	_, err = p.Request(context.Background(), "eth_sendTransaction", nil)
	require.ErrorIs(t, err, ErrMissingParams)
	_, err = p.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]any{"chainId": "0x89"}})
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	assert.Equal(t, float64(1), counterValue(families, "waas_provider_requests_total", map[string]string{"method": "eth_chainId", "route": metrics.RouteLocal}))
	assert.Equal(t, float64(1), counterValue(families, "waas_provider_requests_total", map[string]string{"method": "eth_blockNumber", "route": metrics.RouteRPC}))
	assert.Equal(t, float64(1), counterValue(families, "waas_provider_requests_total", map[string]string{"method": "personal_sign", "route": metrics.RouteWallet}))
	assert.Equal(t, float64(1), counterValue(families, "waas_provider_request_errors_total", map[string]string{"method": "eth_sendTransaction"}))
	assert.Equal(t, float64(0), counterValue(families, "waas_provider_request_errors_total", map[string]string{"method": "eth_chainId"}))
	assert.Equal(t, float64(1), counterValue(families, "waas_provider_chain_switches_total", map[string]string{"chain_id": "137"}))
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, label := range metric.GetLabel() {
				if value, ok := labels[label.GetName()]; ok && value == label.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
