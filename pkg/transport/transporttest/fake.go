// Package transporttest provides an in-memory wallet transport for tests
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sigweihq/waas-connector/pkg/transport"
)

// Call records a request forwarded to the fake wallet
type Call struct {
	Method  string
	Params  []any
	ChainID uint64
}

// Fake is a scripted transport.Transport
type Fake struct {
	mu sync.Mutex

	address string

	// ConnectAddress is the address a successful Connect stores
	ConnectAddress string
	// ConnectErr makes Connect fail
	ConnectErr error
	// Responses maps a method to the response returned by SendRequest
	Responses map[string]*transport.Response
	// SendErr makes every SendRequest fail
	SendErr error

	connects    int
	disconnects int
	calls       []Call
}

var _ transport.Transport = (*Fake)(nil)

// New creates a fake whose Connect succeeds with address
func New(address string) *Fake {
	return &Fake{
		ConnectAddress: address,
		Responses:      make(map[string]*transport.Response),
	}
}

// Respond scripts the response for method with data encoded as JSON
func (f *Fake) Respond(method, code string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[method] = &transport.Response{Code: code, Data: raw}
}

// SetAddress sets the session address directly
func (f *Fake) SetAddress(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.address = address
}

func (f *Fake) WalletAddress() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.address
}

func (f *Fake) Connect(ctx context.Context) (*transport.ConnectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	if f.ConnectAddress == "" {
		return nil, transport.ErrNoWalletAddress
	}
	f.address = f.ConnectAddress
	return &transport.ConnectResponse{WalletAddress: f.address}, nil
}

func (f *Fake) Disconnect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects++
	f.address = ""
}

func (f *Fake) SendRequest(ctx context.Context, method string, params []any, chainID uint64) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Method: method, Params: params, ChainID: chainID})
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp, ok := f.Responses[method]; ok {
		return resp, nil
	}
	return &transport.Response{}, nil
}

// Connects returns how many times Connect ran
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect ran
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// Calls returns the requests forwarded so far
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
