package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Response codes reported by the wallet for forwarded requests
const (
	CodeTransactionReceipt = "transactionReceipt"
	CodeTransactionFailed  = "transactionFailed"
	CodeSignature          = "signature"
)

// Wallet events pushed over the transport
const (
	EventWalletDisconnected   = "walletDisconnected"
	EventWalletAddressChanged = "walletAddressChanged"
)

var (
	ErrTransportClosed = errors.New("wallet transport closed")
	ErrNoWalletAddress = errors.New("wallet did not return an address")
)

// Transport is the channel to a remotely hosted wallet session.
// The presence of a wallet address is the only authorization signal.
type Transport interface {
	// WalletAddress returns the session's wallet address, or "" when not connected
	WalletAddress() string

	// Connect runs the interactive connect flow and stores the resulting session
	Connect(ctx context.Context) (*ConnectResponse, error)

	// Disconnect tears down the wallet session
	Disconnect(ctx context.Context)

	// SendRequest forwards a signing or transaction request to the wallet
	SendRequest(ctx context.Context, method string, params []any, chainID uint64) (*Response, error)
}

// ConnectResponse is the result of a successful interactive connect
type ConnectResponse struct {
	WalletAddress string `json:"walletAddress"`
	Email         string `json:"email,omitempty"`
}

// Response is the wallet's answer to a forwarded request
type Response struct {
	Code string          `json:"code"`
	Data json.RawMessage `json:"data"`
}

// TransactionReceiptData is the payload of a transactionReceipt response
type TransactionReceiptData struct {
	TxHash string `json:"txHash"`
}

// TransactionFailedData is the payload of a transactionFailed response
type TransactionFailedData struct {
	Error string `json:"error"`
}

// SignatureData is the payload of a signing response
type SignatureData struct {
	Signature string `json:"signature"`
}

// DecodeData unmarshals the response payload into out
func (r *Response) DecodeData(out any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("wallet response %q has no data", r.Code)
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("failed to decode wallet response %q: %w", r.Code, err)
	}
	return nil
}

// MessageType tags transport envelopes
type MessageType string

const (
	MessageConnect    MessageType = "connect"
	MessageDisconnect MessageType = "disconnect"
	MessageRequest    MessageType = "request"
	MessageResponse   MessageType = "response"
	MessageEvent      MessageType = "event"
)

// Message is the envelope exchanged with the wallet. Responses echo the id of
// the message they answer.
type Message struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Method  string          `json:"method,omitempty"`
	Params  []any           `json:"params,omitempty"`
	ChainID uint64          `json:"chainId,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Event   string          `json:"event,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WalletError is an error reported by the wallet for a specific message
type WalletError struct {
	Method  string
	Message string
}

func (e *WalletError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("wallet error: %s", e.Message)
	}
	return fmt.Sprintf("wallet error on %s: %s", e.Method, e.Message)
}
