package provider

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// TransactionRejectedCode is the JSON-RPC error code for a transaction the wallet refused to send
const TransactionRejectedCode = -32003

var (
	// ErrMissingParams is returned before any I/O when a wallet method is called without params
	ErrMissingParams = errors.New("no params")

	// ErrUnexpectedResponse is returned when the wallet answers with an unknown response shape
	ErrUnexpectedResponse = errors.New("unexpected wallet response")
)

// UnsupportedNetworkError is returned when a chain id has no node gateway network
type UnsupportedNetworkError struct {
	ChainID uint64
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: chain id %d", e.ChainID)
}

// RPCError represents a failure to bind a JSON-RPC client to a network
type RPCError struct {
	Network string
	Err     error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error on %s: %v", e.Network, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// TransactionRejectedError is returned when the wallet reports that a transaction failed
type TransactionRejectedError struct {
	Reason string
}

var _ rpc.Error = (*TransactionRejectedError)(nil)

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("Unable to send transaction: %s", e.Reason)
}

// ErrorCode implements rpc.Error
func (e *TransactionRejectedError) ErrorCode() int {
	return TransactionRejectedCode
}
