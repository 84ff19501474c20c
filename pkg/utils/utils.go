package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrInvalidChainID = errors.New("invalid chain id")
	ErrInvalidAddress = errors.New("invalid address")
)

// ChainIDParam is the object form of a chain id, as sent in
// wallet_switchEthereumChain params: [{"chainId": "0x1"}]
type ChainIDParam struct {
	ChainID any `json:"chainId"`
}

// NormalizeChainID converts any supported chain id representation to its numeric value.
// Strings are parsed as hex when prefixed with 0x and as decimal otherwise.
// Integers, floats decoded from JSON, big integers and {chainId} wrappers are accepted.
func NormalizeChainID(chainID any) (uint64, error) {
	switch v := chainID.(type) {
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrInvalidChainID)
	case ChainIDParam:
		return NormalizeChainID(v.ChainID)
	case *ChainIDParam:
		if v == nil {
			return 0, fmt.Errorf("%w: missing value", ErrInvalidChainID)
		}
		return NormalizeChainID(v.ChainID)
	case map[string]any:
		inner, ok := v["chainId"]
		if !ok {
			return 0, fmt.Errorf("%w: object has no chainId field", ErrInvalidChainID)
		}
		return NormalizeChainID(inner)
	case string:
		return parseChainIDString(v)
	case json.Number:
		return parseChainIDString(v.String())
	case *big.Int:
		if v == nil || v.Sign() < 0 || !v.IsUint64() {
			return 0, fmt.Errorf("%w: %v", ErrInvalidChainID, v)
		}
		return v.Uint64(), nil
	case big.Int:
		return NormalizeChainID(&v)
	case *hexutil.Big:
		if v == nil {
			return 0, fmt.Errorf("%w: missing value", ErrInvalidChainID)
		}
		return NormalizeChainID(v.ToInt())
	case hexutil.Big:
		return NormalizeChainID(v.ToInt())
	case hexutil.Uint64:
		return uint64(v), nil
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case int:
		return fromSigned(int64(v))
	case int64:
		return fromSigned(v)
	case int32:
		return fromSigned(int64(v))
	case int16:
		return fromSigned(int64(v))
	case int8:
		return fromSigned(int64(v))
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidChainID, v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidChainID, chainID)
	}
}

func parseChainIDString(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)

	var (
		value uint64
		err   error
	)
	if len(trimmed) >= 2 && strings.EqualFold(trimmed[:2], "0x") {
		value, err = strconv.ParseUint(trimmed[2:], 16, 64)
	} else {
		value, err = strconv.ParseUint(trimmed, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChainID, s)
	}
	return value, nil
}

func fromSigned(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChainID, v)
	}
	return uint64(v), nil
}

// ToQuantity encodes a chain id as a JSON-RPC hex quantity (e.g., 137 -> "0x89")
func ToQuantity(chainID uint64) string {
	return hexutil.EncodeUint64(chainID)
}

// ChecksumAddress validates a hex address and returns its EIP-55 checksum form
func ChecksumAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}
