package networks

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Network is a chain the wallet service can route requests for
type Network struct {
	ChainID uint64 `json:"chainId"`
	Name    string `json:"name"`  // node gateway path segment (e.g., "mainnet", "polygon")
	Title   string `json:"title"` // display name
	Testnet bool   `json:"testnet"`
}

// ChainIDHex returns the chain id as a JSON-RPC hex quantity
func (n Network) ChainIDHex() string {
	return hexutil.EncodeUint64(n.ChainID)
}

func (n Network) String() string {
	return fmt.Sprintf("%s (%d)", n.Name, n.ChainID)
}

// NodeURL builds the JSON-RPC endpoint for a network on the node gateway:
// <nodesURL>/<network name>/<projectAccessKey>
func NodeURL(nodesURL string, network Network, projectAccessKey string) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(nodesURL, "/"),
		url.PathEscape(network.Name),
		url.PathEscape(projectAccessKey))
}
