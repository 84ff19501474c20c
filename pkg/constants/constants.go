package constants

import "time"

// Connector identity as registered with the host framework
const (
	ConnectorID   = "sequence-cross-app-embedded-wallet"
	ConnectorName = "Sequence Cross-App Embedded Wallet"
	ConnectorType = "sequence-cross-app-embedded-wallet"
)

// Node gateway base URLs, selected by the dev flag
const (
	NodesURL    = "https://nodes.sequence.app"
	DevNodesURL = "https://dev-nodes.sequence.app"
)

const (
	HTTPClientTimeout     = 30 * time.Second // timeout for node gateway requests
	TLSHandshakeTimeout   = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout = 20 * time.Second // timeout for response header
	ExpectContinueTimeout = 1 * time.Second  // timeout for expect continue
	WalletDialTimeout     = 15 * time.Second // timeout for dialing the wallet transport
	WalletWriteTimeout    = 10 * time.Second // timeout for a single transport write
	MaxMessageSize        = 10 * 1024 * 1024 // maximum transport message size in bytes (10MB)
)

// Provider request methods handled locally or by the wallet transport.
// Every other method is forwarded to the chain's node endpoint.
const (
	MethodSwitchEthereumChain = "wallet_switchEthereumChain"
	MethodChainID             = "eth_chainId"
	MethodAccounts            = "eth_accounts"
	MethodSendTransaction     = "eth_sendTransaction"
	MethodSign                = "eth_sign"
	MethodSignTypedData       = "eth_signTypedData"
	MethodSignTypedDataV4     = "eth_signTypedData_v4"
	MethodPersonalSign        = "personal_sign"
)

// Network names as used in node gateway paths
const (
	NetworkMainnet               = "mainnet"
	NetworkSepolia               = "sepolia"
	NetworkPolygon               = "polygon"
	NetworkAmoy                  = "amoy"
	NetworkPolygonZkEVM          = "polygon-zkevm"
	NetworkBSC                   = "bsc"
	NetworkBSCTestnet            = "bsc-testnet"
	NetworkOptimism              = "optimism"
	NetworkOptimismSepolia       = "optimism-sepolia"
	NetworkArbitrum              = "arbitrum"
	NetworkArbitrumNova          = "arbitrum-nova"
	NetworkArbitrumSepolia       = "arbitrum-sepolia"
	NetworkAvalanche             = "avalanche"
	NetworkAvalancheTestnet      = "avalanche-testnet"
	NetworkGnosis                = "gnosis"
	NetworkBase                  = "base"
	NetworkBaseSepolia           = "base-sepolia"
	NetworkXai                   = "xai"
	NetworkXaiSepolia            = "xai-sepolia"
	NetworkB3                    = "b3"
	NetworkB3Sepolia             = "b3-sepolia"
	NetworkApeChain              = "apechain"
	NetworkApeChainTestnet       = "apechain-testnet"
	NetworkBlast                 = "blast"
	NetworkBlastSepolia          = "blast-sepolia"
	NetworkImmutableZkEVM        = "immutable-zkevm"
	NetworkImmutableZkEVMTestnet = "immutable-zkevm-testnet"
	NetworkSoneiumMinato         = "soneium-minato"
)

// mapping from network name to numeric chain ID
var NetworkToChainID = map[string]uint64{
	NetworkMainnet:               1,
	NetworkSepolia:               11155111,
	NetworkPolygon:               137,
	NetworkAmoy:                  80002,
	NetworkPolygonZkEVM:          1101,
	NetworkBSC:                   56,
	NetworkBSCTestnet:            97,
	NetworkOptimism:              10,
	NetworkOptimismSepolia:       11155420,
	NetworkArbitrum:              42161,
	NetworkArbitrumNova:          42170,
	NetworkArbitrumSepolia:       421614,
	NetworkAvalanche:             43114,
	NetworkAvalancheTestnet:      43113,
	NetworkGnosis:                100,
	NetworkBase:                  8453,
	NetworkBaseSepolia:           84532,
	NetworkXai:                   660279,
	NetworkXaiSepolia:            37714555429,
	NetworkB3:                    8333,
	NetworkB3Sepolia:             1993,
	NetworkApeChain:              33139,
	NetworkApeChainTestnet:       33111,
	NetworkBlast:                 81457,
	NetworkBlastSepolia:          168587773,
	NetworkImmutableZkEVM:        13371,
	NetworkImmutableZkEVMTestnet: 13473,
	NetworkSoneiumMinato:         1946,
}

var NetworkTitle = map[string]string{
	NetworkMainnet:               "Ethereum",
	NetworkSepolia:               "Sepolia",
	NetworkPolygon:               "Polygon",
	NetworkAmoy:                  "Polygon Amoy",
	NetworkPolygonZkEVM:          "Polygon zkEVM",
	NetworkBSC:                   "BNB Smart Chain",
	NetworkBSCTestnet:            "BNB Smart Chain Testnet",
	NetworkOptimism:              "Optimism",
	NetworkOptimismSepolia:       "Optimism Sepolia",
	NetworkArbitrum:              "Arbitrum One",
	NetworkArbitrumNova:          "Arbitrum Nova",
	NetworkArbitrumSepolia:       "Arbitrum Sepolia",
	NetworkAvalanche:             "Avalanche",
	NetworkAvalancheTestnet:      "Avalanche Testnet",
	NetworkGnosis:                "Gnosis Chain",
	NetworkBase:                  "Base",
	NetworkBaseSepolia:           "Base Sepolia",
	NetworkXai:                   "Xai",
	NetworkXaiSepolia:            "Xai Sepolia",
	NetworkB3:                    "B3",
	NetworkB3Sepolia:             "B3 Sepolia",
	NetworkApeChain:              "ApeChain",
	NetworkApeChainTestnet:       "ApeChain Testnet",
	NetworkBlast:                 "Blast",
	NetworkBlastSepolia:          "Blast Sepolia",
	NetworkImmutableZkEVM:        "Immutable zkEVM",
	NetworkImmutableZkEVMTestnet: "Immutable zkEVM Testnet",
	NetworkSoneiumMinato:         "Soneium Minato",
}

// TestnetNetworks lists networks flagged as testnets
var TestnetNetworks = map[string]bool{
	NetworkSepolia:               true,
	NetworkAmoy:                  true,
	NetworkBSCTestnet:            true,
	NetworkOptimismSepolia:       true,
	NetworkArbitrumSepolia:       true,
	NetworkAvalancheTestnet:      true,
	NetworkBaseSepolia:           true,
	NetworkXaiSepolia:            true,
	NetworkB3Sepolia:             true,
	NetworkApeChainTestnet:       true,
	NetworkBlastSepolia:          true,
	NetworkImmutableZkEVMTestnet: true,
	NetworkSoneiumMinato:         true,
}
