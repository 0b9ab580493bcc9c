// Package registry holds the static chain and token table the scanner
// and verifier share. The table is built once at init and never
// mutated; rejection amounts are fixed integers approximating ~$2 per
// asset at registry-build time.
package registry

import (
	"math/big"

	"github.com/crushlink/crushpay/types"
)

// ReceiverAddress is the fixed destination every rejection fee must be
// paid to. A payment to any other address never verifies.
const ReceiverAddress = "0x092036f5ad401068e6e10244c6e0edb7c44d207a"

// Rejection amounts shared by several chains. Stables are ~$2 in their
// own precision; gas coins were priced once and left alone.
var (
	ethFee       = amt("800000000000000")     // 0.0008 ETH
	bnbFee       = amt("3000000000000000")    // 0.003 BNB
	stableFee6   = amt("2000000")             // $2 at 6 decimals
	stableFee18  = amt("2000000000000000000") // $2 at 18 decimals
	polFee       = amt("5000000000000000000")
	avaxFee      = amt("100000000000000000")
	gasCoinFee18 = amt("3000000000000000000") // FTM, CELO, MNT
)

var chains = []types.ChainEntry{
	{
		Name: "Ethereum", ChainID: 1, Icon: "🔷",
		RPCURL:      "https://eth.llamarpc.com",
		ExplorerURL: "https://etherscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdt6("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			usdc6("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		},
	},
	{
		Name: "Polygon", ChainID: 137, Icon: "🟣",
		RPCURL:      "https://polygon-rpc.com",
		ExplorerURL: "https://polygonscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("POL", "Polygon", polFee, "🟣"),
			usdt6("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"),
			usdc6("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		},
	},
	{
		Name: "Arbitrum One", ChainID: 42161, Icon: "🔵",
		RPCURL:      "https://arb1.arbitrum.io/rpc",
		ExplorerURL: "https://arbiscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdt6("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
			usdc6("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		},
	},
	{
		Name: "OP Mainnet", ChainID: 10, Icon: "🔴",
		RPCURL:      "https://mainnet.optimism.io",
		ExplorerURL: "https://optimistic.etherscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdt6("0x94b008aA00579c1307B0EF2c499aD98a8ce58e58"),
			usdc6("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		},
	},
	{
		Name: "Base", ChainID: 8453, Icon: "🔵",
		RPCURL:      "https://mainnet.base.org",
		ExplorerURL: "https://basescan.org/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdc6("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		},
	},
	{
		Name: "Avalanche", ChainID: 43114, Icon: "🔺",
		RPCURL:      "https://api.avax.network/ext/bc/C/rpc",
		ExplorerURL: "https://snowtrace.io/tx/%s",
		Tokens: []types.ChainToken{
			native("AVAX", "Avalanche", avaxFee, "🔺"),
			usdt6("0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7"),
			usdc6("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"),
		},
	},
	{
		Name: "BNB Smart Chain", ChainID: 56, Icon: "💛",
		RPCURL:      "https://bsc-dataseed.binance.org",
		ExplorerURL: "https://bscscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("BNB", "BNB", bnbFee, "💛"),
			{Symbol: "USDT", Name: "Tether", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18, RejectionAmount: stableFee18, Icon: "💵"},
			{Symbol: "USDC", Name: "USD Coin", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18, RejectionAmount: stableFee18, Icon: "🪙"},
		},
	},
	{
		Name: "Fantom", ChainID: 250, Icon: "👻",
		RPCURL:      "https://rpc.ftm.tools",
		ExplorerURL: "https://ftmscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("FTM", "Fantom", gasCoinFee18, "👻"),
			usdc6("0x04068DA6C83AFCFA0e13ba15A6696662335D5B75"),
		},
	},
	{
		Name: "Gnosis", ChainID: 100, Icon: "🦉",
		RPCURL:      "https://rpc.gnosischain.com",
		ExplorerURL: "https://gnosisscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("xDAI", "xDAI", stableFee18, "🦉"),
		},
	},
	{
		Name: "Celo", ChainID: 42220, Icon: "🟢",
		RPCURL:      "https://forno.celo.org",
		ExplorerURL: "https://celoscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("CELO", "Celo", gasCoinFee18, "🟢"),
			{Symbol: "cUSD", Name: "Celo USD", Address: "0x765DE816845861e75A25fCA122bb6898B8B1282a", Decimals: 18, RejectionAmount: stableFee18, Icon: "💵"},
		},
	},
	{
		Name: "Linea", ChainID: 59144, Icon: "⬛",
		RPCURL:      "https://rpc.linea.build",
		ExplorerURL: "https://lineascan.build/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdc6("0x176211869cA2b568f2A7D4EE941E073a821EE1ff"),
		},
	},
	{
		Name: "Scroll", ChainID: 534352, Icon: "📜",
		RPCURL:      "https://rpc.scroll.io",
		ExplorerURL: "https://scrollscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdc6("0x06eFdBFf2a14a7c8E15944D1F4A48F9F95F663A4"),
		},
	},
	{
		Name: "Mantle", ChainID: 5000, Icon: "🟤",
		RPCURL:      "https://rpc.mantle.xyz",
		ExplorerURL: "https://mantlescan.xyz/tx/%s",
		Tokens: []types.ChainToken{
			native("MNT", "Mantle", gasCoinFee18, "🟤"),
			usdt6("0x201EBa5CC46D216Ce6DC03F6a759e8E766e956aE"),
		},
	},
	{
		Name: "Blast", ChainID: 81457, Icon: "💥",
		RPCURL:      "https://rpc.blast.io",
		ExplorerURL: "https://blastscan.io/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			{Symbol: "USDB", Name: "USDB", Address: "0x4300000000000000000000000000000000000003", Decimals: 18, RejectionAmount: stableFee18, Icon: "💵"},
		},
	},
	{
		Name: "Mode", ChainID: 34443, Icon: "🟡",
		RPCURL:      "https://mainnet.mode.network",
		ExplorerURL: "https://explorer.mode.network/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
		},
	},
	{
		Name: "Manta Pacific", ChainID: 169, Icon: "🐟",
		RPCURL:      "https://pacific-rpc.manta.network/http",
		ExplorerURL: "https://pacific-explorer.manta.network/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
		},
	},
	{
		Name: "zkSync Era", ChainID: 324, Icon: "⚡",
		RPCURL:      "https://mainnet.era.zksync.io",
		ExplorerURL: "https://explorer.zksync.io/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
			usdc6("0x1d17CBcF0D6D143135aE902365D2E5e2A16538D4"),
		},
	},
	{
		Name: "Polygon zkEVM", ChainID: 1101, Icon: "🟣",
		RPCURL:      "https://zkevm-rpc.com",
		ExplorerURL: "https://zkevm.polygonscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("ETH", "Ether", ethFee, "💎"),
		},
	},
	{
		Name: "opBNB", ChainID: 204, Icon: "💛",
		RPCURL:      "https://opbnb-mainnet-rpc.bnbchain.org",
		ExplorerURL: "https://opbnbscan.com/tx/%s",
		Tokens: []types.ChainToken{
			native("BNB", "BNB", bnbFee, "💛"),
		},
	},
}

var byChainID = func() map[uint64]types.ChainEntry {
	m := make(map[uint64]types.ChainEntry, len(chains))
	for _, c := range chains {
		m[c.ChainID] = c
	}
	return m
}()

// All returns every registered chain, in registry order. Callers must
// not mutate the returned entries.
func All() []types.ChainEntry {
	return chains
}

// ByChainID looks a chain up by its numeric EVM chain ID.
func ByChainID(chainID uint64) (types.ChainEntry, bool) {
	c, ok := byChainID[chainID]
	return c, ok
}

// IsSupported reports whether a chain ID is in the registry.
func IsSupported(chainID uint64) bool {
	_, ok := byChainID[chainID]
	return ok
}

// TokenByAddress resolves a token on a chain by contract address, or by
// the native sentinel.
func TokenByAddress(chainID uint64, address string) (types.ChainToken, bool) {
	c, ok := byChainID[chainID]
	if !ok {
		return types.ChainToken{}, false
	}
	for _, t := range c.Tokens {
		if types.SameAddress(t.Address, address) {
			return t, true
		}
	}
	return types.ChainToken{}, false
}

func amt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("registry: bad amount constant " + s)
	}
	return v
}

func native(symbol, name string, fee *big.Int, icon string) types.ChainToken {
	return types.ChainToken{
		Symbol: symbol, Name: name, Address: types.NativeToken,
		Decimals: 18, RejectionAmount: fee, Icon: icon,
	}
}

func usdt6(address string) types.ChainToken {
	return types.ChainToken{
		Symbol: "USDT", Name: "Tether", Address: address,
		Decimals: 6, RejectionAmount: stableFee6, Icon: "💵",
	}
}

func usdc6(address string) types.ChainToken {
	return types.ChainToken{
		Symbol: "USDC", Name: "USD Coin", Address: address,
		Decimals: 6, RejectionAmount: stableFee6, Icon: "🪙",
	}
}
