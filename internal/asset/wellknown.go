package asset

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	// ChainIDTON is the chain id the bundled TON token list is published under.
	ChainIDTON = 607
)

// Well-known token addresses.
const (
	AddrUSDTTON = "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"

	AddrUSDCEthereum = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	AddrUSDTEthereum = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	AddrDAIEthereum  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	AddrWETHEthereum = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

// Well-known assets.
var (
	TON     = NewToken(ChainIDTON, "", "TON", 9, WithName("Toncoin"))
	USDTTON = NewToken(ChainIDTON, AddrUSDTTON, "USDT", 6, WithName("Tether USD"))

	ETH  = NewToken(ChainIDEthereum, "", "ETH", 18, WithName("Ethereum"))
	WETH = NewToken(ChainIDEthereum, AddrWETHEthereum, "WETH", 18, WithName("Wrapped Ether"))
	USDC = NewToken(ChainIDEthereum, AddrUSDCEthereum, "USDC", 6, WithName("USD Coin"))
	USDT = NewToken(ChainIDEthereum, AddrUSDTEthereum, "USDT", 6, WithName("Tether USD"))
	DAI  = NewToken(ChainIDEthereum, AddrDAIEthereum, "DAI", 18, WithName("Dai Stablecoin"))
)

// DefaultRegistry returns a registry pre-populated with the well-known
// assets of one chain. Unknown chains get an empty registry.
func DefaultRegistry(chainID uint64) *Registry {
	r := NewRegistry(chainID)

	switch chainID {
	case ChainIDTON:
		_ = r.Register(TON)
		_ = r.Register(USDTTON)
	case ChainIDEthereum:
		for _, a := range []*Asset{ETH, WETH, USDC, USDT, DAI} {
			_ = r.Register(a)
		}
	}

	return r
}
