package asset

// MaxDecimals bounds the decimals a token list entry may declare.
const MaxDecimals = 36

// Asset is the metadata of a token. Identity is the AssetID; symbol and
// name are display metadata.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
	logoURI  string
	// rawAddress keeps the address as published (checksum casing).
	rawAddress string
}

// NewAsset creates a new Asset.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > MaxDecimals {
		panic("asset: suspicious decimals")
	}

	return &Asset{
		id:         id,
		symbol:     symbol,
		decimals:   decimals,
		rawAddress: id.Address(),
	}
}

// Option customizes optional token metadata.
type Option func(*Asset)

// WithName sets the human-readable name.
func WithName(name string) Option {
	return func(a *Asset) { a.name = name }
}

// WithLogoURI sets the logo URI from the token list.
func WithLogoURI(uri string) Option {
	return func(a *Asset) { a.logoURI = uri }
}

// WithRawAddress keeps the published address casing for chain calls.
func WithRawAddress(address string) Option {
	return func(a *Asset) {
		if address != "" {
			a.rawAddress = address
		}
	}
}

// NewToken creates a token asset from token list fields.
func NewToken(chainID uint64, address, symbol string, decimals uint8, opts ...Option) *Asset {
	var id AssetID
	if normalizeAddress(address) == "" {
		id = NewNativeAssetID(chainID)
	} else {
		id = NewTokenAssetID(chainID, address)
	}

	a := NewAsset(id, symbol, decimals)
	a.rawAddress = address
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the unique identifier for this asset.
func (a *Asset) ID() AssetID {
	return a.id
}

// Symbol returns the ticker symbol (e.g., "TON", "USDT").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places of the base unit.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// ChainID returns the chain ID.
func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

// Address returns the address as published by the token list.
func (a *Asset) Address() string {
	return a.rawAddress
}

// LogoURI returns the token logo URI, if any.
func (a *Asset) LogoURI() string {
	return a.logoURI
}

// IsNative returns true if this is the chain's native coin.
func (a *Asset) IsNative() bool {
	return a.id.IsNative()
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
