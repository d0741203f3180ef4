package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownToken   = errors.New("asset: unknown token")
	ErrDuplicateToken = errors.New("asset: token already registered")
	ErrWrongChain     = errors.New("asset: token belongs to another chain")
)

// Registry is the thread-safe token registry of a single chain. Lookups by
// address and symbol are case-insensitive.
type Registry struct {
	chainID   uint64
	byID      map[AssetID]*Asset
	bySymbol  map[string]*Asset
	insertion []*Asset
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry for chainID.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		chainID:  chainID,
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// ChainID returns the chain this registry serves.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Register adds a token. The first token registered under a symbol owns
// that symbol for symbol lookups.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}
	if a.ChainID() != r.chainID {
		return fmt.Errorf("%w: %s on chain %d", ErrWrongChain, a.Symbol(), a.ChainID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, a.ID())
	}

	r.byID[a.ID()] = a
	symbol := strings.ToLower(a.Symbol())
	if _, taken := r.bySymbol[symbol]; !taken {
		r.bySymbol[symbol] = a
	}
	r.insertion = append(r.insertion, a)
	return nil
}

// ByAddress looks a token up by address. An empty address resolves the
// native coin.
func (r *Registry) ByAddress(address string) (*Asset, bool) {
	address = normalizeAddress(address)

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[AssetID{chainID: r.chainID, address: address}]
	return a, ok
}

// BySymbol looks a token up by ticker symbol.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	return a, ok
}

// Lookup resolves a user reference, trying the address first and the
// symbol second.
func (r *Registry) Lookup(ref string) (*Asset, error) {
	if strings.TrimSpace(ref) != "" {
		if a, ok := r.ByAddress(ref); ok {
			return a, nil
		}
	}
	if a, ok := r.BySymbol(ref); ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToken, ref)
}

// All returns every registered token in registration order.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, len(r.insertion))
	copy(result, r.insertion)
	return result
}

// Symbols returns the sorted, distinct symbols known to the registry.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.bySymbol))
	for _, a := range r.bySymbol {
		symbols = append(symbols, a.Symbol())
	}
	sort.Strings(symbols)
	return symbols
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
