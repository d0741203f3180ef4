// Package tokenlist loads a token list once at startup and fills the asset
// registry from it. Lists follow the common
// {"tokens":[{address,symbol,name,decimals,chainId,logoURI}]} shape; a bare
// array of tokens is accepted too.
package tokenlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/httpclient"
	"github.com/fd1az/dexswap/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Token is one list entry.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	ChainID  uint64 `json:"chainId"`
	LogoURI  string `json:"logoURI"`
}

// List is a decoded token list.
type List struct {
	Name   string  `json:"name"`
	Tokens []Token `json:"tokens"`
}

// Decode parses either list form.
func Decode(data []byte) (List, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return List{}, errors.New("tokenlist: empty document")
	}

	var list List
	if data[0] == '[' {
		if err := json.Unmarshal(data, &list.Tokens); err != nil {
			return List{}, fmt.Errorf("tokenlist: decode array: %w", err)
		}
		return list, nil
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return List{}, fmt.Errorf("tokenlist: decode: %w", err)
	}
	return list, nil
}

// Loader reads token lists from http(s) URLs or local files.
type Loader struct {
	client httpclient.Client
	logger logger.LoggerInterface
}

// NewLoader creates a loader. client may be nil when only files are read.
func NewLoader(client httpclient.Client, log logger.LoggerInterface) *Loader {
	return &Loader{client: client, logger: log}
}

// Load fetches and decodes src.
func (l *Loader) Load(ctx context.Context, src string) (List, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return List{}, apperror.Transport(apperror.CodeTokenListFetch, "tokenlist.load", err)
	}
	list, err := Decode(data)
	if err != nil {
		return List{}, apperror.Transport(apperror.CodeTokenListFetch, "tokenlist.decode", err)
	}
	l.logger.Info(ctx, "token list loaded", "source", src, "name", list.Name, "tokens", len(list.Tokens))
	return list, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if l.client == nil {
			return nil, errors.New("no http client configured")
		}
		resp, err := l.client.NewRequest(httpclient.WithResponseErrorHandler(httpclient.StatusError)).
			Get(ctx, src)
		if err != nil {
			return nil, err
		}
		return resp.Body(), nil
	}
	return os.ReadFile(src)
}

// Fill registers every usable entry of list. Entries of other chains,
// entries without a symbol or with impossible decimals are skipped, and
// the first entry for an address wins. It returns how many were added.
func Fill(reg *asset.Registry, list List) (added, skipped int) {
	for _, t := range list.Tokens {
		if t.ChainID != reg.ChainID() || strings.TrimSpace(t.Symbol) == "" ||
			t.Decimals < 0 || t.Decimals > asset.MaxDecimals {
			skipped++
			continue
		}

		a := asset.NewToken(t.ChainID, t.Address, t.Symbol, uint8(t.Decimals),
			asset.WithName(t.Name), asset.WithLogoURI(t.LogoURI))
		if err := reg.Register(a); err != nil {
			skipped++
			continue
		}
		added++
	}
	return added, skipped
}
