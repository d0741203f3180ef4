package tokenlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/internal/apperror"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/httpclient"
	"github.com/fd1az/dexswap/internal/logger"
)

const sampleList = `{
	"name": "ton-default",
	"tokens": [
		{"address": "EQBynBO23ywHy_CgarY9NK9FTz0yDsG82PtcbSTQgGoXwiuA", "symbol": "jUSDT", "name": "Bridged USDT", "decimals": 6, "chainId": 607},
		{"address": "EQBYNBO23YWHY_CGARY9NK9FTZ0YDSG82PTCBSTQGGOXWIUA", "symbol": "dupe", "name": "Same address", "decimals": 6, "chainId": 607},
		{"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "symbol": "USDC", "name": "USD Coin", "decimals": 6, "chainId": 1},
		{"address": "EQAvlWFDxGF2lXm67y4yzC17wYKD9A0guwPkMs1gOsM__NOT", "symbol": "NOT", "name": "Notcoin", "decimals": 9, "chainId": 607, "logoURI": "https://example.com/not.png"},
		{"address": "EQbad", "symbol": "BAD", "decimals": 99, "chainId": 607}
	]
}`

func TestDecode_BothForms(t *testing.T) {
	list, err := Decode([]byte(sampleList))
	require.NoError(t, err)
	assert.Equal(t, "ton-default", list.Name)
	assert.Len(t, list.Tokens, 5)

	bare, err := Decode([]byte(`  [{"address":"EQx","symbol":"X","decimals":9,"chainId":607}]`))
	require.NoError(t, err)
	require.Len(t, bare.Tokens, 1)
	assert.Equal(t, "X", bare.Tokens[0].Symbol)

	_, err = Decode([]byte("   "))
	assert.Error(t, err)
	_, err = Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	list, err := Decode([]byte(sampleList))
	require.NoError(t, err)

	reg := asset.DefaultRegistry(asset.ChainIDTON)
	added, skipped := Fill(reg, list)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, skipped)

	jusdt, ok := reg.BySymbol("jusdt")
	require.True(t, ok)
	assert.Equal(t, "Bridged USDT", jusdt.Name())

	not, ok := reg.BySymbol("NOT")
	require.True(t, ok)
	assert.Equal(t, uint8(9), not.Decimals())
	assert.Equal(t, "https://example.com/not.png", not.LogoURI())

	_, ok = reg.BySymbol("USDC")
	assert.False(t, ok, "other chains are skipped")
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	client, err := httpclient.New(httpclient.WithProviderName("tokenlist"))
	require.NoError(t, err)
	l := NewLoader(client, logger.NewNop())

	list, err := l.Load(context.Background(), srv.URL+"/list.json")
	require.NoError(t, err)
	assert.Len(t, list.Tokens, 5)

	_, err = l.Load(context.Background(), srv.URL+"/missing.json")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTokenListFetch))
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleList), 0o600))

	l := NewLoader(nil, logger.NewNop())
	list, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, list.Tokens, 5)

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, apperror.HasCode(err, apperror.CodeTokenListFetch))

	_, err = l.Load(context.Background(), "https://example.invalid/list.json")
	assert.Error(t, err, "http sources need a client")
}
