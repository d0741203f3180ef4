package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexswap/business/quote/infra/pricetable"
	"github.com/fd1az/dexswap/internal/asset"
	"github.com/fd1az/dexswap/internal/logger"
)

type recordingSink struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
}

func (s *recordingSink) SetRate(pair string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rates == nil {
		s.rates = make(map[string]decimal.Decimal)
	}
	s.rates[pair] = rate
	return nil
}

func (s *recordingSink) get(pair string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rates[pair]
	return r, ok
}

// feedServer waits for a subscribe frame, then pushes frames.
func feedServer(t *testing.T, subscribed chan<- []byte, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := context.Background()
		_, sub, err := conn.Read(ctx)
		if err != nil {
			return
		}
		subscribed <- sub

		for _, frame := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestFeed_AppliesRateUpdates(t *testing.T) {
	subscribed := make(chan []byte, 1)
	server := feedServer(t, subscribed,
		`{"result":null,"id":1}`,
		`not json`,
		`{"pair":"ton_usdt","rate":"3800000"}`,
	)
	defer server.Close()

	sink := &recordingSink{}
	feed, err := New(Config{URL: wsURL(server), Pairs: []string{"TON_USDT"}}, sink, logger.NewNop())
	require.NoError(t, err)
	defer feed.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, feed.Start(ctx))
	assert.True(t, feed.Connected())

	select {
	case sub := <-subscribed:
		assert.Contains(t, string(sub), `"SUBSCRIBE"`)
		assert.Contains(t, string(sub), `"TON_USDT"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe frame")
	}

	assert.Eventually(t, func() bool {
		r, ok := sink.get("TON_USDT")
		return ok && r.Equal(decimal.NewFromInt(3800000))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_UpdatesPriceTable(t *testing.T) {
	subscribed := make(chan []byte, 1)
	server := feedServer(t, subscribed, `{"pair":"TON_USDT","rate":"4000000"}`)
	defer server.Close()

	table, err := pricetable.New(pricetable.Config{
		Rates: map[string]string{"TON_USDT": "3763139"},
	})
	require.NoError(t, err)

	feed, err := New(Config{URL: wsURL(server), Pairs: []string{"TON_USDT"}}, table, logger.NewNop())
	require.NoError(t, err)
	defer feed.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, feed.Start(ctx))

	assert.Eventually(t, func() bool {
		p, err := table.Rate(asset.TON, asset.USDTTON)
		return err == nil && p.Rate().Equal(decimal.NewFromInt(4))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{}, &recordingSink{}, logger.NewNop())
	assert.Error(t, err)
}

func TestFeed_StopBeforeStart(t *testing.T) {
	feed, err := New(Config{URL: "ws://localhost:1"}, &recordingSink{}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, feed.Stop())
	assert.False(t, feed.Connected())
}
