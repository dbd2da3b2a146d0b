package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

func newNode(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_getBlockByHash", req.Method)
		assert.Equal(t, []interface{}{"0xabc", false}, req.Params)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBlockByHash(t *testing.T) {
	srv := newNode(t, http.StatusOK,
		`{"jsonrpc":"2.0","id":1,"result":{"number":"0x121eac0","gasUsed":"0xe4e1c0","hash":"0xabc"}}`)
	m := metrics.New()
	c := NewClient(Config{URL: srv.URL, Timeout: time.Second, Metrics: m})

	info, err := c.BlockByHash(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.BlockInfo{Number: 19000000, GasUsed: 15000000}, info)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataLookupsTotal.WithLabelValues(metrics.StatusSuccess)))
}

func TestBlockByHash_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusTooManyRequests, `{}`},
		{"rpc error", http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"header not found"}}`},
		{"null result", http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":null}`},
		{"not json", http.StatusOK, `<html>bad gateway</html>`},
		{"bad hex", http.StatusOK, `{"result":{"number":"0xzz","gasUsed":"0x1"}}`},
		{"no prefix", http.StatusOK, `{"result":{"number":"1234","gasUsed":"0x1"}}`},
		{"numeric field", http.StatusOK, `{"result":{"number":1234,"gasUsed":"0x1"}}`},
		{"missing gas", http.StatusOK, `{"result":{"number":"0x1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newNode(t, tt.status, tt.body)
			m := metrics.New()
			c := NewClient(Config{URL: srv.URL, Timeout: time.Second, Metrics: m})

			_, err := c.BlockByHash(context.Background(), "0xabc")
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMetadataUnavailable), "got %v", err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataLookupsTotal.WithLabelValues(metrics.StatusUnavailable)))
		})
	}
}

func TestBlockByHash_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{URL: url, Timeout: time.Second})
	_, err := c.BlockByHash(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, types.ErrMetadataUnavailable))
}

func TestBlockByHash_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.BlockByHash(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, types.ErrMetadataUnavailable))
}

func TestBlockByHash_RateLimited(t *testing.T) {
	srv := newNode(t, http.StatusOK, `{"result":{"number":"0x1","gasUsed":"0x2"}}`)
	c := NewClient(Config{URL: srv.URL, Timeout: time.Second, RequestsPerSecond: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.BlockByHash(context.Background(), "0xabc")
		require.NoError(t, err)
	}
	// burst of 1 at 20/s: the second and third calls wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestBlockByHash_CancelledContext(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1", RequestsPerSecond: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.BlockByHash(ctx, "0xabc")
	assert.True(t, errors.Is(err, types.ErrMetadataUnavailable))
}
