// =============================================================================
// pkg/metadata/client.go - Block Metadata over JSON-RPC
// =============================================================================
//
// Client looks up a block's number and gas used from an Ethereum JSON-RPC
// node:
//
//	→ {"jsonrpc":"2.0","method":"eth_getBlockByHash","params":["0x…",false],"id":N}
//	← {"jsonrpc":"2.0","id":N,"result":{"number":"0x121eac0","gasUsed":"0xe4e1c0",…}}
//
// Lookups are rate limited so a wide benchmark sweep does not trip the
// node's request quota. Every failure (transport, HTTP status, RPC error,
// null result, malformed quantity) is types.ErrMetadataUnavailable; the
// benchmark report turns it into N/A cells.
//
// =============================================================================

package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/interfaces"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/metrics"
	"github.com/karthikiyer56/block-proving-profiler/block-profiling-workflow/pkg/types"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 * types.MB

// Config configures a Client.
type Config struct {
	// URL is the JSON-RPC endpoint.
	URL string

	// Timeout bounds one request, including the body read.
	Timeout time.Duration

	// RequestsPerSecond limits the lookup rate; zero or less means unlimited.
	RequestsPerSecond float64

	Metrics *metrics.Metrics
}

// Client implements interfaces.MetadataSource.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	nextID  atomic.Int64
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		metrics: cfg.Metrics,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

// BlockByHash returns the number and gas used of the block with the given hash.
func (c *Client) BlockByHash(ctx context.Context, hash string) (types.BlockInfo, error) {
	info, err := c.blockByHash(ctx, hash)
	c.metrics.MetadataLookup(err == nil)
	if err != nil {
		return types.BlockInfo{}, errors.Wrapf(types.ErrMetadataUnavailable, "block %s: %v", hash, err)
	}
	return info, nil
}

func (c *Client) blockByHash(ctx context.Context, hash string) (types.BlockInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.BlockInfo{}, errors.Wrap(err, "rate limiter")
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getBlockByHash",
		Params:  []interface{}{hash, false},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return types.BlockInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.BlockInfo{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.BlockInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.BlockInfo{}, errors.Errorf("HTTP %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.BlockInfo{}, errors.Wrap(err, "read response")
	}
	return parseBlock(payload)
}

// parseBlock reads result.number and result.gasUsed from a response body.
func parseBlock(payload []byte) (types.BlockInfo, error) {
	if !gjson.ValidBytes(payload) {
		return types.BlockInfo{}, errors.New("response is not valid JSON")
	}
	if rpcErr := gjson.GetBytes(payload, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return types.BlockInfo{}, errors.Errorf("rpc error %s: %s",
			rpcErr.Get("code").Raw, rpcErr.Get("message").String())
	}

	result := gjson.GetBytes(payload, "result")
	if !result.IsObject() {
		return types.BlockInfo{}, errors.New("block not found")
	}

	number, err := parseQuantity(result.Get("number"))
	if err != nil {
		return types.BlockInfo{}, errors.Wrap(err, "number")
	}
	gasUsed, err := parseQuantity(result.Get("gasUsed"))
	if err != nil {
		return types.BlockInfo{}, errors.Wrap(err, "gasUsed")
	}
	return types.BlockInfo{Number: number, GasUsed: gasUsed}, nil
}

// parseQuantity decodes a "0x"-prefixed hex quantity.
func parseQuantity(v gjson.Result) (uint64, error) {
	if v.Type != gjson.String {
		return 0, errors.Errorf("missing or non-string quantity %s", v.Raw)
	}
	s := v.String()
	if len(s) < 3 || !strings.EqualFold(s[:2], "0x") {
		return 0, errors.Errorf("invalid hex quantity %q", s)
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid hex quantity %q", s)
	}
	return n, nil
}

var _ interfaces.MetadataSource = (*Client)(nil)
