// Package peg implements the second-upstream peg-source integration: a
// JSON-RPC price lookup client and a background poller that keeps a
// configured set of mints' curated prices fresh, backed by storage.PriceStore
// rather than a process-local cache since the oracle already has a durable
// price store.
package peg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// Client issues JSON-RPC "getAsset" lookups against a Helius-style
// blockchain RPC endpoint to resolve a mint's USD price.
type Client struct {
	rpcURL string
	http   *http.Client
}

// NewClient creates a Client against rpcURL with the given per-request
// timeout.
func NewClient(rpcURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		rpcURL: rpcURL,
		http:   &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// FetchUSD resolves mint's current USD price via getAsset. ok is false, with
// a nil err, when the response status is not 2xx or the body carries no
// usable price field (e.g. an untracked asset). err is oracle.ErrBadConfig
// for an empty rpcURL and wraps oracle.ErrUpstreamUnavailable for transport
// and body-read failures.
func (c *Client) FetchUSD(ctx context.Context, mint string) (usd float64, ok bool, err error) {
	if c.rpcURL == "" {
		return 0, false, oracle.ErrBadConfig
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  "getAsset",
		Params:  map[string]any{"id": mint},
	})
	if err != nil {
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBody))
	if err != nil {
		return 0, false, fmt.Errorf("%w: build request: %v", oracle.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", oracle.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("%w: read body: %v", oracle.ErrUpstreamUnavailable, err)
	}

	return extractUSD(body)
}

// extractUSD pulls a price field out of one of the three shapes the Helius
// getAsset response has been observed to use, via cheap gjson field lookups
// rather than decoding the whole payload into a struct.
func extractUSD(body []byte) (float64, bool, error) {
	parsed := gjson.ParseBytes(body)
	for _, path := range []string{
		"result.token_info.price_info.price",
		"result.token_info.price_info.price_per_token",
		"result.price_info.price",
	} {
		if v := parsed.Get(path); v.Exists() {
			return v.Float(), true, nil
		}
	}
	return 0, false, nil
}
