package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// RPCRequest JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// RPCResponse JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCClient calls JSON-RPC methods on a single endpoint.
type RPCClient struct {
	http     *HTTPClient
	endpoint string
	nextID   atomic.Int64
}

// NewRPCClient creates a JSON-RPC client for the endpoint.
func NewRPCClient(source, endpoint string, opts ...HTTPOption) *RPCClient {
	return &RPCClient{
		http:     NewHTTPClient(source, "", opts...),
		endpoint: endpoint,
	}
}

// Source returns the upstream name.
func (c *RPCClient) Source() string {
	return c.http.Source()
}

// Call invokes method and returns the raw result.
func (c *RPCClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var resp RPCResponse
	if err := c.http.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, errors.Errorf("%s: empty result for %s", c.Source(), method)
	}

	return resp.Result, nil
}
