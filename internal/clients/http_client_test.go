package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "v", r.URL.Query().Get("q"))
			assert.Equal(t, "secret", r.Header.Get("x-api-key"))
			_, _ = w.Write([]byte(`{"value": 42}`))
		case "/bad":
			_, _ = w.Write([]byte(`not json`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient("test", srv.URL, WithHeader("x-api-key", "secret"), WithTimeout(time.Second))

	t.Run("decodes body", func(t *testing.T) {
		var out struct {
			Value int `json:"value"`
		}
		err := c.GetJSON(context.Background(), "/ok", map[string]string{"q": "v"}, &out)
		require.NoError(t, err)
		assert.Equal(t, 42, out.Value)
	})

	t.Run("status error", func(t *testing.T) {
		var out map[string]any
		err := c.GetJSON(context.Background(), "/missing", nil, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("decode error", func(t *testing.T) {
		var out map[string]any
		err := c.GetJSON(context.Background(), "/bad", nil, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode test response")
	})
}

func TestRPCClient_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		switch req.Method {
		case "getBalance":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":5000000000}}`))
		case "broken":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
		default:
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
		}
	}))
	defer srv.Close()

	c := NewRPCClient("rpc", srv.URL)

	t.Run("returns result", func(t *testing.T) {
		raw, err := c.Call(context.Background(), "getBalance", "addr")
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":5000000000}`, string(raw))
	})

	t.Run("rpc error", func(t *testing.T) {
		_, err := c.Call(context.Background(), "broken")
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, -32602, rpcErr.Code)
	})

	t.Run("null result", func(t *testing.T) {
		_, err := c.Call(context.Background(), "other")
		assert.Error(t, err)
	})
}

func TestLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter("x", 0, 1))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))

	l := NewLimiter("x", 1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "ok"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("x responded with status 429"), "rate_limited"},
		{errors.New("x responded with status 503"), "server_error"},
		{errors.New("dial tcp: connection refused"), "network_error"},
		{errors.New("x responded with status 404"), "client_error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
}
