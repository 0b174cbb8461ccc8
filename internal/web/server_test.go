package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/events"
	"go.uber.org/zap"
)

type fakeTreasury struct {
	*events.SnapshotBroadcaster

	mu        sync.Mutex
	snap      domain.TreasurySnapshot
	refreshes []bool
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{
		SnapshotBroadcaster: events.NewSnapshotBroadcaster(4, zap.NewNop()),
		snap: domain.NewTreasurySnapshot(
			domain.Balances{BTC: decimal.RequireFromString("1.5"), ETH: decimal.NewFromInt(2), SOL: decimal.NewFromInt(3)},
			domain.Prices{BTC: decimal.NewFromInt(60000), ETH: decimal.NewFromInt(3000), SOL: decimal.NewFromInt(150)},
			nil,
			time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		),
	}
}

func (f *fakeTreasury) Snapshot() domain.TreasurySnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeTreasury) Refresh(_ context.Context, force bool) domain.TreasurySnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, force)
	return f.snap
}

func newTestServer(t *testing.T) (*fakeTreasury, *httptest.Server) {
	t.Helper()

	treasury := newFakeTreasury()
	s := NewServer(":0", treasury, zap.NewNop())
	s.heartbeat = 20 * time.Millisecond

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return treasury, srv
}

func TestServer_Treasury(t *testing.T) {
	treasury, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/treasury")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, treasuryCacheControl, resp.Header.Get("Cache-Control"))

	var body struct {
		Balances struct {
			BTC decimal.Decimal `json:"btc"`
		} `json:"balances"`
		Prices struct {
			SOL decimal.Decimal `json:"sol"`
		} `json:"prices"`
		Source string `json:"source"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.True(t, decimal.RequireFromString("1.5").Equal(body.Balances.BTC))
	assert.True(t, decimal.NewFromInt(150).Equal(body.Prices.SOL))
	assert.Equal(t, "live", body.Source)
	assert.Equal(t, []bool{false}, treasury.refreshes)
}

func TestServer_SnapshotAndRefresh(t *testing.T) {
	treasury, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/treasury/snapshot")
	require.NoError(t, err)
	var snap domain.TreasurySnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()

	assert.True(t, treasury.snap.TotalUSD.Equal(snap.TotalUSD))
	assert.Empty(t, treasury.refreshes)

	resp, err = http.Post(srv.URL+"/api/treasury/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []bool{true}, treasury.refreshes)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestServer_CORS(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/treasury/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_Stream(t *testing.T) {
	treasury, srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/treasury/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	treasury.Publish(treasury.Snapshot())

	reader := bufio.NewReader(resp.Body)
	var (
		event   string
		payload string
		pinged  bool
	)
	for payload == "" || !pinged {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)

		switch {
		case line == ": ping":
			pinged = true
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			payload = strings.TrimPrefix(line, "data: ")
		}
	}

	assert.Equal(t, "snapshot", event)
	var snap domain.TreasurySnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))
	assert.True(t, treasury.snap.TotalUSD.Equal(snap.TotalUSD))
}
