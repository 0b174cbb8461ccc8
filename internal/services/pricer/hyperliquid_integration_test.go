//go:build integration

package pricer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// TestHyperliquidPricer_GetPrice_Integration calls the real Hyperliquid Info API.
// To run this test, use: go test -tags=integration -v ./...
func TestHyperliquidPricer_GetPrice_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	pricer := NewHyperliquidPricer(clients.NewHyperliquidInfo(context.Background(), ""))

	for _, asset := range domain.MajorAssets {
		t.Run("returns price for "+asset.String(), func(t *testing.T) {
			price, err := pricer.GetPrice(context.Background(), asset)
			require.NoError(t, err)
			assert.True(t, price.GreaterThan(decimal.Zero), "Expected price > 0 for %s, got %s", asset, price)
		})
	}
}
