package providers

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Esplora reads chain_stats from an esplora compatible API (Blockstream, mempool.space).
type Esplora struct {
	http *clients.HTTPClient
}

func NewEsplora(http *clients.HTTPClient) *Esplora {
	return &Esplora{http: http}
}

func (a *Esplora) Name() string { return a.http.Source() }

func (a *Esplora) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		ChainStats *struct {
			FundedTxoSum *decimal.Decimal `json:"funded_txo_sum"`
			SpentTxoSum  *decimal.Decimal `json:"spent_txo_sum"`
		} `json:"chain_stats"`
	}

	if err := a.http.GetJSON(ctx, "/address/"+address, nil, &resp); err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	stats := resp.ChainStats
	if stats == nil || stats.FundedTxoSum == nil || stats.SpentTxoSum == nil {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), SatsToBTC(stats.FundedTxoSum.Sub(*stats.SpentTxoSum)))
}

// BlockchainInfo reads final_balance from blockchain.info.
type BlockchainInfo struct {
	http *clients.HTTPClient
}

func NewBlockchainInfo(http *clients.HTTPClient) *BlockchainInfo {
	return &BlockchainInfo{http: http}
}

func (a *BlockchainInfo) Name() string { return a.http.Source() }

func (a *BlockchainInfo) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp map[string]struct {
		FinalBalance *decimal.Decimal `json:"final_balance"`
	}

	err := a.http.GetJSON(ctx, "/balance", map[string]string{"active": address, "cors": "true"}, &resp)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	entry, ok := resp[address]
	if !ok || entry.FinalBalance == nil {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), SatsToBTC(*entry.FinalBalance))
}

// MultiAddress sums one source's balances over several addresses of the same asset.
// The address argument of FetchBalance is ignored. If any address fails the whole
// answer is unavailable: a partial sum would look like a valid low balance.
type MultiAddress struct {
	inner     Adapter
	addresses []string
}

func NewMultiAddress(inner Adapter, addresses []string) *MultiAddress {
	return &MultiAddress{inner: inner, addresses: append([]string(nil), addresses...)}
}

func (a *MultiAddress) Name() string { return a.inner.Name() }

// Addresses returns the summed addresses joined for logging.
func (a *MultiAddress) Addresses() string {
	return strings.Join(a.addresses, ",")
}

func (a *MultiAddress) FetchBalance(ctx context.Context, _ string) (decimal.Decimal, error) {
	if len(a.addresses) == 0 {
		return decimal.Zero, domain.Unavailable(a.Name(), errors.New("no addresses configured"))
	}

	amounts := make([]decimal.Decimal, len(a.addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range a.addresses {
		g.Go(func() error {
			v, err := a.inner.FetchBalance(gctx, addr)
			if err != nil {
				return errors.Wrapf(err, "address %s", addr)
			}
			amounts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	total := decimal.Zero
	for _, v := range amounts {
		total = total.Add(v)
	}

	return total, nil
}
