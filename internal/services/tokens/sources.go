package tokens

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// Listing is what a holdings source reports for an owner.
type Listing struct {
	Tokens []domain.TokenHolding
	// NativeSOL is the native balance in SOL when the source reports it.
	NativeSOL decimal.Decimal
}

// Source lists token holdings of an owner.
type Source interface {
	Name() string
	ListHoldings(ctx context.Context, owner string) (Listing, error)
}

// ShyftIndexer lists holdings through Shyft wallet/all_tokens.
type ShyftIndexer struct {
	http *clients.HTTPClient
}

func NewShyftIndexer(http *clients.HTTPClient) *ShyftIndexer {
	return &ShyftIndexer{http: http}
}

func (s *ShyftIndexer) Name() string { return s.http.Source() }

type shyftToken struct {
	Address  string          `json:"address"`
	Mint     string          `json:"mint"`
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Logo     string          `json:"logo"`
	Decimals json.RawMessage `json:"decimals"`
	Balance  json.RawMessage `json:"balance"`
	Amount   json.RawMessage `json:"amount"`
	Value    json.RawMessage `json:"value"`
	Info     *struct {
		Name     string          `json:"name"`
		Symbol   string          `json:"symbol"`
		Image    string          `json:"image"`
		Decimals json.RawMessage `json:"decimals"`
	} `json:"info"`
}

func (s *ShyftIndexer) ListHoldings(ctx context.Context, owner string) (Listing, error) {
	var resp struct {
		Success bool         `json:"success"`
		Result  []shyftToken `json:"result"`
	}

	err := s.http.GetJSON(ctx, "/wallet/all_tokens", map[string]string{
		"network": "mainnet-beta",
		"wallet":  owner,
	}, &resp)
	if err != nil {
		return Listing{}, domain.Unavailable(s.Name(), err)
	}
	if !resp.Success {
		return Listing{}, domain.Unavailable(s.Name(), errors.New("unsuccessful response"))
	}

	var listing Listing
	for _, t := range resp.Result {
		amount, ok := firstAmount(t.Balance, t.Amount, t.Value)
		if !ok || !amount.IsPositive() {
			continue
		}

		mint := t.Mint
		if mint == "" {
			mint = t.Address
		}
		symbol, name, logo := t.Symbol, t.Name, t.Logo
		decimals, hasDecimals := parseDecimals(t.Decimals)
		if t.Info != nil {
			symbol = firstNonEmpty(symbol, t.Info.Symbol)
			name = firstNonEmpty(name, t.Info.Name)
			logo = firstNonEmpty(logo, t.Info.Image)
			if !hasDecimals {
				decimals, _ = parseDecimals(t.Info.Decimals)
			}
		}

		if strings.EqualFold(symbol, "SOL") || mint == domain.NativeSOLMint {
			listing.NativeSOL = amount
			continue
		}

		h := domain.NewTokenHoldingFromUI(mint, firstNonEmpty(symbol, "Unknown"), firstNonEmpty(name, symbol, "Unknown Token"), amount, decimals)
		h.LogoURI = logo
		listing.Tokens = append(listing.Tokens, h)
	}

	return listing, nil
}

// RPCScan lists SPL token accounts with getTokenAccountsByOwner on a Solana RPC endpoint.
type RPCScan struct {
	rpc *clients.RPCClient
}

func NewRPCScan(rpc *clients.RPCClient) *RPCScan {
	return &RPCScan{rpc: rpc}
}

func (s *RPCScan) Name() string { return s.rpc.Source() + "/token-accounts" }

func (s *RPCScan) ListHoldings(ctx context.Context, owner string) (Listing, error) {
	raw, err := s.rpc.Call(ctx, "getTokenAccountsByOwner",
		owner,
		map[string]string{"programId": SPLTokenProgram},
		map[string]string{"encoding": "jsonParsed"},
	)
	if err != nil {
		return Listing{}, domain.Unavailable(s.Name(), err)
	}

	var accounts struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals uint8  `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return Listing{}, domain.Unavailable(s.Name(), errors.Wrap(err, "decode token accounts"))
	}

	var listing Listing
	for _, acc := range accounts.Value {
		info := acc.Account.Data.Parsed.Info
		amount, err := decimal.NewFromString(info.TokenAmount.Amount)
		if err != nil || !amount.IsPositive() || info.Mint == "" {
			continue
		}

		symbol, name := knownMint(info.Mint)
		listing.Tokens = append(listing.Tokens, domain.TokenHolding{
			Mint:      info.Mint,
			Symbol:    symbol,
			Name:      name,
			RawAmount: amount,
			Decimals:  info.TokenAmount.Decimals,
		})
	}

	if lamports, err := s.nativeLamports(ctx, owner); err == nil {
		listing.NativeSOL = lamports.Shift(-9)
	}

	return listing, nil
}

func (s *RPCScan) nativeLamports(ctx context.Context, owner string) (decimal.Decimal, error) {
	raw, err := s.rpc.Call(ctx, "getBalance", owner)
	if err != nil {
		return decimal.Zero, err
	}

	var res struct {
		Value decimal.Decimal `json:"value"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return decimal.Zero, err
	}

	return res.Value, nil
}

func firstAmount(values ...json.RawMessage) (decimal.Decimal, bool) {
	for _, raw := range values {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var d decimal.Decimal
		if err := d.UnmarshalJSON(raw); err != nil {
			continue
		}
		return d, true
	}

	return decimal.Zero, false
}

// parseDecimals reports false when the value is absent, null or not a small integer.
func parseDecimals(raw json.RawMessage) (uint8, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, false
	}

	return uint8(n), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
