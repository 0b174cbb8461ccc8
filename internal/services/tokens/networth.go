package tokens

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// NetWorthSource reports an account's total USD value.
type NetWorthSource interface {
	Name() string
	NetWorth(ctx context.Context, owner string) (decimal.Decimal, error)
}

type solanaFMSchema int

const (
	solanaFMSchemaUnknown solanaFMSchema = iota
	solanaFMSchemaResultList
	solanaFMSchemaNetWorth
	solanaFMSchemaDataTokens
	solanaFMSchemaTotalValue
)

type solanaFMToken struct {
	USDValue *decimal.Decimal `json:"usdValue"`
	Value    *decimal.Decimal `json:"value"`
}

func (t solanaFMToken) usd() decimal.Decimal {
	switch {
	case t.USDValue != nil:
		return *t.USDValue
	case t.Value != nil:
		return *t.Value
	default:
		return decimal.Zero
	}
}

type solanaFMResponse struct {
	Result *[]solanaFMToken `json:"result"`
	Data   *struct {
		NetWorth *decimal.Decimal `json:"netWorth"`
		Tokens   *[]solanaFMToken `json:"tokens"`
	} `json:"data"`
	TotalValue *decimal.Decimal `json:"totalValue"`
}

func (r solanaFMResponse) classify() solanaFMSchema {
	switch {
	case r.Result != nil:
		return solanaFMSchemaResultList
	case r.Data != nil && r.Data.NetWorth != nil:
		return solanaFMSchemaNetWorth
	case r.Data != nil && r.Data.Tokens != nil:
		return solanaFMSchemaDataTokens
	case r.TotalValue != nil:
		return solanaFMSchemaTotalValue
	default:
		return solanaFMSchemaUnknown
	}
}

// SolanaFM reads the account token list of SolanaFM and sums it into a net worth.
type SolanaFM struct {
	http *clients.HTTPClient
}

func NewSolanaFM(http *clients.HTTPClient) *SolanaFM {
	return &SolanaFM{http: http}
}

func (s *SolanaFM) Name() string { return s.http.Source() }

func (s *SolanaFM) NetWorth(ctx context.Context, owner string) (decimal.Decimal, error) {
	var resp solanaFMResponse
	if err := s.http.GetJSON(ctx, "/accounts/"+owner+"/tokens", nil, &resp); err != nil {
		return decimal.Zero, domain.Unavailable(s.Name(), err)
	}

	var (
		total     decimal.Decimal
		hasTokens bool
	)
	switch resp.classify() {
	case solanaFMSchemaResultList:
		total, hasTokens = sumUSD(*resp.Result), len(*resp.Result) > 0
	case solanaFMSchemaNetWorth:
		total, hasTokens = *resp.Data.NetWorth, true
	case solanaFMSchemaDataTokens:
		total, hasTokens = sumUSD(*resp.Data.Tokens), len(*resp.Data.Tokens) > 0
	case solanaFMSchemaTotalValue:
		total, hasTokens = *resp.TotalValue, true
	default:
		return decimal.Zero, domain.Unavailable(s.Name(), errors.New("unrecognized net worth schema"))
	}

	if !hasTokens || !total.IsPositive() {
		return decimal.Zero, domain.Unavailable(s.Name(), errors.New("no positive net worth"))
	}

	return total, nil
}

func sumUSD(tokens []solanaFMToken) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tokens {
		total = total.Add(t.usd())
	}
	return total
}
