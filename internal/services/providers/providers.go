// Package providers implements single-source balance adapters for BTC, ETH and SOL.
//
// Every adapter answers with an amount in whole units of the asset or an error
// wrapping domain.ErrAdapterUnavailable. Adapters hold no mutable state and may be
// called concurrently.
package providers

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// Adapter fetches the balance of an address from a single external source.
type Adapter interface {
	Name() string
	FetchBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// ErrUnrecognizedSchema response decoded but matched none of the known shapes.
var ErrUnrecognizedSchema = errors.New("unrecognized response schema")

var (
	lamportsPerSOL = decimal.New(1, 9)
	satsPerBTC     = decimal.New(1, 8)
	weiPerETH      = decimal.New(1, 18)
)

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports decimal.Decimal) decimal.Decimal {
	return lamports.Div(lamportsPerSOL)
}

// SatsToBTC converts satoshis to BTC.
func SatsToBTC(sats decimal.Decimal) decimal.Decimal {
	return sats.Div(satsPerBTC)
}

// WeiToETH converts wei to ETH.
func WeiToETH(wei decimal.Decimal) decimal.Decimal {
	return wei.Div(weiPerETH)
}

type valueKind int

const (
	kindAbsent valueKind = iota
	kindNumber
	kindString
	kindInvalid
)

// flexNumber decodes a JSON value that upstreams send either as a number or as a
// numeric string, remembering which one it was.
type flexNumber struct {
	Value decimal.Decimal
	Kind  valueKind
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		n.Kind = kindAbsent
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			n.Kind = kindInvalid
			return nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			n.Kind = kindInvalid
			return nil
		}
		n.Value, n.Kind = v, kindString
		return nil
	}

	v, err := decimal.NewFromString(string(b))
	if err != nil {
		n.Kind = kindInvalid
		return nil
	}
	n.Value, n.Kind = v, kindNumber

	return nil
}

func (n flexNumber) ok() bool {
	return n.Kind == kindNumber || n.Kind == kindString
}

// sanitize rejects negative amounts.
func sanitize(source string, v decimal.Decimal) (decimal.Decimal, error) {
	if v.IsNegative() {
		return decimal.Zero, domain.Unavailable(source, errors.Errorf("negative balance %s", v))
	}
	return v, nil
}
