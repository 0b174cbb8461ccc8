package providers

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

type solRPCSchema int

const (
	solRPCSchemaUnknown solRPCSchema = iota
	solRPCSchemaValueNumber
	solRPCSchemaValueString
	solRPCSchemaBareNumber
)

// SolanaRPC reads lamports through getBalance on one RPC endpoint.
type SolanaRPC struct {
	rpc *clients.RPCClient
}

// NewSolanaRPC creates an adapter for the RPC client.
func NewSolanaRPC(rpc *clients.RPCClient) *SolanaRPC {
	return &SolanaRPC{rpc: rpc}
}

func (a *SolanaRPC) Name() string { return a.rpc.Source() }

func (a *SolanaRPC) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	raw, err := a.rpc.Call(ctx, "getBalance", address)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	lamports, schema := parseSolanaGetBalance(raw)
	if schema == solRPCSchemaUnknown {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), LamportsToSOL(lamports))
}

func parseSolanaGetBalance(raw json.RawMessage) (decimal.Decimal, solRPCSchema) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.Zero, solRPCSchemaUnknown
	}

	if raw[0] == '{' {
		var wrapped struct {
			Value flexNumber `json:"value"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return decimal.Zero, solRPCSchemaUnknown
		}
		switch wrapped.Value.Kind {
		case kindNumber:
			return wrapped.Value.Value, solRPCSchemaValueNumber
		case kindString:
			return wrapped.Value.Value, solRPCSchemaValueString
		default:
			return decimal.Zero, solRPCSchemaUnknown
		}
	}

	var bare flexNumber
	if err := json.Unmarshal(raw, &bare); err != nil || bare.Kind != kindNumber {
		return decimal.Zero, solRPCSchemaUnknown
	}

	return bare.Value, solRPCSchemaBareNumber
}

// Shyft reads the SOL balance from the Shyft wallet API.
type Shyft struct {
	http *clients.HTTPClient
}

// NewShyft creates the adapter. The client must carry the x-api-key header.
func NewShyft(http *clients.HTTPClient) *Shyft {
	return &Shyft{http: http}
}

func (a *Shyft) Name() string { return a.http.Source() }

func (a *Shyft) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Success bool `json:"success"`
		Result  *struct {
			Balance flexNumber `json:"balance"`
		} `json:"result"`
	}

	err := a.http.GetJSON(ctx, "/wallet/balance", map[string]string{
		"network": "mainnet-beta",
		"wallet":  address,
	}, &resp)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	if !resp.Success || resp.Result == nil || !resp.Result.Balance.ok() {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), resp.Result.Balance.Value)
}

type solscanSchema int

const (
	solscanSchemaUnknown solscanSchema = iota
	solscanSchemaLamports
	solscanSchemaNestedLamports
)

// Solscan reads lamports from the Solscan public account endpoint.
type Solscan struct {
	http *clients.HTTPClient
}

func NewSolscan(http *clients.HTTPClient) *Solscan {
	return &Solscan{http: http}
}

func (a *Solscan) Name() string { return a.http.Source() }

func (a *Solscan) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp solscanAccount
	if err := a.http.GetJSON(ctx, "/account/"+address, nil, &resp); err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	lamports, schema := resp.classify()
	if schema == solscanSchemaUnknown {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), LamportsToSOL(lamports))
}

type solscanAccount struct {
	Lamports flexNumber `json:"lamports"`
	Data     *struct {
		Lamports flexNumber `json:"lamports"`
	} `json:"data"`
}

func (r solscanAccount) classify() (decimal.Decimal, solscanSchema) {
	switch {
	case r.Lamports.ok():
		return r.Lamports.Value, solscanSchemaLamports
	case r.Data != nil && r.Data.Lamports.Kind == kindNumber:
		return r.Data.Lamports.Value, solscanSchemaNestedLamports
	default:
		return decimal.Zero, solscanSchemaUnknown
	}
}

type solflareSchema int

const (
	solflareSchemaUnknown solflareSchema = iota
	solflareSchemaLamports
	solflareSchemaBalanceSOL
)

// Solflare reads the account from the Solflare API, either lamports or SOL.
type Solflare struct {
	http *clients.HTTPClient
}

func NewSolflare(http *clients.HTTPClient) *Solflare {
	return &Solflare{http: http}
}

func (a *Solflare) Name() string { return a.http.Source() }

func (a *Solflare) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Lamports flexNumber `json:"lamports"`
		Balance  flexNumber `json:"balance"`
	}
	if err := a.http.GetJSON(ctx, "/v0/account/"+address, nil, &resp); err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	schema := solflareSchemaUnknown
	switch {
	case resp.Lamports.ok():
		schema = solflareSchemaLamports
	case resp.Balance.ok():
		schema = solflareSchemaBalanceSOL
	}

	switch schema {
	case solflareSchemaLamports:
		return sanitize(a.Name(), LamportsToSOL(resp.Lamports.Value))
	case solflareSchemaBalanceSOL:
		return sanitize(a.Name(), resp.Balance.Value)
	default:
		return decimal.Zero, domain.Unavailable(a.Name(), errors.Wrap(ErrUnrecognizedSchema, "solflare account"))
	}
}
