package providers

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// BalanceReader is satisfied by *ethclient.Client.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// EthereumRPC reads eth_getBalance at the latest block.
type EthereumRPC struct {
	name   string
	client BalanceReader
}

func NewEthereumRPC(name string, client BalanceReader) *EthereumRPC {
	return &EthereumRPC{name: name, client: client}
}

func (a *EthereumRPC) Name() string { return a.name }

func (a *EthereumRPC) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, domain.Unavailable(a.name, errors.Errorf("invalid address %q", address))
	}

	wei, err := a.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.name, err)
	}
	if wei == nil {
		return decimal.Zero, domain.Unavailable(a.name, ErrUnrecognizedSchema)
	}

	return sanitize(a.name, WeiToETH(decimal.NewFromBigInt(wei, 0)))
}

// Etherscan reads the account balance module.
type Etherscan struct {
	http   *clients.HTTPClient
	apiKey string
}

func NewEtherscan(http *clients.HTTPClient, apiKey string) *Etherscan {
	return &Etherscan{http: http, apiKey: apiKey}
}

func (a *Etherscan) Name() string { return a.http.Source() }

func (a *Etherscan) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Status  string     `json:"status"`
		Message string     `json:"message"`
		Result  flexNumber `json:"result"`
	}

	err := a.http.GetJSON(ctx, "/api", map[string]string{
		"module":  "account",
		"action":  "balance",
		"address": address,
		"tag":     "latest",
		"apikey":  a.apiKey,
	}, &resp)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	if resp.Status != "1" {
		return decimal.Zero, domain.Unavailable(a.Name(), errors.Errorf("status %q: %s", resp.Status, resp.Message))
	}
	if !resp.Result.ok() {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), WeiToETH(resp.Result.Value))
}

// Blockchair reads the address dashboard, balance in wei.
type Blockchair struct {
	http *clients.HTTPClient
}

func NewBlockchair(http *clients.HTTPClient) *Blockchair {
	return &Blockchair{http: http}
}

func (a *Blockchair) Name() string { return a.http.Source() }

func (a *Blockchair) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Data map[string]struct {
			Address struct {
				Balance flexNumber `json:"balance"`
			} `json:"address"`
		} `json:"data"`
	}

	if err := a.http.GetJSON(ctx, "/dashboards/address/"+address, nil, &resp); err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	for key, entry := range resp.Data {
		if !strings.EqualFold(key, address) {
			continue
		}
		switch entry.Address.Balance.Kind {
		case kindNumber, kindString:
			return sanitize(a.Name(), WeiToETH(entry.Address.Balance.Value))
		case kindAbsent:
			return decimal.Zero, nil
		}
	}

	return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
}

// Ethplorer reads getAddressInfo, balance in ETH.
type Ethplorer struct {
	http   *clients.HTTPClient
	apiKey string
}

func NewEthplorer(http *clients.HTTPClient, apiKey string) *Ethplorer {
	if apiKey == "" {
		apiKey = "freekey"
	}
	return &Ethplorer{http: http, apiKey: apiKey}
}

func (a *Ethplorer) Name() string { return a.http.Source() }

func (a *Ethplorer) FetchBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		ETH *struct {
			Balance flexNumber `json:"balance"`
		} `json:"ETH"`
	}

	err := a.http.GetJSON(ctx, "/getAddressInfo/"+address, map[string]string{"apiKey": a.apiKey}, &resp)
	if err != nil {
		return decimal.Zero, domain.Unavailable(a.Name(), err)
	}

	if resp.ETH == nil || resp.ETH.Balance.Kind == kindInvalid {
		return decimal.Zero, domain.Unavailable(a.Name(), ErrUnrecognizedSchema)
	}

	return sanitize(a.Name(), resp.ETH.Balance.Value)
}
