package clients

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// DialEthereum connects to an Ethereum JSON-RPC endpoint.
func DialEthereum(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "dial ethereum rpc %s", endpoint)
	}

	return client, nil
}
