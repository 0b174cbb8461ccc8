package app

import (
	"context"
	"net/url"
	"strings"

	"github.com/vadiminshakov/treasury/config"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/services/pricer"
	"github.com/vadiminshakov/treasury/internal/services/providers"
	"github.com/vadiminshakov/treasury/internal/services/tokens"
	"go.uber.org/zap"
)

const (
	alchemyETHURL = "https://eth-mainnet.g.alchemy.com/v2/"
	heliusURL     = "https://mainnet.helius-rpc.com/?api-key="
	ethplorerKey  = "freekey"
)

// sourceFactory builds upstream clients sharing timeout and rate limit settings.
type sourceFactory struct {
	cfg    config.Config
	logger *zap.Logger
}

func (f sourceFactory) http(source, baseURL string, opts ...clients.HTTPOption) *clients.HTTPClient {
	return clients.NewHTTPClient(source, baseURL, append(f.common(), opts...)...)
}

func (f sourceFactory) rpc(endpoint string) *clients.RPCClient {
	return clients.NewRPCClient(sourceName(endpoint), endpoint, f.common()...)
}

func (f sourceFactory) common() []clients.HTTPOption {
	opts := []clients.HTTPOption{clients.WithTimeout(f.cfg.Retry.AttemptTimeout)}
	if f.cfg.RateLimitRPS > 0 {
		opts = append(opts, clients.WithRateLimit(f.cfg.RateLimitRPS, 1))
	}
	return opts
}

func (f sourceFactory) btcAdapters() []providers.Adapter {
	var out []providers.Adapter
	for _, endpoint := range f.cfg.Endpoints.Esplora {
		out = append(out, providers.NewMultiAddress(
			providers.NewEsplora(f.http(sourceName(endpoint), endpoint)), f.cfg.BTCAddresses))
	}
	if f.cfg.Endpoints.BlockchainInfo != "" {
		out = append(out, providers.NewMultiAddress(
			providers.NewBlockchainInfo(f.http("blockchain.info", f.cfg.Endpoints.BlockchainInfo)), f.cfg.BTCAddresses))
	}

	return out
}

func (f sourceFactory) ethAdapters(ctx context.Context) []providers.Adapter {
	endpoints := f.cfg.Endpoints.EthereumRPC
	if f.cfg.Keys.Alchemy != "" {
		endpoints = append([]string{alchemyETHURL + f.cfg.Keys.Alchemy}, endpoints...)
	}

	var out []providers.Adapter
	for _, endpoint := range endpoints {
		client, err := clients.DialEthereum(ctx, endpoint)
		if err != nil {
			f.logger.Warn("ethereum rpc skipped", zap.String("source", sourceName(endpoint)), zap.Error(err))
			continue
		}
		out = append(out, providers.NewEthereumRPC(sourceName(endpoint), client))
	}

	e := f.cfg.Endpoints
	if e.Etherscan != "" {
		out = append(out, providers.NewEtherscan(f.http("etherscan", e.Etherscan), f.cfg.Keys.Etherscan))
	}
	if e.Blockchair != "" {
		out = append(out, providers.NewBlockchair(f.http("blockchair", e.Blockchair)))
	}
	if e.Ethplorer != "" {
		key := f.cfg.Keys.Ethplorer
		if key == "" {
			key = ethplorerKey
		}
		out = append(out, providers.NewEthplorer(f.http("ethplorer", e.Ethplorer), key))
	}

	return out
}

func (f sourceFactory) solanaRPCs() []*clients.RPCClient {
	endpoints := f.cfg.Endpoints.SolanaRPC
	if f.cfg.Keys.Helius != "" {
		endpoints = append([]string{heliusURL + f.cfg.Keys.Helius}, endpoints...)
	}

	out := make([]*clients.RPCClient, 0, len(endpoints))
	for _, endpoint := range endpoints {
		out = append(out, f.rpc(endpoint))
	}
	return out
}

func (f sourceFactory) solAdapters(rpcs []*clients.RPCClient) []providers.Adapter {
	var out []providers.Adapter
	for _, rpc := range rpcs {
		out = append(out, providers.NewSolanaRPC(rpc))
	}

	e := f.cfg.Endpoints
	if e.Shyft != "" && f.cfg.Keys.Shyft != "" {
		out = append(out, providers.NewShyft(f.http("shyft", e.Shyft, clients.WithHeader("x-api-key", f.cfg.Keys.Shyft))))
	}
	if e.Solscan != "" {
		out = append(out, providers.NewSolscan(f.http("solscan", e.Solscan)))
	}
	if e.Solflare != "" {
		out = append(out, providers.NewSolflare(f.http("solflare", e.Solflare)))
	}

	return out
}

func (f sourceFactory) tokenEnumerator(rpcs []*clients.RPCClient, prices tokens.TokenPricer) *tokens.Enumerator {
	var sources []tokens.Source
	e := f.cfg.Endpoints
	if e.Shyft != "" && f.cfg.Keys.Shyft != "" {
		sources = append(sources, tokens.NewShyftIndexer(f.http("shyft-tokens", e.Shyft, clients.WithHeader("x-api-key", f.cfg.Keys.Shyft))))
	}
	for _, rpc := range rpcs {
		sources = append(sources, tokens.NewRPCScan(rpc))
	}

	opts := []tokens.Option{
		tokens.WithMergedSources(f.cfg.MergeTokenSources),
		tokens.WithLogger(f.logger),
	}
	if f.cfg.NetWorth && e.SolanaFM != "" {
		opts = append(opts, tokens.WithNetWorth(tokens.NewSolanaFM(f.http("solanafm", e.SolanaFM))))
	}

	return tokens.NewEnumerator(sources, prices, opts...)
}

func (f sourceFactory) oracle(ctx context.Context) *pricer.Oracle {
	gecko := pricer.NewCoinGecko(f.http("coingecko", f.cfg.Endpoints.CoinGecko,
		clients.WithHeader("x-cg-demo-api-key", f.cfg.Keys.CoinGecko)))

	var exchanges []pricer.Pricer
	if f.cfg.ExchangeFallback {
		exchanges = append(exchanges,
			pricer.NewBinancePricer(clients.NewBinanceClient(f.cfg.Keys.BinanceKey, f.cfg.Keys.BinanceSecret)),
			pricer.NewBybitPricer(clients.NewBybitClient(f.cfg.Keys.BybitKey, f.cfg.Keys.BybitSecret)),
			pricer.NewHyperliquidPricer(clients.NewHyperliquidInfo(ctx, f.cfg.Endpoints.Hyperliquid)),
		)
	}

	return pricer.NewOracle(gecko, exchanges, f.logger)
}

// sourceName derives a metrics label from an endpoint without leaking query keys.
func sourceName(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}

	host := u.Hostname()
	// alchemy keeps the api key in the path
	if strings.Contains(host, "alchemy.com") {
		return host
	}
	return host + strings.TrimSuffix(u.Path, "/")
}
