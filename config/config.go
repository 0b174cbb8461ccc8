// Package config loads treasury settings from a YAML file and the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// Default treasury addresses.
var (
	DefaultBTCAddresses = []string{
		"1Kr3GkJnBZeeQZZoiYjHoxhZjDsSby9d4p",
		"bc1pl6sq6srs5vuczd7ard896cc57gg4h3mdnvjsg4zp5zs2rawqmtgsp4hh08",
		"bc1qu7suxfua5x46e59e7a56vd8wuj3a8qj06qr42j",
	}
	DefaultETHAddress = "0x8262ab131e3f52315d700308152e166909ecfa47"
	DefaultSOLAddress = "2n8etcRuK49GUMXWi2QRtQ8YwS6nTDEUjfX7LcvKFyiV"
)

// Cache backends.
const (
	CacheWAL    = "wal"
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	BTCAddresses []string
	ETHAddress   string
	SOLAddress   string

	Endpoints Endpoints
	Keys      APIKeys

	Thresholds Thresholds
	Retry      Retry

	RefreshInterval time.Duration
	Staleness       time.Duration
	CacheRetention  time.Duration
	PriceTimeout    time.Duration
	BTCTimeout      time.Duration
	ETHTimeout      time.Duration
	SOLTimeout      time.Duration
	ProxyTimeout    time.Duration

	// RateLimitRPS per upstream provider; zero disables limiting.
	RateLimitRPS float64

	Cache Cache
	Web   Web

	ProxyURL string
	// MergeTokenSources merges all token lists instead of taking the first non-empty one.
	MergeTokenSources bool
	NetWorth          bool
	ExchangeFallback  bool
}

type Endpoints struct {
	Esplora        []string
	BlockchainInfo string
	EthereumRPC    []string
	Etherscan      string
	Blockchair     string
	Ethplorer      string
	SolanaRPC      []string
	Solscan        string
	Solflare       string
	Shyft          string
	SolanaFM       string
	CoinGecko      string
	Hyperliquid    string
}

// APIKeys are read from the environment only.
type APIKeys struct {
	Shyft         string
	Helius        string
	Etherscan     string
	Alchemy       string
	CoinGecko     string
	Ethplorer     string
	BinanceKey    string
	BinanceSecret string
	BybitKey      string
	BybitSecret   string
}

type Thresholds struct {
	ZeroQuorum        int
	StatsMinSamples   int
	OutlierMinSamples int
	OutlierSigma      float64
	MinStdDev         float64
}

type Retry struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

type Cache struct {
	Backend       string
	Dir           string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type Web struct {
	Enabled      bool
	Addr         string
	TLSDomains   []string
	CertCacheDir string
	AllowOrigins []string
}

type ConfigTmp struct {
	Addresses struct {
		BTC []string `yaml:"btc,omitempty"`
		ETH string   `yaml:"eth,omitempty"`
		SOL string   `yaml:"sol,omitempty"`
	} `yaml:"addresses"`

	Endpoints struct {
		Esplora        []string `yaml:"esplora,omitempty"`
		BlockchainInfo string   `yaml:"blockchain_info,omitempty"`
		EthereumRPC    []string `yaml:"ethereum_rpc,omitempty"`
		Etherscan      string   `yaml:"etherscan,omitempty"`
		Blockchair     string   `yaml:"blockchair,omitempty"`
		Ethplorer      string   `yaml:"ethplorer,omitempty"`
		SolanaRPC      []string `yaml:"solana_rpc,omitempty"`
		Solscan        string   `yaml:"solscan,omitempty"`
		Solflare       string   `yaml:"solflare,omitempty"`
		Shyft          string   `yaml:"shyft,omitempty"`
		SolanaFM       string   `yaml:"solanafm,omitempty"`
		CoinGecko      string   `yaml:"coingecko,omitempty"`
		Hyperliquid    string   `yaml:"hyperliquid,omitempty"`
	} `yaml:"endpoints"`

	Thresholds struct {
		ZeroQuorumStr        string `yaml:"zero_quorum,omitempty"`
		StatsMinSamplesStr   string `yaml:"stats_min_samples,omitempty"`
		OutlierMinSamplesStr string `yaml:"outlier_min_samples,omitempty"`
		OutlierSigmaStr      string `yaml:"outlier_sigma,omitempty"`
		MinStdDevStr         string `yaml:"min_std_dev,omitempty"`
	} `yaml:"thresholds"`

	Retry struct {
		MaxAttemptsStr string        `yaml:"max_attempts,omitempty"`
		BaseDelay      time.Duration `yaml:"base_delay,omitempty"`
		AttemptTimeout time.Duration `yaml:"attempt_timeout,omitempty"`
	} `yaml:"retry"`

	Intervals struct {
		Refresh        time.Duration `yaml:"refresh,omitempty"`
		Staleness      time.Duration `yaml:"staleness,omitempty"`
		CacheRetention time.Duration `yaml:"cache_retention,omitempty"`
		PriceTimeout   time.Duration `yaml:"price_timeout,omitempty"`
		BTCTimeout     time.Duration `yaml:"btc_timeout,omitempty"`
		ETHTimeout     time.Duration `yaml:"eth_timeout,omitempty"`
		SOLTimeout     time.Duration `yaml:"sol_timeout,omitempty"`
		ProxyTimeout   time.Duration `yaml:"proxy_timeout,omitempty"`
	} `yaml:"intervals"`

	RateLimitRPSStr string `yaml:"rate_limit_rps,omitempty"`

	Cache struct {
		Backend       string `yaml:"backend,omitempty"`
		Dir           string `yaml:"dir,omitempty"`
		Path          string `yaml:"path,omitempty"`
		RedisAddr     string `yaml:"redis_addr,omitempty"`
		RedisPassword string `yaml:"redis_password,omitempty"`
		RedisDBStr    string `yaml:"redis_db,omitempty"`
	} `yaml:"cache"`

	Web struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Addr         string   `yaml:"addr,omitempty"`
		TLSDomains   []string `yaml:"tls_domains,omitempty"`
		CertCacheDir string   `yaml:"cert_cache_dir,omitempty"`
		AllowOrigins []string `yaml:"allow_origins,omitempty"`
	} `yaml:"web"`

	Proxy struct {
		URL string `yaml:"url,omitempty"`
	} `yaml:"proxy"`

	Tokens struct {
		MergeSources bool  `yaml:"merge_sources,omitempty"`
		NetWorth     *bool `yaml:"net_worth,omitempty"`
	} `yaml:"tokens"`

	Price struct {
		ExchangeFallback bool `yaml:"exchange_fallback,omitempty"`
	} `yaml:"price"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		BTCAddresses: append([]string(nil), DefaultBTCAddresses...),
		ETHAddress:   DefaultETHAddress,
		SOLAddress:   DefaultSOLAddress,
		Endpoints: Endpoints{
			Esplora:        []string{"https://blockstream.info/api", "https://mempool.space/api"},
			BlockchainInfo: "https://blockchain.info",
			EthereumRPC:    []string{"https://cloudflare-eth.com", "https://rpc.ankr.com/eth"},
			Etherscan:      "https://api.etherscan.io",
			Blockchair:     "https://api.blockchair.com/ethereum",
			Ethplorer:      "https://api.ethplorer.io",
			SolanaRPC: []string{
				"https://api.mainnet-beta.solana.com",
				"https://solana-mainnet.rpc.extrnode.com",
				"https://rpc.ankr.com/solana",
			},
			Solscan:     "https://public-api.solscan.io",
			Solflare:    "https://api.solflare.com",
			Shyft:       "https://api.shyft.to/sol/v1",
			SolanaFM:    "https://api.solana.fm/v0",
			CoinGecko:   "https://api.coingecko.com/api/v3",
			Hyperliquid: "https://api.hyperliquid.xyz",
		},
		Thresholds: Thresholds{
			ZeroQuorum:        5,
			StatsMinSamples:   3,
			OutlierMinSamples: 5,
			OutlierSigma:      2,
			MinStdDev:         1e-4,
		},
		Retry: Retry{
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			AttemptTimeout: 15 * time.Second,
		},
		RefreshInterval: 5 * time.Minute,
		Staleness:       5 * time.Minute,
		CacheRetention:  24 * time.Hour,
		PriceTimeout:    30 * time.Second,
		BTCTimeout:      45 * time.Second,
		ETHTimeout:      45 * time.Second,
		SOLTimeout:      60 * time.Second,
		ProxyTimeout:    8 * time.Second,
		RateLimitRPS:    5,
		Cache: Cache{
			Backend: CacheWAL,
			Dir:     "./wal/treasury",
			Path:    "./wal/treasury_cache.json",
		},
		Web: Web{
			Enabled:      true,
			Addr:         ":8080",
			CertCacheDir: "cert-cache",
		},
		NetWorth: true,
	}
}

// Get reads --config (defaults when absent), then .env and the environment.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	flag.Parse()

	return Resolve(*path)
}

// Resolve loads path (defaults when empty), applies .env and the environment
// and validates the result.
func Resolve(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if len(c.Addresses.BTC) > 0 {
		cfg.BTCAddresses = c.Addresses.BTC
	}
	setString(&cfg.ETHAddress, c.Addresses.ETH)
	setString(&cfg.SOLAddress, c.Addresses.SOL)

	e := c.Endpoints
	setList(&cfg.Endpoints.Esplora, e.Esplora)
	setString(&cfg.Endpoints.BlockchainInfo, e.BlockchainInfo)
	setList(&cfg.Endpoints.EthereumRPC, e.EthereumRPC)
	setString(&cfg.Endpoints.Etherscan, e.Etherscan)
	setString(&cfg.Endpoints.Blockchair, e.Blockchair)
	setString(&cfg.Endpoints.Ethplorer, e.Ethplorer)
	setList(&cfg.Endpoints.SolanaRPC, e.SolanaRPC)
	setString(&cfg.Endpoints.Solscan, e.Solscan)
	setString(&cfg.Endpoints.Solflare, e.Solflare)
	setString(&cfg.Endpoints.Shyft, e.Shyft)
	setString(&cfg.Endpoints.SolanaFM, e.SolanaFM)
	setString(&cfg.Endpoints.CoinGecko, e.CoinGecko)
	setString(&cfg.Endpoints.Hyperliquid, e.Hyperliquid)

	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"zero_quorum", c.Thresholds.ZeroQuorumStr, &cfg.Thresholds.ZeroQuorum},
		{"stats_min_samples", c.Thresholds.StatsMinSamplesStr, &cfg.Thresholds.StatsMinSamples},
		{"outlier_min_samples", c.Thresholds.OutlierMinSamplesStr, &cfg.Thresholds.OutlierMinSamples},
		{"max_attempts", c.Retry.MaxAttemptsStr, &cfg.Retry.MaxAttempts},
		{"redis_db", c.Cache.RedisDBStr, &cfg.Cache.RedisDB},
	}
	for _, p := range ints {
		if p.raw == "" {
			continue
		}
		v, err := strconv.Atoi(p.raw)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a non-negative integer): %s", p.name, p.raw)
		}
		*p.dst = v
	}

	floats := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"outlier_sigma", c.Thresholds.OutlierSigmaStr, &cfg.Thresholds.OutlierSigma},
		{"min_std_dev", c.Thresholds.MinStdDevStr, &cfg.Thresholds.MinStdDev},
		{"rate_limit_rps", c.RateLimitRPSStr, &cfg.RateLimitRPS},
	}
	for _, p := range floats {
		if p.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(p.raw, 64)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a non-negative decimal): %s", p.name, p.raw)
		}
		*p.dst = v
	}

	setDuration(&cfg.Retry.BaseDelay, c.Retry.BaseDelay)
	setDuration(&cfg.Retry.AttemptTimeout, c.Retry.AttemptTimeout)
	setDuration(&cfg.RefreshInterval, c.Intervals.Refresh)
	setDuration(&cfg.Staleness, c.Intervals.Staleness)
	setDuration(&cfg.CacheRetention, c.Intervals.CacheRetention)
	setDuration(&cfg.PriceTimeout, c.Intervals.PriceTimeout)
	setDuration(&cfg.BTCTimeout, c.Intervals.BTCTimeout)
	setDuration(&cfg.ETHTimeout, c.Intervals.ETHTimeout)
	setDuration(&cfg.SOLTimeout, c.Intervals.SOLTimeout)
	setDuration(&cfg.ProxyTimeout, c.Intervals.ProxyTimeout)

	setString(&cfg.Cache.Backend, strings.ToLower(c.Cache.Backend))
	setString(&cfg.Cache.Dir, c.Cache.Dir)
	setString(&cfg.Cache.Path, c.Cache.Path)
	setString(&cfg.Cache.RedisAddr, c.Cache.RedisAddr)
	setString(&cfg.Cache.RedisPassword, c.Cache.RedisPassword)

	if c.Web.Enabled != nil {
		cfg.Web.Enabled = *c.Web.Enabled
	}
	setString(&cfg.Web.Addr, c.Web.Addr)
	setList(&cfg.Web.TLSDomains, c.Web.TLSDomains)
	setString(&cfg.Web.CertCacheDir, c.Web.CertCacheDir)
	setList(&cfg.Web.AllowOrigins, c.Web.AllowOrigins)

	cfg.ProxyURL = c.Proxy.URL
	cfg.MergeTokenSources = c.Tokens.MergeSources
	if c.Tokens.NetWorth != nil {
		cfg.NetWorth = *c.Tokens.NetWorth
	}
	cfg.ExchangeFallback = c.Price.ExchangeFallback

	return cfg, nil
}

// ApplyEnv reads secrets and overrides from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Keys = APIKeys{
		Shyft:         getenv("SHYFT_API_KEY"),
		Helius:        getenv("HELIUS_API_KEY"),
		Etherscan:     getenv("ETHERSCAN_API_KEY"),
		Alchemy:       getenv("ALCHEMY_ETH_API_KEY"),
		CoinGecko:     getenv("COINGECKO_API_KEY"),
		Ethplorer:     getenv("ETHPLORER_API_KEY"),
		BinanceKey:    getenv("BINANCE_API_KEY"),
		BinanceSecret: getenv("BINANCE_API_SECRET"),
		BybitKey:      getenv("BYBIT_API_KEY"),
		BybitSecret:   getenv("BYBIT_API_SECRET"),
	}

	if v := getenv("TREASURY_PROXY_URL"); v != "" {
		c.ProxyURL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
}

// Validate checks addresses and settings.
func (c Config) Validate() error {
	if len(c.BTCAddresses) == 0 {
		return fmt.Errorf("at least one BTC address is required")
	}
	for _, a := range c.BTCAddresses {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("incorrect 'addresses.btc' param in yaml config: empty address")
		}
	}
	if !common.IsHexAddress(c.ETHAddress) {
		return fmt.Errorf("incorrect 'addresses.eth' param in yaml config: %s", c.ETHAddress)
	}
	if !IsSolanaAddress(c.SOLAddress) {
		return fmt.Errorf("incorrect 'addresses.sol' param in yaml config: %s", c.SOLAddress)
	}

	switch c.Cache.Backend {
	case CacheWAL, CacheFile, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend redis requires 'cache.redis_addr'")
		}
	default:
		return fmt.Errorf("incorrect 'cache.backend' param in yaml config: %s", c.Cache.Backend)
	}

	if c.Thresholds.ZeroQuorum < 1 {
		return fmt.Errorf("incorrect 'zero_quorum' param in yaml config: must be at least 1")
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("incorrect 'intervals.refresh' param in yaml config: %s", c.RefreshInterval)
	}

	return nil
}

// IsSolanaAddress reports whether s is a base58 encoded 32 byte public key.
func IsSolanaAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
