package tokens

import "strings"

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// SPLTokenProgram owner of classic SPL token accounts.
	SPLTokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// priceIDs maps token symbols to CoinGecko ids.
var priceIDs = map[string]string{
	"USDC":    "usd-coin",
	"USDT":    "tether",
	"BTC":     "bitcoin",
	"ETH":     "ethereum",
	"SOL":     "solana",
	"BONK":    "bonk",
	"RAY":     "raydium",
	"SRM":     "serum",
	"MNGO":    "mango-markets",
	"ORCA":    "orca",
	"SAMO":    "samoyedcoin",
	"ATLAS":   "star-atlas",
	"POLIS":   "star-atlas-dao",
	"COPE":    "cope",
	"FIDA":    "bonfida",
	"MAPS":    "maps",
	"STEP":    "step-finance",
	"SLND":    "solend",
	"STSOL":   "lido-staked-sol",
	"MSOL":    "marinade-staked-sol",
	"WSOL":    "wrapped-solana",
	"JTO":     "jito-governance",
	"PYTH":    "pyth-network",
	"RENDER":  "render-token",
	"BSOL":    "blazestake-staked-sol",
	"JSOL":    "jpool-solana",
	"USDR":    "real-usd",
	"UXD":     "uxd-protocol",
	"DUST":    "dust-protocol",
	"MEAN":    "meanfi",
	"WBTC":    "wrapped-bitcoin",
	"WETH":    "weth",
	"HADES":   "hades-money",
	"JITOSOL": "jito-staked-sol",
	"RATIO":   "ratio-finance",
	"RNDR":    "render-token",
	"SHDW":    "genesysgo-shadow",
	"WUSDC":   "wrapped-usdc",
	"WUSDT":   "wrapped-usdt",
}

// PriceID returns the CoinGecko id of a token symbol, case insensitive.
func PriceID(symbol string) (string, bool) {
	id, ok := priceIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	return id, ok
}

// knownMint returns symbol and name for mints the on-chain scan can label.
func knownMint(mint string) (symbol, name string) {
	switch mint {
	case usdcMint:
		return "USDC", "USD Coin"
	case usdtMint:
		return "USDT", "Tether USD"
	}

	short := mint
	if len(short) > 6 {
		short = short[:6]
	}
	long := mint
	if len(long) > 10 {
		long = long[:10]
	}

	return short, "Token " + long + "..."
}
