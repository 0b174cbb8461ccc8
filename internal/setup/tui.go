package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vadiminshakov/treasury/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// DefaultOutput is the file written by RunTUI.
const DefaultOutput = "config.gen.yaml"

// Answers collected by the wizard.
type Answers struct {
	BTCAddresses    string
	ETHAddress      string
	SOLAddress      string
	RefreshInterval string
	CacheBackend    string
	RedisAddr       string
	WebAddr         string
	ProxyURL        string
	MergeSources    bool
	NetWorth        bool
}

func defaultAnswers() Answers {
	def := config.Default()
	return Answers{
		BTCAddresses:    strings.Join(def.BTCAddresses, ","),
		ETHAddress:      def.ETHAddress,
		SOLAddress:      def.SOLAddress,
		RefreshInterval: def.RefreshInterval.String(),
		CacheBackend:    def.Cache.Backend,
		WebAddr:         def.Web.Addr,
		NetWorth:        def.NetWorth,
	}
}

// RunTUI launches the terminal configuration wizard and returns the written path.
func RunTUI() (string, error) {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TREASURY CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Tell us which wallets to watch.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ADDRESSES"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("BTC addresses").
				Description("Comma separated").
				Value(&a.BTCAddresses).
				Validate(validateBTC),
			huh.NewInput().
				Title("ETH address").
				Value(&a.ETHAddress).
				Validate(validateETH),
			huh.NewInput().
				Title("SOL address").
				Description("Also owns the SPL token holdings").
				Value(&a.SOLAddress).
				Validate(validateSOL),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Println(stepStyle.Render("STEP 2: REFRESH AND CACHE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval").
				Description("e.g. 5m").
				Value(&a.RefreshInterval).
				Validate(validateInterval),
			huh.NewSelect[string]().
				Title("Cache backend").
				Options(
					huh.NewOption("Write-ahead log (./wal)", config.CacheWAL),
					huh.NewOption("JSON file", config.CacheFile),
					huh.NewOption("Redis", config.CacheRedis),
					huh.NewOption("In memory only", config.CacheMemory),
				).
				Value(&a.CacheBackend),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if a.CacheBackend == config.CacheRedis {
		a.RedisAddr = "localhost:6379"
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Value(&a.RedisAddr).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("redis address is required")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return "", err
		}
	}

	fmt.Println(stepStyle.Render("STEP 3: SERVING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Value(&a.WebAddr),
			huh.NewInput().
				Title("Balance proxy URL").
				Description("Optional /api/treasury endpoint tried before upstreams").
				Value(&a.ProxyURL),
			huh.NewConfirm().
				Title("Merge token lists from every indexer?").
				Value(&a.MergeSources),
			huh.NewConfirm().
				Title("Use SolanaFM net worth for SOL side valuation?").
				Value(&a.NetWorth),
		),
	).Run()
	if err != nil {
		return "", err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TREASURY CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"BTC: %s\nETH: %s\nSOL: %s\nRefresh: %s\nCache: %s\n",
		a.BTCAddresses, a.ETHAddress, a.SOLAddress, a.RefreshInterval, a.CacheBackend,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := Write(DefaultOutput, a); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting treasury...", DefaultOutput)))
	time.Sleep(1500 * time.Millisecond)
	return DefaultOutput, nil
}

// Write renders answers as a YAML config file.
func Write(filename string, a Answers) error {
	data, err := yaml.Marshal(a.ConfigTmp())
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// ConfigTmp converts answers to the YAML config representation.
func (a Answers) ConfigTmp() config.ConfigTmp {
	var tmp config.ConfigTmp

	tmp.Addresses.BTC = splitList(a.BTCAddresses)
	tmp.Addresses.ETH = strings.TrimSpace(a.ETHAddress)
	tmp.Addresses.SOL = strings.TrimSpace(a.SOLAddress)

	if d, err := time.ParseDuration(a.RefreshInterval); err == nil {
		tmp.Intervals.Refresh = d
	}

	tmp.Cache.Backend = a.CacheBackend
	tmp.Cache.RedisAddr = a.RedisAddr
	tmp.Web.Addr = a.WebAddr
	tmp.Proxy.URL = strings.TrimSpace(a.ProxyURL)
	tmp.Tokens.MergeSources = a.MergeSources
	netWorth := a.NetWorth
	tmp.Tokens.NetWorth = &netWorth

	return tmp
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateBTC(s string) error {
	if len(splitList(s)) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	return nil
}

func validateETH(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("must be a 0x prefixed hex address")
	}
	return nil
}

func validateSOL(s string) error {
	if !config.IsSolanaAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("must be a base58 public key")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration like 5m")
	}
	if d < time.Second {
		return fmt.Errorf("must be at least 1s")
	}
	return nil
}
