package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultGas is the gas ceiling attached to every function call (300 Tgas).
const DefaultGas uint64 = 300_000_000_000_000

const defaultDevAccount = "dev-1649632081005-14076690372915"

type Network struct {
	ID          string
	NodeURL     string
	WalletURL   string
	HelperURL   string
	ExplorerURL string
}

var networks = map[string]Network{
	"testnet": {
		ID:          "testnet",
		NodeURL:     "https://rpc.testnet.near.org",
		WalletURL:   "https://wallet.testnet.near.org",
		HelperURL:   "https://helper.testnet.near.org",
		ExplorerURL: "https://explorer.testnet.near.org",
	},
	"mainnet": {
		ID:          "mainnet",
		NodeURL:     "https://rpc.mainnet.near.org",
		WalletURL:   "https://wallet.near.org",
		HelperURL:   "https://helper.mainnet.near.org",
		ExplorerURL: "https://explorer.near.org",
	},
	"localnet": {
		ID:      "localnet",
		NodeURL: "http://127.0.0.1:3030",
	},
}

type Config struct {
	Network        Network
	CredentialsDir string
	AccountID      string
	ContractID     string
	ProverURL      string
	Gas            uint64
	LogLevel       string
}

// Load reads .env (if present) and the process environment. Unknown
// networks are allowed as long as NEAR_NODE_URL is set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	netID := getEnv("NEAR_NETWORK_ID", "testnet")
	net, ok := networks[netID]
	if !ok {
		net = Network{ID: netID}
	}
	net.NodeURL = getEnv("NEAR_NODE_URL", net.NodeURL)
	net.WalletURL = getEnv("NEAR_WALLET_URL", net.WalletURL)
	net.HelperURL = getEnv("NEAR_HELPER_URL", net.HelperURL)
	net.ExplorerURL = getEnv("NEAR_EXPLORER_URL", net.ExplorerURL)
	if net.NodeURL == "" {
		return nil, fmt.Errorf("unknown network %q and NEAR_NODE_URL not set", netID)
	}

	credDir := getEnv("NEAR_CREDENTIALS_DIR", "")
	if credDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		credDir = filepath.Join(home, ".near-credentials")
	}

	gas := DefaultGas
	if v := getEnv("MAX_GAS", ""); v != "" {
		g, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_GAS %q: %w", v, err)
		}
		gas = g
	}

	account := getEnv("NEAR_ACCOUNT_ID", defaultDevAccount)
	return &Config{
		Network:        net,
		CredentialsDir: credDir,
		AccountID:      account,
		ContractID:     getEnv("NEAR_CONTRACT_ID", account),
		ProverURL:      strings.TrimRight(getEnv("PROVER_URL", "http://127.0.0.1:3000"), "/"),
		Gas:            gas,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}, nil
}

// UseNetwork switches to the preset for id. An unknown id keeps the current
// endpoints under the new name.
func (c *Config) UseNetwork(id string) {
	if net, ok := networks[id]; ok {
		c.Network = net
		return
	}
	c.Network.ID = id
}

// Explorer link for a transaction hash, empty when the network has no explorer.
func (c *Config) TxURL(hash string) string {
	if c.Network.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.Network.ExplorerURL, "/") + "/transactions/" + hash
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
