// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"
)

type Config struct {
	Network    string   `mapstructure:"network"`
	RPCList    []string `mapstructure:"rpc_list"`
	Commitment string   `mapstructure:"commitment"`
	RPCRetries int      `mapstructure:"rpc_retries"`
	RPCTimeout int      `mapstructure:"rpc_timeout_ms"`

	ResendInterval       int      `mapstructure:"resend_interval_ms"`
	ConfirmPollInterval  int      `mapstructure:"confirm_poll_ms"`
	SimulationAttempts   int      `mapstructure:"simulation_attempts"`
	SimulationRetryDelay int      `mapstructure:"simulation_retry_delay_ms"`
	DefaultComputeUnits  uint32   `mapstructure:"default_compute_units"`
	ComputeUnitHeadroom  float64  `mapstructure:"compute_unit_headroom"`
	FeePercentile        float64  `mapstructure:"fee_percentile"`
	MinPriorityFee       uint64   `mapstructure:"min_priority_fee"`
	MaxPriorityFee       uint64   `mapstructure:"max_priority_fee"`
	MaxResends           int      `mapstructure:"max_resends"`
	RetryableMarkers     []string `mapstructure:"retryable_simulation_markers"`

	KeypairPath   string `mapstructure:"keypair_path"`
	WalletsFile   string `mapstructure:"wallets_file"`
	WalletName    string `mapstructure:"wallet_name"`
	KeyringWallet string `mapstructure:"keyring_wallet"`
	KeyringDir    string `mapstructure:"keyring_dir"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	RecordFile   string `mapstructure:"record_file"`

	License       string `mapstructure:"license"`
	KeygenAccount string `mapstructure:"keygen_account"`
	KeygenProduct string `mapstructure:"keygen_product"`
	KeygenToken   string `mapstructure:"keygen_token"`
}

const (
	DefaultNetwork              = "mainnet-beta"
	DefaultCommitment           = "finalized"
	DefaultRPCRetries           = 3
	DefaultRPCTimeout           = 10000
	DefaultResendInterval       = 5000
	DefaultConfirmPollInterval  = 400
	DefaultSimulationAttempts   = 5
	DefaultSimulationRetryDelay = 1000
	DefaultComputeUnits         = 200000
	DefaultComputeUnitHeadroom  = 1.2
	DefaultFeePercentile        = 0.95
	DefaultMinPriorityFee       = 1
	DefaultMaxPriorityFee       = 100000000
	DefaultLogFile              = "bridgetx.log"

	EnvPrefix = "BRIDGETX"
)

var clusterURLs = map[string]string{
	"mainnet-beta": rpc.MainNetBeta_RPC,
	"devnet":       rpc.DevNet_RPC,
	"testnet":      rpc.TestNet_RPC,
	"localnet":     rpc.LocalNet_RPC,
}

var defaults = map[string]interface{}{
	"network":                      DefaultNetwork,
	"rpc_list":                     []string{},
	"commitment":                   DefaultCommitment,
	"rpc_retries":                  DefaultRPCRetries,
	"rpc_timeout_ms":               DefaultRPCTimeout,
	"resend_interval_ms":           DefaultResendInterval,
	"confirm_poll_ms":              DefaultConfirmPollInterval,
	"simulation_attempts":          DefaultSimulationAttempts,
	"simulation_retry_delay_ms":    DefaultSimulationRetryDelay,
	"default_compute_units":        DefaultComputeUnits,
	"compute_unit_headroom":        DefaultComputeUnitHeadroom,
	"fee_percentile":               DefaultFeePercentile,
	"min_priority_fee":             DefaultMinPriorityFee,
	"max_priority_fee":             DefaultMaxPriorityFee,
	"max_resends":                  0,
	"retryable_simulation_markers": []string{"SlippageToleranceExceeded"},
	"keypair_path":                 "",
	"wallets_file":                 "",
	"wallet_name":                  "",
	"keyring_wallet":               "",
	"keyring_dir":                  "",
	"log_file":                     DefaultLogFile,
	"debug_logging":                false,
	"metrics_addr":                 "",
	"record_file":                  "",
	"license":                      "",
	"keygen_account":               "",
	"keygen_product":               "",
	"keygen_token":                 "",
}

// LoadConfig читает файл конфигурации (если path не пуст) и переменные
// окружения BRIDGETX_*.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	if len(cfg.RPCList) == 0 {
		if u, ok := clusterURLs[cfg.Network]; ok {
			cfg.RPCList = []string{u}
		}
	}

	return &cfg, validateConfig(&cfg)
}

// ClusterURL returns the public RPC endpoint of a network.
func ClusterURL(network string) (string, bool) {
	u, ok := clusterURLs[network]
	return u, ok
}

func validateConfig(cfg *Config) error {
	if _, ok := clusterURLs[cfg.Network]; !ok {
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if cfg.KeygenAccount != "" && cfg.License == "" {
		return errors.New("missing license in configuration")
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.RPCRetries < 0 {
		return errors.New("invalid rpc_retries")
	}
	if cfg.RPCTimeout <= 0 {
		return errors.New("invalid rpc_timeout_ms")
	}
	if cfg.ResendInterval <= 0 {
		return errors.New("invalid resend_interval_ms")
	}
	if cfg.ConfirmPollInterval <= 0 {
		return errors.New("invalid confirm_poll_ms")
	}
	if cfg.SimulationAttempts <= 0 {
		return errors.New("invalid simulation_attempts")
	}
	if cfg.SimulationRetryDelay < 0 {
		return errors.New("invalid simulation_retry_delay_ms")
	}
	if cfg.DefaultComputeUnits == 0 {
		return errors.New("invalid default_compute_units")
	}
	if cfg.ComputeUnitHeadroom < 1 {
		return errors.New("compute_unit_headroom must be >= 1")
	}
	if cfg.FeePercentile <= 0 || cfg.FeePercentile > 1 {
		return errors.New("fee_percentile must be in (0, 1]")
	}
	if cfg.MaxPriorityFee != 0 && cfg.MinPriorityFee > cfg.MaxPriorityFee {
		return errors.New("min_priority_fee exceeds max_priority_fee")
	}
	if cfg.MaxResends < 0 {
		return errors.New("invalid max_resends")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	// Viper does not split list values taken from the environment.
	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		if list := splitList(envRPCList); len(list) > 0 {
			cfg.RPCList = list
		}
	}
	envMarkers := v.GetString("RETRYABLE_SIMULATION_MARKERS")
	if envMarkers != "" {
		cfg.RetryableMarkers = splitList(envMarkers)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c *Config) ResendIntervalDuration() time.Duration       { return ms(c.ResendInterval) }
func (c *Config) ConfirmPollDuration() time.Duration          { return ms(c.ConfirmPollInterval) }
func (c *Config) SimulationRetryDelayDuration() time.Duration { return ms(c.SimulationRetryDelay) }
func (c *Config) RPCTimeoutDuration() time.Duration           { return ms(c.RPCTimeout) }

// CommitmentType returns the configured commitment as an RPC value.
func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}
